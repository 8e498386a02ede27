package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/handiism/bandcamp-purchases/internal/store"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent scrapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			runs, err := session.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scrapes recorded yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")

	return cmd
}

func runsTable(runs []store.Run) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Started", "Duration", "Status", "Items", "Pages", "Error")

	for _, r := range runs {
		duration := ""
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			duration,
			string(r.Status),
			strconv.Itoa(r.ItemsFetched),
			strconv.Itoa(r.PagesFetched),
			r.Error,
		)
	}
	return t.String()
}
