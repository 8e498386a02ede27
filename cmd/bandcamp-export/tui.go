package main

import (
	"github.com/spf13/cobra"

	"github.com/handiism/bandcamp-purchases/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive exporter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), a.settings)
		},
	}
}
