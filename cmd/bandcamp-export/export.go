package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handiism/bandcamp-purchases/internal/export"
	"github.com/handiism/bandcamp-purchases/internal/scrape"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format   string
		outDir   string
		coverDir string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the purchases from the last scrape",
		Long: `Writes the cached purchases from the last completed scrape without
contacting Bandcamp. Pass --out - to write to stdout. With --covers, the
large cover image of every purchase is also downloaded into a directory.`,
		Example: `  bandcamp-export export --format json --out -
  bandcamp-export export --covers ~/Pictures/bandcamp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := export.ParseFormat(firstSet(format, a.settings.ExportFormat))
			if err != nil {
				return err
			}

			session, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			n, err := session.LoadCached(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return errors.New("no cached purchases: run \"bandcamp-export scrape\" first")
			}

			if outDir == "-" {
				if err := export.NewExporter(f, session.RunID()).Write(cmd.OutOrStdout(), session.Rows()); err != nil {
					return err
				}
			} else {
				path, err := session.Export(ctx, f, firstSet(outDir, a.settings.ExportDir))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}

			if coverDir == "" {
				return nil
			}
			stats, err := session.DownloadCovers(ctx, coverDir)
			if err != nil && !errors.Is(err, scrape.ErrNoRows) {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d cover downloads failed", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format: csv, json or parquet (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Export directory, or - for stdout (default from config)")
	cmd.Flags().StringVar(&coverDir, "covers", "", "Also download cover art into this directory")

	return cmd
}
