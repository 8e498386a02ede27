package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handiism/bandcamp-purchases/internal/export"
)

func newScrapeCmd(a *app) *cobra.Command {
	var (
		format   string
		outDir   string
		noExport bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch every purchase and export it",
		Long: `Fetches the whole collection, visible and hidden items, caches the result
locally and writes an export file. Use "export" later to re-export the
cached purchases in another format without contacting Bandcamp.`,
		Example: `  # CSV into the configured export folder
  bandcamp-export scrape --cookie "$COOKIE"

  # Parquet into the current directory
  bandcamp-export scrape --format parquet --out .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := export.ParseFormat(firstSet(format, a.settings.ExportFormat))
			if err != nil {
				return err
			}
			cookie, err := a.cookieValue(cmd.InOrStdin())
			if err != nil {
				return err
			}

			session, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			progress, scrapeErr := session.Start(ctx, cookie)
			fmt.Fprintf(cmd.ErrOrStderr(), "Fetched %d purchases over %d pages (%s)\n",
				progress.ItemsFetched, progress.PagesFetched, progress.Status)

			if noExport || len(session.Rows()) == 0 {
				return scrapeErr
			}

			// Partial results from a failed scrape are still worth keeping.
			path, err := session.Export(ctx, f, firstSet(outDir, a.settings.ExportDir))
			if err != nil {
				if scrapeErr != nil {
					return fmt.Errorf("%w (export also failed: %v)", scrapeErr, err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return scrapeErr
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format: csv, json or parquet (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Export directory (default from config)")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "Only fetch and cache, do not write an export file")

	return cmd
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
