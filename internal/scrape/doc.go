// Package scrape coordinates a scrape session for one user.
//
// A Manager resolves the pasted cookie, drives the harvester, keeps the
// accumulated rows and progress for concurrent readers, caches completed
// results and offers the follow-up actions: export, cover download and reset.
//
// User-facing messages are delivered as ProgressEvent values:
//
//	session, err := scrape.Open(ctx, settings, logger, func(e scrape.ProgressEvent) {
//	    fmt.Println(e.Message)
//	})
//	defer session.Close()
//
//	if _, err := session.Start(ctx, cookie); err != nil {
//	    return err
//	}
//	path, err := session.Export(ctx, export.FormatCSV, settings.ExportDir)
package scrape
