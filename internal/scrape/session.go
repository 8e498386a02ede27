package scrape

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp"
	"github.com/handiism/bandcamp-purchases/internal/config"
	bchttp "github.com/handiism/bandcamp-purchases/internal/http"
	"github.com/handiism/bandcamp-purchases/internal/store"
)

// Session is a Manager wired to the real Bandcamp client and the local cache.
type Session struct {
	*Manager
	client *bandcamp.Client
	store  *store.Store
}

// Open builds a Session from settings: HTTP client, upstream client,
// resolver, harvester and the SQLite cache at settings.CachePath.
//
// Example usage:
//
//	session, err := scrape.Open(ctx, settings, logger, printEvent)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//	progress, err := session.Start(ctx, cookie)
func Open(ctx context.Context, settings *config.Settings, logger *slog.Logger, onProgress func(ProgressEvent)) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := bchttp.NewClient(settings.Timeout())
	if settings.UserAgent != "" {
		httpClient = httpClient.WithUserAgent(settings.UserAgent)
	}
	client := bandcamp.NewClient(httpClient, settings.BaseURL)

	db, err := store.Open(settings.CachePath)
	if err != nil {
		return nil, err
	}
	cache := store.New(db)
	if err := cache.Init(ctx); err != nil {
		cache.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	m := NewManager(settings, Deps{
		Resolver:  bandcamp.NewResolver(client, logger.With("component", "identity")),
		Harvester: bandcamp.NewHarvester(client, settings.ToHarvestOptions(), logger.With("component", "harvester")),
		Artwork:   httpClient,
		Cache:     cache,
		Logger:    logger,
	}, onProgress)

	return &Session{Manager: m, client: client, store: cache}, nil
}

// Client returns the upstream client the session scrapes with.
func (s *Session) Client() *bandcamp.Client {
	return s.client
}

// Runs returns recent scrape runs from the cache.
func (s *Session) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	return s.store.Runs(ctx, limit)
}

// Close releases the cache database.
func (s *Session) Close() error {
	return s.store.Close()
}
