package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp"
	"github.com/handiism/bandcamp-purchases/internal/config"
	"github.com/handiism/bandcamp-purchases/internal/export"
	ioutils "github.com/handiism/bandcamp-purchases/internal/io"
	"github.com/handiism/bandcamp-purchases/internal/model"
	"github.com/handiism/bandcamp-purchases/internal/store"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a user-facing progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// ErrAlreadyRunning is returned when a scrape is started or reset while
// another one is in flight.
var ErrAlreadyRunning = errors.New("a scrape is already running")

// ErrNoRows is returned by operations that need scraped rows when there are none.
var ErrNoRows = errors.New("no purchases loaded")

// IdentityResolver turns a pasted cookie into a verified identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, rawCookie string) (model.ResolvedIdentity, error)
}

// CollectionHarvester fetches the whole collection for an identity.
type CollectionHarvester interface {
	Harvest(ctx context.Context, identity model.ResolvedIdentity, onBatch bandcamp.BatchFunc) (model.ScrapeProgress, error)
}

// ArtworkFetcher downloads cover images.
type ArtworkFetcher interface {
	DownloadBytes(ctx context.Context, url string) ([]byte, error)
}

// Cache persists rows between runs. *store.Store implements it.
type Cache interface {
	SaveRows(ctx context.Context, rows []model.PurchaseRow) error
	LoadRows(ctx context.Context) ([]model.PurchaseRow, error)
	ClearRows(ctx context.Context) error
	RecordRun(ctx context.Context, run store.Run) error
}

// Deps are the collaborators a Manager drives. Cache and Artwork may be nil.
type Deps struct {
	Resolver  IdentityResolver
	Harvester CollectionHarvester
	Artwork   ArtworkFetcher
	Cache     Cache
	Logger    *slog.Logger
}

// Manager owns one user's scrape session: the resolved identity, the
// accumulated rows and the published progress.
//
// Readers (TUI, HTTP handlers) may call Rows and Progress from any
// goroutine while a scrape is running.
type Manager struct {
	settings     *config.Settings
	resolver     IdentityResolver
	harvester    CollectionHarvester
	artwork      ArtworkFetcher
	cache        Cache
	imageService *ioutils.ImageService
	logger       *slog.Logger
	onProgress   func(ProgressEvent)

	running atomic.Bool

	mu       sync.RWMutex
	rows     []model.PurchaseRow
	progress model.ScrapeProgress
	identity *model.ResolvedIdentity
	runID    string
}

// NewManager creates a new Manager.
func NewManager(settings *config.Settings, deps Deps, onProgress func(ProgressEvent)) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		settings:     settings,
		resolver:     deps.Resolver,
		harvester:    deps.Harvester,
		artwork:      deps.Artwork,
		cache:        deps.Cache,
		imageService: ioutils.NewImageService(),
		logger:       logger,
		onProgress:   onProgress,
		progress:     model.IdleProgress(),
	}
}

// Authenticate resolves the cookie without scraping, for "test my cookie" flows.
func (m *Manager) Authenticate(ctx context.Context, rawCookie string) (model.ResolvedIdentity, error) {
	identity, err := m.resolver.Resolve(ctx, rawCookie)
	if err != nil {
		m.emit(ProgressEvent{Message: err.Error(), Level: LevelError})
		return model.ResolvedIdentity{}, err
	}

	m.mu.Lock()
	m.identity = &identity
	m.mu.Unlock()

	m.emit(ProgressEvent{
		Message: fmt.Sprintf("Signed in as %s (%d items reported)", identity.DisplayName, identity.ReportedCollectionCount),
		Level:   LevelSuccess,
	})
	return identity, nil
}

// Start resolves the cookie and harvests the whole collection.
//
// It blocks until the scrape reaches a terminal status, which it returns.
// Rows and Progress reflect every page as it arrives. A completed scrape
// replaces the cached rows. Only one scrape runs at a time.
func (m *Manager) Start(ctx context.Context, rawCookie string) (model.ScrapeProgress, error) {
	if !m.running.CompareAndSwap(false, true) {
		return m.Progress(), ErrAlreadyRunning
	}
	defer m.running.Store(false)

	return m.run(ctx, m.begin(), rawCookie)
}

// Launch claims the scrape slot and runs the scrape in a new goroutine,
// calling done with the terminal status once it finishes.
//
// The claim is synchronous: when Launch returns nil, Progress already
// reports StatusScraping and any further Start or Launch fails with
// ErrAlreadyRunning until done has been called.
func (m *Manager) Launch(ctx context.Context, rawCookie string, done func(model.ScrapeProgress, error)) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	runID := m.begin()

	go func() {
		progress, err := m.run(ctx, runID, rawCookie)
		m.running.Store(false)
		if done != nil {
			done(progress, err)
		}
	}()
	return nil
}

// begin resets the session state for a new run and returns its ID.
// The caller must hold the running flag.
func (m *Manager) begin() string {
	runID := uuid.NewString()

	m.mu.Lock()
	m.runID = runID
	m.rows = nil
	m.progress = model.ScrapeProgress{Status: model.StatusScraping}
	m.mu.Unlock()

	return runID
}

func (m *Manager) run(ctx context.Context, runID, rawCookie string) (model.ScrapeProgress, error) {
	started := time.Now()
	logger := m.logger.With("run_id", runID)

	m.emit(ProgressEvent{Message: "Checking cookie...", Level: LevelInfo})
	identity, err := m.Authenticate(ctx, rawCookie)
	if err != nil {
		final := model.ScrapeProgress{Status: model.StatusError, Error: err.Error()}
		m.setProgress(final)
		m.recordRun(ctx, logger, runID, "", final, started)
		return final, err
	}

	logger.Info("Scrape started", "fan_id", identity.FanID)
	m.emit(ProgressEvent{Message: "Fetching purchases...", Level: LevelInfo})

	final, err := m.harvester.Harvest(ctx, identity, func(rows []model.PurchaseRow, p model.ScrapeProgress) {
		m.mu.Lock()
		m.rows = rows
		m.progress = p
		m.mu.Unlock()
		if p.Status == model.StatusScraping && p.PagesFetched > 0 {
			m.emit(ProgressEvent{
				Message: fmt.Sprintf("Page %d: %d purchases so far", p.PagesFetched, p.ItemsFetched),
				Level:   LevelVerbose,
			})
		}
	})
	m.setProgress(final)
	m.recordRun(ctx, logger, runID, identity.FanID, final, started)

	if err != nil {
		m.emit(ProgressEvent{Message: err.Error(), Level: LevelError})
		return final, err
	}

	if m.cache != nil {
		if err := m.cache.SaveRows(ctx, m.Rows()); err != nil {
			logger.Warn("Could not cache rows", "error", err)
			m.emit(ProgressEvent{Message: fmt.Sprintf("Could not cache results: %v", err), Level: LevelWarning})
		}
	}

	m.emit(ProgressEvent{Message: fmt.Sprintf("Found %d purchases", final.ItemsFetched), Level: LevelSuccess})
	return final, nil
}

// Rows returns a copy of the current rows.
func (m *Manager) Rows() []model.PurchaseRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.PurchaseRow, len(m.rows))
	copy(out, m.rows)
	return out
}

// Progress returns the latest published progress.
func (m *Manager) Progress() model.ScrapeProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress
}

// Identity returns the last resolved identity, if any.
func (m *Manager) Identity() (model.ResolvedIdentity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return model.ResolvedIdentity{}, false
	}
	return *m.identity, true
}

// RunID returns the ID of the last scrape started, or "" for cached data.
func (m *Manager) RunID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runID
}

// Reset clears rows, identity and cache and returns to idle.
func (m *Manager) Reset(ctx context.Context) error {
	if m.running.Load() {
		return ErrAlreadyRunning
	}

	m.mu.Lock()
	m.rows = nil
	m.identity = nil
	m.runID = ""
	m.progress = model.IdleProgress()
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.ClearRows(ctx); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	m.emit(ProgressEvent{Message: "Cleared results", Level: LevelInfo})
	return nil
}

// LoadCached restores rows from the last completed scrape.
//
// Returns the number of rows loaded; zero with a nil error when nothing is cached.
func (m *Manager) LoadCached(ctx context.Context) (int, error) {
	if m.cache == nil {
		return 0, nil
	}
	rows, err := m.cache.LoadRows(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.rows = rows
	m.progress = model.ScrapeProgress{Status: model.StatusCompleted, ItemsFetched: len(rows)}
	m.mu.Unlock()

	m.emit(ProgressEvent{Message: fmt.Sprintf("Loaded %d cached purchases", len(rows)), Level: LevelInfo})
	return len(rows), nil
}

// Export writes the current rows to dir in the given format and returns the path.
func (m *Manager) Export(ctx context.Context, format export.Format, dir string) (string, error) {
	rows := m.Rows()
	if len(rows) == 0 {
		return "", ErrNoRows
	}
	path, err := export.NewExporter(format, m.RunID()).WriteFile(ctx, dir, rows)
	if err != nil {
		return "", err
	}
	m.emit(ProgressEvent{Message: fmt.Sprintf("Exported %d purchases to %s", len(rows), path), Level: LevelSuccess})
	return path, nil
}

// CoverStats summarizes a DownloadCovers call.
type CoverStats struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// DownloadCovers saves the large artwork of every row into dir.
//
// Downloads run concurrently up to MaxConcurrentCoverDownloads. Existing
// files are skipped, failures are retried with exponential backoff and then
// reported without stopping the others.
func (m *Manager) DownloadCovers(ctx context.Context, dir string) (CoverStats, error) {
	if m.artwork == nil {
		return CoverStats{}, errors.New("no artwork fetcher configured")
	}
	rows := m.Rows()
	if len(rows) == 0 {
		return CoverStats{}, ErrNoRows
	}
	if err := ioutils.EnsureDir(dir); err != nil {
		return CoverStats{}, err
	}

	var downloaded, skipped, failed atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.settings.MaxConcurrentCoverDownloads))

	seen := make(map[string]struct{})
	for i := range rows {
		row := rows[i]
		if !row.HasArtwork() {
			continue
		}
		if _, dup := seen[row.ArtURL]; dup {
			continue
		}
		seen[row.ArtURL] = struct{}{}

		g.Go(func() error {
			path := filepath.Join(dir, ioutils.CoverFileName(row.DisplayName(), row.ItemID, "jpg"))
			if ioutils.FileExists(path) {
				skipped.Add(1)
				m.emit(ProgressEvent{Message: fmt.Sprintf("Skipping existing: %s", filepath.Base(path)), Level: LevelVerbose})
				return nil
			}
			if err := m.downloadCover(ctx, &row, path); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				m.emit(ProgressEvent{Message: fmt.Sprintf("Error downloading cover for %s: %v", row.DisplayName(), err), Level: LevelWarning})
				return nil // Continue with other covers
			}
			downloaded.Add(1)
			m.emit(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filepath.Base(path)), Level: LevelVerbose})
			return nil
		})
	}

	err := g.Wait()
	stats := CoverStats{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	if err == nil {
		m.emit(ProgressEvent{
			Message: fmt.Sprintf("Covers: %d downloaded, %d skipped, %d failed", stats.Downloaded, stats.Skipped, stats.Failed),
			Level:   LevelSuccess,
		})
	}
	return stats, err
}

func (m *Manager) downloadCover(ctx context.Context, row *model.PurchaseRow, path string) error {
	url := model.LargeArtURL(row.ArtURL)

	var data []byte
	var err error
	tries := max(1, m.settings.DownloadMaxRetries)
	for try := 0; try < tries; try++ {
		data, err = m.artwork.DownloadBytes(ctx, url)
		if err == nil {
			break
		}
		if try+1 < tries {
			m.emit(ProgressEvent{Message: fmt.Sprintf("Retry %d/%d for %s", try+1, tries, row.DisplayName()), Level: LevelWarning})
			m.waitForRetry(ctx, try)
		}
	}
	if err != nil {
		return err
	}

	processed, err := m.imageService.ProcessCover(ctx, data, ioutils.CoverOptions{
		Resize:  m.settings.CoverArtResize,
		MaxSize: m.settings.CoverArtMaxSize,
		ToJPEG:  m.settings.ConvertCoverArtToJPG,
	})
	if err != nil {
		// Fall back to the original bytes.
		m.logger.Warn("Cover processing failed, saving original", "item_id", row.ItemID, "error", err)
		processed = data
	}

	return ioutils.WriteFile(ctx, path, processed)
}

func (m *Manager) waitForRetry(ctx context.Context, tries int) {
	cooldown := m.settings.DownloadRetryCooldown * math.Pow(m.settings.DownloadRetryExponent, float64(tries))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}

func (m *Manager) setProgress(p model.ScrapeProgress) {
	m.mu.Lock()
	m.progress = p
	m.mu.Unlock()
}

func (m *Manager) recordRun(ctx context.Context, logger *slog.Logger, runID, fanID string, p model.ScrapeProgress, started time.Time) {
	if m.cache == nil {
		return
	}
	run := store.Run{
		ID:           runID,
		FanID:        fanID,
		Status:       p.Status,
		ItemsFetched: p.ItemsFetched,
		PagesFetched: p.PagesFetched,
		Error:        p.Error,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}
	// Record cancelled scrapes too.
	if err := m.cache.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("Could not record scrape run", "error", err)
	}
}

func (m *Manager) emit(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
