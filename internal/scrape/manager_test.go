package scrape

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg" // JPEG decoder registration
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp"
	"github.com/handiism/bandcamp-purchases/internal/config"
	"github.com/handiism/bandcamp-purchases/internal/export"
	"github.com/handiism/bandcamp-purchases/internal/logging"
	"github.com/handiism/bandcamp-purchases/internal/model"
	"github.com/handiism/bandcamp-purchases/internal/store"
)

type fakeResolver struct {
	identity model.ResolvedIdentity
	err      error
}

func (f *fakeResolver) Resolve(context.Context, string) (model.ResolvedIdentity, error) {
	return f.identity, f.err
}

// fakeHarvester publishes each batch in turn, then returns final/err.
type fakeHarvester struct {
	batches [][]model.PurchaseRow
	err     error
	during  func()
}

func (f *fakeHarvester) Harvest(_ context.Context, _ model.ResolvedIdentity, onBatch bandcamp.BatchFunc) (model.ScrapeProgress, error) {
	var rows []model.PurchaseRow
	p := model.ScrapeProgress{Status: model.StatusScraping}
	onBatch(rows, p)
	for _, b := range f.batches {
		rows = append(rows, b...)
		p.PagesFetched++
		p.ItemsFetched = len(rows)
		onBatch(rows, p)
		if f.during != nil {
			f.during()
		}
	}
	if f.err != nil {
		p.Status = model.StatusError
		p.Error = f.err.Error()
		onBatch(rows, p)
		return p, f.err
	}
	p.Status = model.StatusCompleted
	onBatch(rows, p)
	return p, nil
}

type fakeArtwork struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	data     []byte
}

func (f *fakeArtwork) DownloadBytes(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, errors.New("temporary failure")
	}
	return f.data, nil
}

var testIdentity = model.ResolvedIdentity{FanID: "42", DisplayName: "Fan", CookieHeader: "identity=abc"}

func purchase(id, artID string) model.PurchaseRow {
	return model.PurchaseRow{
		PurchaseKey: "a:" + id + ":unknown",
		ItemType:    model.ItemTypeAlbum,
		ItemID:      id,
		Title:       "Record " + id,
		Artist:      "Band",
		ArtURL:      model.ThumbnailURL(artID),
	}
}

func newTestCache(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	s := store.New(db)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init cache: %v", err)
	}
	return s
}

func testSettings() *config.Settings {
	s := config.DefaultSettings()
	s.DownloadRetryCooldown = 0
	s.MaxConcurrentCoverDownloads = 2
	s.DownloadMaxRetries = 3
	return s
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) add(e ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) has(level ProgressLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Level == level {
			return true
		}
	}
	return false
}

func TestManager_StartCompletesAndCaches(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	events := &eventLog{}

	var midProgress model.ScrapeProgress
	var m *Manager
	harvester := &fakeHarvester{
		batches: [][]model.PurchaseRow{{purchase("1", "10")}, {purchase("2", "")}},
	}
	harvester.during = func() { midProgress = m.Progress() }

	m = NewManager(testSettings(), Deps{
		Resolver:  &fakeResolver{identity: testIdentity},
		Harvester: harvester,
		Cache:     cache,
		Logger:    logging.Discard(),
	}, events.add)

	if got := m.Progress(); got.Status != model.StatusIdle {
		t.Fatalf("initial status = %q, want idle", got.Status)
	}

	final, err := m.Start(ctx, "identity=abc")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if final.Status != model.StatusCompleted || final.ItemsFetched != 2 {
		t.Errorf("final = %+v", final)
	}
	if midProgress.Status != model.StatusScraping {
		t.Errorf("progress during harvest = %+v, want scraping", midProgress)
	}
	if len(m.Rows()) != 2 {
		t.Errorf("Rows() = %d, want 2", len(m.Rows()))
	}
	if id, ok := m.Identity(); !ok || id.FanID != "42" {
		t.Errorf("Identity() = %+v, %v", id, ok)
	}
	if m.RunID() == "" {
		t.Error("RunID not set")
	}
	if !events.has(LevelSuccess) {
		t.Error("no success event emitted")
	}

	cached, err := cache.LoadRows(ctx)
	if err != nil || len(cached) != 2 {
		t.Errorf("cached rows = %d, %v", len(cached), err)
	}
	runs, err := cache.Runs(ctx, 5)
	if err != nil || len(runs) != 1 || runs[0].Status != model.StatusCompleted || runs[0].ID != m.RunID() {
		t.Errorf("runs = %+v, %v", runs, err)
	}
}

func TestManager_StartAuthFailure(t *testing.T) {
	authErr := &bandcamp.AuthError{Reason: "cannot resolve fan identifier", Err: bandcamp.ErrNoFanID}
	cache := newTestCache(t)
	events := &eventLog{}
	m := NewManager(testSettings(), Deps{
		Resolver:  &fakeResolver{err: authErr},
		Harvester: &fakeHarvester{},
		Cache:     cache,
		Logger:    logging.Discard(),
	}, events.add)

	final, err := m.Start(context.Background(), "garbage")
	if !errors.Is(err, bandcamp.ErrNoFanID) {
		t.Fatalf("error = %v, want ErrNoFanID", err)
	}
	if final.Status != model.StatusError || final.Error != authErr.Error() {
		t.Errorf("final = %+v", final)
	}
	if m.Progress() != final {
		t.Errorf("Progress() = %+v, want %+v", m.Progress(), final)
	}
	if !events.has(LevelError) {
		t.Error("no error event emitted")
	}
	if _, err := cache.LoadRows(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("failed scrape touched the row cache: %v", err)
	}
}

func TestManager_StartHarvestFailureKeepsPartialRows(t *testing.T) {
	apiErr := &bandcamp.APIError{Source: "collection_items", Page: 2, Err: errors.New("connection reset")}
	m := NewManager(testSettings(), Deps{
		Resolver:  &fakeResolver{identity: testIdentity},
		Harvester: &fakeHarvester{batches: [][]model.PurchaseRow{{purchase("1", "")}}, err: apiErr},
		Logger:    logging.Discard(),
	}, nil)

	final, err := m.Start(context.Background(), "identity=abc")
	var got *bandcamp.APIError
	if !errors.As(err, &got) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if final.Status != model.StatusError || final.ItemsFetched != 1 {
		t.Errorf("final = %+v", final)
	}
	if len(m.Rows()) != 1 {
		t.Errorf("partial rows dropped")
	}
}

func TestManager_RejectsConcurrentStart(t *testing.T) {
	var m *Manager
	var innerErr error
	harvester := &fakeHarvester{batches: [][]model.PurchaseRow{{purchase("1", "")}}}
	harvester.during = func() {
		_, innerErr = m.Start(context.Background(), "identity=abc")
		if err := m.Reset(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("Reset during scrape error = %v", err)
		}
	}
	m = NewManager(testSettings(), Deps{
		Resolver:  &fakeResolver{identity: testIdentity},
		Harvester: harvester,
		Logger:    logging.Discard(),
	}, nil)

	if _, err := m.Start(context.Background(), "identity=abc"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !errors.Is(innerErr, ErrAlreadyRunning) {
		t.Errorf("nested Start error = %v, want ErrAlreadyRunning", innerErr)
	}
}

func TestManager_LaunchClaimsSynchronously(t *testing.T) {
	release := make(chan struct{})
	harvester := &fakeHarvester{
		batches: [][]model.PurchaseRow{{purchase("1", "")}},
		during:  func() { <-release },
	}
	m := NewManager(testSettings(), Deps{
		Resolver:  &fakeResolver{identity: testIdentity},
		Harvester: harvester,
		Logger:    logging.Discard(),
	}, nil)

	type result struct {
		progress model.ScrapeProgress
		err      error
	}
	done := make(chan result, 1)
	if err := m.Launch(context.Background(), "identity=abc", func(p model.ScrapeProgress, err error) {
		done <- result{p, err}
	}); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if p := m.Progress(); p.Status != model.StatusScraping {
		t.Errorf("progress after Launch = %+v, want scraping", p)
	}
	if m.RunID() == "" {
		t.Error("Launch did not assign a run ID")
	}
	if err := m.Launch(context.Background(), "identity=abc", nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Launch error = %v, want ErrAlreadyRunning", err)
	}
	if _, err := m.Start(context.Background(), "identity=abc"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start during Launch error = %v, want ErrAlreadyRunning", err)
	}

	close(release)
	got := <-done
	if got.err != nil || got.progress.Status != model.StatusCompleted || got.progress.ItemsFetched != 1 {
		t.Errorf("done = %+v", got)
	}
	if _, err := m.Start(context.Background(), "identity=abc"); err != nil {
		t.Errorf("Start after Launch finished: %v", err)
	}
}

func TestManager_ResetAndLoadCached(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	if err := cache.SaveRows(ctx, []model.PurchaseRow{purchase("1", ""), purchase("2", "")}); err != nil {
		t.Fatal(err)
	}

	m := NewManager(testSettings(), Deps{Cache: cache, Logger: logging.Discard()}, nil)

	n, err := m.LoadCached(ctx)
	if err != nil || n != 2 {
		t.Fatalf("LoadCached = %d, %v", n, err)
	}
	if p := m.Progress(); p.Status != model.StatusCompleted || p.ItemsFetched != 2 {
		t.Errorf("progress after load = %+v", p)
	}

	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if p := m.Progress(); p != model.IdleProgress() {
		t.Errorf("progress after reset = %+v", p)
	}
	if len(m.Rows()) != 0 {
		t.Error("rows survived reset")
	}

	n, err = m.LoadCached(ctx)
	if err != nil || n != 0 {
		t.Errorf("LoadCached after reset = %d, %v", n, err)
	}
}

func TestManager_Export(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testSettings(), Deps{Logger: logging.Discard()}, nil)

	if _, err := m.Export(ctx, export.FormatCSV, t.TempDir()); !errors.Is(err, ErrNoRows) {
		t.Errorf("export without rows error = %v", err)
	}

	m.rows = []model.PurchaseRow{purchase("1", "")}
	dir := t.TempDir()
	path, err := m.Export(ctx, export.FormatJSON, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".json" {
		t.Errorf("path = %q", path)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 32))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestManager_DownloadCovers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	flaky := model.LargeArtURL(model.ThumbnailURL("20"))
	broken := model.LargeArtURL(model.ThumbnailURL("30"))
	art := &fakeArtwork{
		data:     pngBytes(t),
		failures: map[string]int{flaky: 1, broken: 10},
	}
	m := NewManager(testSettings(), Deps{Artwork: art, Logger: logging.Discard()}, nil)

	existing := purchase("4", "40")
	m.rows = []model.PurchaseRow{
		purchase("1", "10"),
		purchase("2", "20"),
		purchase("3", "30"),
		existing,
		purchase("5", ""),   // no artwork
		purchase("6", "10"), // same artwork as 1
	}
	existingPath := filepath.Join(dir, "Band - Record 4 [4].jpg")
	if err := os.WriteFile(existingPath, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	stats, err := m.DownloadCovers(ctx, dir)
	if err != nil {
		t.Fatalf("DownloadCovers failed: %v", err)
	}

	want := CoverStats{Downloaded: 2, Skipped: 1, Failed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if art.calls[flaky] != 2 {
		t.Errorf("flaky cover fetched %d times, want 2", art.calls[flaky])
	}
	if art.calls[broken] != 3 {
		t.Errorf("broken cover fetched %d times, want 3", art.calls[broken])
	}
	if art.calls[model.ThumbnailURL("10")] != 0 {
		t.Error("thumbnail fetched instead of large artwork")
	}

	data, err := os.ReadFile(filepath.Join(dir, "Band - Record 1 [1].jpg"))
	if err != nil {
		t.Fatalf("cover not written: %v", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("written cover is not an image: %v", err)
	}
	if old, _ := os.ReadFile(existingPath); string(old) != "old" {
		t.Error("existing cover was overwritten")
	}
}
