package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/handiism/bandcamp-purchases/internal/config"
	"github.com/handiism/bandcamp-purchases/internal/export"
	"github.com/handiism/bandcamp-purchases/internal/model"
	"github.com/handiism/bandcamp-purchases/internal/scrape"
)

type fakeScraper struct {
	rows       []model.PurchaseRow
	progress   model.ScrapeProgress
	identity   *model.ResolvedIdentity
	startErr   error
	authErr    error
	exported   []export.Format
	resetCalls int
	gotCookie  string
}

func (f *fakeScraper) Authenticate(_ context.Context, rawCookie string) (model.ResolvedIdentity, error) {
	f.gotCookie = rawCookie
	if f.authErr != nil {
		return model.ResolvedIdentity{}, f.authErr
	}
	return *f.identity, nil
}

func (f *fakeScraper) Start(_ context.Context, rawCookie string) (model.ScrapeProgress, error) {
	f.gotCookie = rawCookie
	return f.progress, f.startErr
}

func (f *fakeScraper) Rows() []model.PurchaseRow { return f.rows }

func (f *fakeScraper) Progress() model.ScrapeProgress { return f.progress }

func (f *fakeScraper) Reset(_ context.Context) error {
	f.resetCalls++
	f.rows = nil
	return nil
}

func (f *fakeScraper) Identity() (model.ResolvedIdentity, bool) {
	if f.identity == nil {
		return model.ResolvedIdentity{}, false
	}
	return *f.identity, true
}

func (f *fakeScraper) Export(_ context.Context, format export.Format, dir string) (string, error) {
	f.exported = append(f.exported, format)
	return dir + "/bandcamp-purchases." + format.String(), nil
}

func testRows() []model.PurchaseRow {
	date := "01 Jan 2023 00:00:00 GMT"
	return []model.PurchaseRow{
		{PurchaseKey: "a:1:" + date, Artist: "Band", Title: "Record", ItemType: model.ItemTypeAlbum, PurchaseDate: &date},
		{PurchaseKey: "t:2:unknown", Artist: "Other", Title: "Song", ItemType: model.ItemTypeTrack, IsHidden: true},
	}
}

func testSettings() *config.Settings {
	s := config.DefaultSettings()
	s.ExportDir = "/tmp/exports"
	return s
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	got, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return got, cmd
}

func TestNewModel_StartsOnInput(t *testing.T) {
	m := NewModel(testSettings(), &fakeScraper{progress: model.IdleProgress()})
	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}
	if !strings.Contains(m.View(), "Paste your Bandcamp identity cookie") {
		t.Errorf("input view missing prompt:\n%s", m.View())
	}
}

func TestNewModel_CachedRowsOpenResults(t *testing.T) {
	scraper := &fakeScraper{
		rows:     testRows(),
		progress: model.ScrapeProgress{Status: model.StatusCompleted, ItemsFetched: 2},
	}
	m := NewModel(testSettings(), scraper)
	if m.state != StateComplete {
		t.Fatalf("state = %v, want StateComplete", m.state)
	}
	if n := len(m.table.Rows()); n != 2 {
		t.Errorf("table rows = %d, want 2", n)
	}
}

func TestScrapeFlow(t *testing.T) {
	scraper := &fakeScraper{
		progress: model.IdleProgress(),
		identity: &model.ResolvedIdentity{FanID: "1", DisplayName: "Jo", ReportedCollectionCount: 2},
	}
	m := NewModel(testSettings(), scraper)
	m.textInput.SetValue("identity=abc")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != StateScraping || cmd == nil {
		t.Fatalf("state = %v, cmd = %v", m.state, cmd)
	}

	if _, ok := m.startScrape()().(ScrapeDoneMsg); !ok {
		t.Fatal("startScrape did not return ScrapeDoneMsg")
	}
	if scraper.gotCookie != "identity=abc" {
		t.Errorf("Start cookie = %q", scraper.gotCookie)
	}

	scraper.rows = testRows()
	scraper.progress = model.ScrapeProgress{Status: model.StatusCompleted, ItemsFetched: 2, PagesFetched: 1}
	m, _ = update(t, m, ScrapeDoneMsg{Progress: scraper.progress})

	if m.state != StateComplete {
		t.Fatalf("state = %v, want StateComplete", m.state)
	}
	if n := len(m.table.Rows()); n != 2 {
		t.Errorf("table rows = %d, want 2", n)
	}
	if m.percent() != 1 {
		t.Errorf("percent = %v, want 1", m.percent())
	}
	if view := m.View(); !strings.Contains(view, "Purchases: 2") || !strings.Contains(view, "Jo") {
		t.Errorf("complete view:\n%s", view)
	}
}

func TestScrapeFailureShowsError(t *testing.T) {
	scraper := &fakeScraper{progress: model.IdleProgress()}
	m := NewModel(testSettings(), scraper)
	m.state = StateScraping

	m, _ = update(t, m, ScrapeDoneMsg{
		Progress: model.ScrapeProgress{Status: model.StatusError, ItemsFetched: 3, Error: "boom"},
		Err:      errors.New("boom"),
	})
	if m.state != StateError {
		t.Fatalf("state = %v, want StateError", m.state)
	}
	view := m.View()
	if !strings.Contains(view, "boom") || !strings.Contains(view, "3 purchases were fetched") {
		t.Errorf("error view:\n%s", view)
	}
}

func TestExportKeys(t *testing.T) {
	scraper := &fakeScraper{rows: testRows(), progress: model.ScrapeProgress{Status: model.StatusCompleted, ItemsFetched: 2}}
	m := NewModel(testSettings(), scraper)

	for _, key := range []string{"c", "j", "p"} {
		var cmd tea.Cmd
		m, cmd = update(t, m, runes(key))
		if cmd == nil {
			t.Fatalf("key %q produced no command", key)
		}
		done, ok := cmd().(ExportDoneMsg)
		if !ok || done.Err != nil {
			t.Fatalf("key %q: %+v", key, done)
		}
		m, _ = update(t, m, done)
		if !strings.Contains(m.notice, done.Path) {
			t.Errorf("notice = %q, want path %q", m.notice, done.Path)
		}
	}

	want := []export.Format{export.FormatCSV, export.FormatJSON, export.FormatParquet}
	if len(scraper.exported) != len(want) {
		t.Fatalf("exported = %v", scraper.exported)
	}
	for i := range want {
		if scraper.exported[i] != want[i] {
			t.Errorf("export %d = %v, want %v", i, scraper.exported[i], want[i])
		}
	}
}

func TestResetKey(t *testing.T) {
	scraper := &fakeScraper{rows: testRows(), progress: model.ScrapeProgress{Status: model.StatusCompleted, ItemsFetched: 2}}
	m := NewModel(testSettings(), scraper)

	m, cmd := update(t, m, runes("r"))
	if cmd == nil {
		t.Fatal("reset produced no command")
	}
	m, _ = update(t, m, cmd())

	if scraper.resetCalls != 1 {
		t.Errorf("reset calls = %d, want 1", scraper.resetCalls)
	}
	if m.state != StateInput || len(m.table.Rows()) != 0 {
		t.Errorf("state = %v, rows = %d", m.state, len(m.table.Rows()))
	}
}

func TestTestCookie(t *testing.T) {
	scraper := &fakeScraper{
		progress: model.IdleProgress(),
		identity: &model.ResolvedIdentity{FanID: "1", DisplayName: "Jo", ReportedCollectionCount: 9},
	}
	m := NewModel(testSettings(), scraper)
	m.textInput.SetValue("identity=abc")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.state != StateAuthenticating {
		t.Fatalf("state = %v, want StateAuthenticating", m.state)
	}

	m, _ = update(t, m, m.testCookie()())
	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}
	if !strings.Contains(m.notice, "9 items") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestVerboseEventsFiltered(t *testing.T) {
	m := NewModel(testSettings(), &fakeScraper{progress: model.IdleProgress()})

	m, _ = update(t, m, ProgressMsg{Event: scrape.ProgressEvent{Message: "page 1", Level: scrape.LevelVerbose}})
	if len(m.logs) != 0 {
		t.Errorf("verbose event logged while verbose is off")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, ProgressMsg{Event: scrape.ProgressEvent{Message: "page 2", Level: scrape.LevelVerbose}})
	if len(m.logs) != 1 || m.logs[0].Message != "page 2" {
		t.Errorf("logs = %+v", m.logs)
	}

	for i := 0; i < maxLogLines+5; i++ {
		m, _ = update(t, m, ProgressMsg{Event: scrape.ProgressEvent{Message: "x", Level: scrape.LevelInfo}})
	}
	if len(m.logs) != maxLogLines {
		t.Errorf("logs kept = %d, want %d", len(m.logs), maxLogLines)
	}
}
