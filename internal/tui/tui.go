// Package tui provides a Bubble Tea terminal user interface for exporting
// Bandcamp purchases.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/bandcamp-purchases/internal/config"
	"github.com/handiism/bandcamp-purchases/internal/export"
	"github.com/handiism/bandcamp-purchases/internal/logging"
	"github.com/handiism/bandcamp-purchases/internal/model"
	"github.com/handiism/bandcamp-purchases/internal/scrape"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

const maxLogLines = 10

// Scraper is the session surface the UI drives. *scrape.Manager implements it.
type Scraper interface {
	Authenticate(ctx context.Context, rawCookie string) (model.ResolvedIdentity, error)
	Start(ctx context.Context, rawCookie string) (model.ScrapeProgress, error)
	Rows() []model.PurchaseRow
	Progress() model.ScrapeProgress
	Identity() (model.ResolvedIdentity, bool)
	Reset(ctx context.Context) error
	Export(ctx context.Context, format export.Format, dir string) (string, error)
}

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateAuthenticating
	StateScraping
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   scrape.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	table     table.Model
	settings  *config.Settings
	scraper   Scraper
	logs      []LogEntry
	identity  *model.ResolvedIdentity
	notice    string
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	scrapeProgress model.ScrapeProgress
	verbose        bool

	width  int
	height int
}

// NewModel creates a new TUI model. When the scraper already holds rows
// (restored from the cache) the model opens on the results view.
func NewModel(settings *config.Settings, scraper Scraper) Model {
	ti := textinput.New()
	ti.Placeholder = "identity=...; session=..."
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		state:          StateInput,
		textInput:      ti,
		spinner:        sp,
		progress:       prog,
		table:          newTable(),
		settings:       settings,
		scraper:        scraper,
		logs:           make([]LogEntry, 0),
		ctx:            ctx,
		cancel:         cancel,
		scrapeProgress: scraper.Progress(),
	}

	if rows := scraper.Rows(); len(rows) > 0 {
		m.state = StateComplete
		m.table.SetRows(tableRows(rows))
		m.table.Focus()
		m.textInput.Blur()
	}
	return m
}

func newTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Artist", Width: 24},
			{Title: "Title", Width: 32},
			{Title: "Type", Width: 8},
			{Title: "Purchased", Width: 22},
			{Title: "Hidden", Width: 6},
		}),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#4ECDC4")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#1A1A1A")).
		Background(lipgloss.Color("#F8B500"))
	t.SetStyles(s)
	return t
}

func tableRows(rows []model.PurchaseRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		date := ""
		if r.PurchaseDate != nil {
			date = *r.PurchaseDate
		}
		hidden := ""
		if r.IsHidden {
			hidden = "yes"
		}
		out = append(out, table.Row{r.Artist, r.Title, string(r.ItemType), date, hidden})
	}
	return out
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries a user-facing event from the scrape manager.
	ProgressMsg struct {
		Event scrape.ProgressEvent
	}

	// AuthDoneMsg is sent when a cookie test finishes.
	AuthDoneMsg struct {
		Identity model.ResolvedIdentity
		Err      error
	}

	// ScrapeDoneMsg is sent when a scrape reaches a terminal status.
	ScrapeDoneMsg struct {
		Progress model.ScrapeProgress
		Err      error
	}

	// ExportDoneMsg is sent when an export file has been written.
	ExportDoneMsg struct {
		Path string
		Err  error
	}

	// ResetDoneMsg is sent after rows and cache were cleared.
	ResetDoneMsg struct {
		Err error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		m.table.SetHeight(max(msg.Height-16, 5))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateScraping || m.state == StateAuthenticating {
				m.cancel()
			}
			return m, nil

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateScraping
				m.notice = ""
				return m, tea.Batch(m.startScrape(), m.spinner.Tick, m.tickProgress())
			}

		case "ctrl+t":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateAuthenticating
				return m, tea.Batch(m.testCookie(), m.spinner.Tick)
			}

		case "tab":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}
		}

		if m.state == StateComplete || m.state == StateError {
			if cmd, handled := m.handleResultKey(msg.String()); handled {
				return m, cmd
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		if msg.Event.Level == scrape.LevelVerbose && !m.verbose {
			return m, nil
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}

	case AuthDoneMsg:
		m.state = StateInput
		m.textInput.Focus()
		if m.ctx.Err() != nil {
			m.ctx, m.cancel = context.WithCancel(context.Background())
		}
		if msg.Err != nil {
			m.notice = errorStyle.Render(msg.Err.Error())
		} else {
			id := msg.Identity
			m.identity = &id
			m.notice = successStyle.Render(fmt.Sprintf("Cookie OK: %s, %d items in collection", id.DisplayName, id.ReportedCollectionCount))
		}

	case ScrapeDoneMsg:
		m.scrapeProgress = msg.Progress
		m.table.SetRows(tableRows(m.scraper.Rows()))
		if id, ok := m.scraper.Identity(); ok {
			m.identity = &id
		}
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
			m.textInput.Blur()
			m.table.Focus()
		}

	case ExportDoneMsg:
		if msg.Err != nil {
			m.notice = errorStyle.Render("Export failed: " + msg.Err.Error())
		} else {
			m.notice = successStyle.Render("Saved " + msg.Path)
		}

	case ResetDoneMsg:
		if msg.Err != nil {
			m.notice = errorStyle.Render("Reset failed: " + msg.Err.Error())
			break
		}
		m = m.resetToInput()

	case TickMsg:
		if m.state == StateScraping {
			m.scrapeProgress = m.scraper.Progress()
			if id, ok := m.scraper.Identity(); ok {
				m.identity = &id
			}
			m.table.SetRows(tableRows(m.scraper.Rows()))
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	switch m.state {
	case StateInput:
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	case StateComplete:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleResultKey(key string) (tea.Cmd, bool) {
	switch key {
	case "q":
		return tea.Quit, true
	case "c":
		return m.exportRows(export.FormatCSV), true
	case "j":
		return m.exportRows(export.FormatJSON), true
	case "p":
		return m.exportRows(export.FormatParquet), true
	case "r":
		return m.resetRows(), true
	case "n":
		return func() tea.Msg { return ResetDoneMsg{} }, true
	}
	return nil, false
}

// resetToInput returns to the cookie prompt with a fresh context.
func (m Model) resetToInput() Model {
	m.state = StateInput
	m.logs = nil
	m.err = nil
	m.notice = ""
	m.identity = nil
	m.scrapeProgress = model.IdleProgress()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.table.SetRows(nil)
	m.table.Blur()
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

func (m Model) percent() float64 {
	if m.identity == nil || m.identity.ReportedCollectionCount <= 0 {
		return 0
	}
	return min(float64(m.scrapeProgress.ItemsFetched)/float64(m.identity.ReportedCollectionCount), 1)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Bandcamp Purchases"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Export your Bandcamp collection"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateAuthenticating:
		b.WriteString(m.viewAuthenticating())
	case StateScraping:
		b.WriteString(m.viewScraping())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(m.notice)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Paste your Bandcamp identity cookie:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}
	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Show every page (tab)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Export folder: %s", m.settings.ExportDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewAuthenticating() string {
	return m.spinner.View() + " " + subtitleStyle.Render("Checking cookie...") + "\n\n" + m.renderLogs()
}

func (m Model) viewScraping() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	if m.identity != nil {
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Fetching purchases for %s...", m.identity.DisplayName)))
	} else {
		b.WriteString(subtitleStyle.Render("Signing in..."))
	}
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")

	reported := "?"
	if m.identity != nil && m.identity.ReportedCollectionCount > 0 {
		reported = fmt.Sprint(m.identity.ReportedCollectionCount)
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Purchases: %d/%s | Pages: %d",
		m.scrapeProgress.ItemsFetched,
		reported,
		m.scrapeProgress.PagesFetched,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	summary := fmt.Sprintf("Purchases: %d", m.scrapeProgress.ItemsFetched)
	if m.scrapeProgress.PagesFetched > 0 {
		summary += fmt.Sprintf(" | Pages: %d", m.scrapeProgress.PagesFetched)
	}
	if m.identity != nil {
		summary = m.identity.DisplayName + "\n" + summary
	}
	b.WriteString(boxStyle.Render(summary))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
		b.WriteString("\n")
	}
	if n := m.scrapeProgress.ItemsFetched; n > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("\n  %d purchases were fetched before the failure and can still be exported.", n)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case scrape.LevelError:
			style = errorStyle
			prefix = "✗"
		case scrape.LevelWarning:
			style = warningStyle
			prefix = "!"
		case scrape.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case scrape.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: fetch purchases • ctrl+t: test cookie • tab: verbose • esc: quit"
	case StateAuthenticating, StateScraping:
		return "esc: cancel"
	case StateComplete, StateError:
		return "c: csv • j: json • p: parquet • r: clear results • n: new scrape • q: quit"
	}
	return ""
}

func (m Model) testCookie() tea.Cmd {
	scraper, ctx, cookie := m.scraper, m.ctx, m.textInput.Value()
	return func() tea.Msg {
		identity, err := scraper.Authenticate(ctx, cookie)
		return AuthDoneMsg{Identity: identity, Err: err}
	}
}

// startScrape runs the whole harvest in the background.
func (m Model) startScrape() tea.Cmd {
	scraper, ctx, cookie := m.scraper, m.ctx, m.textInput.Value()
	return func() tea.Msg {
		final, err := scraper.Start(ctx, cookie)
		return ScrapeDoneMsg{Progress: final, Err: err}
	}
}

func (m Model) exportRows(format export.Format) tea.Cmd {
	scraper, dir := m.scraper, m.settings.ExportDir
	return func() tea.Msg {
		path, err := scraper.Export(context.Background(), format, dir)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

func (m Model) resetRows() tea.Cmd {
	scraper := m.scraper
	return func() tea.Msg {
		return ResetDoneMsg{Err: scraper.Reset(context.Background())}
	}
}

// Run starts the TUI application. Logs are discarded so they do not
// corrupt the alternate screen; user-facing events arrive as ProgressMsg.
func Run(ctx context.Context, settings *config.Settings) error {
	var p *tea.Program
	session, err := scrape.Open(ctx, settings, logging.Discard(), func(event scrape.ProgressEvent) {
		if p != nil {
			p.Send(ProgressMsg{Event: event})
		}
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if _, err := session.LoadCached(ctx); err != nil {
		return fmt.Errorf("load cached purchases: %w", err)
	}

	p = tea.NewProgram(NewModel(settings, session), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
