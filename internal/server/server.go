package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp"
	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
	"github.com/handiism/bandcamp-purchases/internal/export"
	"github.com/handiism/bandcamp-purchases/internal/model"
	"github.com/handiism/bandcamp-purchases/internal/scrape"
)

const maxPageCount = 500

// Session is the scrape state the API reads and drives.
type Session interface {
	Authenticate(ctx context.Context, rawCookie string) (model.ResolvedIdentity, error)
	// Launch claims the single scrape slot synchronously, or returns
	// scrape.ErrAlreadyRunning, and runs the scrape in the background.
	Launch(ctx context.Context, rawCookie string, done func(model.ScrapeProgress, error)) error
	Rows() []model.PurchaseRow
	Progress() model.ScrapeProgress
	RunID() string
	Reset(ctx context.Context) error
}

// PageFetcher proxies single collection pages for clients that paginate themselves.
type PageFetcher interface {
	CollectionItems(ctx context.Context, cookieHeader string, req dto.ItemsRequest) (*dto.ItemsPage, error)
}

// Server exposes the local purchase-export API.
type Server struct {
	session Session
	pages   PageFetcher
	logger  *slog.Logger

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer wires a server. pages may be nil, which disables the
// collection-items proxy.
func NewServer(session Session, pages PageFetcher, logger *slog.Logger) *Server {
	bg, cancel := context.WithCancel(context.Background())
	return &Server{
		session: session,
		pages:   pages,
		logger:  logger,
		bg:      bg,
		cancel:  cancel,
	}
}

// Close cancels any background scrape and waits for it to return.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Router configures all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api/bandcamp", func(r chi.Router) {
		r.Post("/collection-summary", s.handleCollectionSummary)
		r.Post("/collection-items", s.handleCollectionItems)

		// Scrapes run in the background; clients poll progress and rows.
		r.Post("/scrape", s.handleScrape)
		r.Get("/progress", s.handleProgress)
		r.Get("/rows", s.handleRows)
		r.Delete("/rows", s.handleReset)
		r.Get("/export", s.handleExport)
	})

	return r
}

type cookiePayload struct {
	IdentityCookie string `json:"identityCookie"`
	Cookie         string `json:"cookie"`
}

func (p cookiePayload) value() string {
	if v := strings.TrimSpace(p.IdentityCookie); v != "" {
		return v
	}
	return strings.TrimSpace(p.Cookie)
}

func decodeCookie(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload cookiePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return "", false
	}
	cookie := payload.value()
	if cookie == "" {
		writeError(w, http.StatusBadRequest, "identityCookie is required")
		return "", false
	}
	return cookie, true
}

func (s *Server) handleCollectionSummary(w http.ResponseWriter, r *http.Request) {
	cookie, ok := decodeCookie(w, r)
	if !ok {
		return
	}

	identity, err := s.session.Authenticate(r.Context(), cookie)
	if err != nil {
		s.logger.Warn("Collection summary failed", "error", err)
		writeError(w, statusFor(err), "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fanId":           identity.FanID,
		"name":            identity.DisplayName,
		"username":        identity.UsernameSlug,
		"collectionCount": identity.ReportedCollectionCount,
	})
}

func (s *Server) handleCollectionItems(w http.ResponseWriter, r *http.Request) {
	if s.pages == nil {
		writeError(w, http.StatusNotImplemented, "collection-items proxy is disabled")
		return
	}

	var payload struct {
		cookiePayload
		FanID          string  `json:"fanId"`
		OlderThanToken *string `json:"olderThanToken"`
		Count          int     `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}
	if payload.value() == "" || strings.TrimSpace(payload.FanID) == "" {
		writeError(w, http.StatusBadRequest, "identityCookie and fanId are required")
		return
	}

	header, err := bandcamp.CookieHeader(payload.value())
	if err != nil {
		writeError(w, statusFor(err), "%v", err)
		return
	}

	count := payload.Count
	if count <= 0 {
		count = bandcamp.DefaultPageSize
	}
	count = min(count, maxPageCount)

	page, err := s.pages.CollectionItems(r.Context(), header, dto.ItemsRequest{
		FanID:          payload.FanID,
		OlderThanToken: payload.OlderThanToken,
		Count:          count,
	})
	if err != nil {
		s.logger.Warn("Collection items proxy failed", "fan_id", payload.FanID, "error", err)
		writeError(w, statusFor(err), "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":              rawItems(page.Items),
		"moreAvailable":      bool(page.MoreAvailable),
		"nextOlderThanToken": page.NextToken(),
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	cookie, ok := decodeCookie(w, r)
	if !ok {
		return
	}

	s.wg.Add(1)
	err := s.session.Launch(s.bg, cookie, func(progress model.ScrapeProgress, err error) {
		defer s.wg.Done()
		if err != nil {
			s.logger.Warn("Background scrape failed", "error", err, "pages", progress.PagesFetched)
			return
		}
		s.logger.Info("Background scrape finished", "items", progress.ItemsFetched, "pages", progress.PagesFetched)
	})
	if err != nil {
		s.wg.Done()
		writeError(w, statusFor(err), "%v", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   model.StatusScraping,
		"progress": s.session.Progress(),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Progress())
}

func (s *Server) handleRows(w http.ResponseWriter, _ *http.Request) {
	rows := s.session.Rows()
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":     s.session.RunID(),
		"count":     len(rows),
		"progress":  s.session.Progress(),
		"purchases": rows,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(r.Context()); err != nil {
		writeError(w, statusFor(err), "%v", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.FormatCSV
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := export.ParseFormat(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		format = f
	}

	rows := s.session.Rows()
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "%v", scrape.ErrNoRows)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(format, time.Now())))
	if err := export.NewExporter(format, s.session.RunID()).Write(w, rows); err != nil {
		// Headers are gone already; all that is left is the log.
		s.logger.Error("Export stream failed", "format", format.String(), "error", err)
	}
}

// rawItems forwards records exactly as Bandcamp sent them.
func rawItems(items []dto.JSONItem) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if len(item.Raw) > 0 {
			out = append(out, item.Raw)
		}
	}
	return out
}

func statusFor(err error) int {
	var authErr *bandcamp.AuthError
	var apiErr *bandcamp.APIError
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.Is(err, scrape.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// writeError keeps the flat {"error": "..."} shape browser clients already read.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error":  strings.TrimSpace(fmt.Sprintf(format, args...)),
		"status": status,
	})
}
