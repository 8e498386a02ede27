package bandcamp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
	"github.com/handiism/bandcamp-purchases/internal/model"
)

const (
	// DefaultPageSize is the number of items requested per page.
	DefaultPageSize = 100

	// DefaultMaxPages bounds a single pass against a misbehaving upstream.
	DefaultMaxPages = 500

	// DefaultPageDelay is the courtesy pause between paginated calls.
	DefaultPageDelay = 300 * time.Millisecond

	// SentinelToken is a token from the far future, which Bandcamp's own
	// collection grid sends to mean "most recent first".
	SentinelToken = "9999999999::a::"
)

// Options tunes the harvester's pagination loop.
type Options struct {
	// PageSize is the item count requested per page. Zero uses DefaultPageSize.
	PageSize int

	// MaxPages is the per-pass page limit. Zero uses DefaultMaxPages.
	MaxPages int

	// PageDelay is waited between pages. Zero disables the delay.
	PageDelay time.Duration
}

// DefaultOptions returns the options used by the CLI and TUI.
func DefaultOptions() Options {
	return Options{
		PageSize:  DefaultPageSize,
		MaxPages:  DefaultMaxPages,
		PageDelay: DefaultPageDelay,
	}
}

// BatchFunc receives the accumulated, deduplicated rows and the current
// progress after every page, plus once at start and once at the end.
//
// It runs synchronously before the next page is requested. The rows slice
// must be treated as read-only.
type BatchFunc func(rows []model.PurchaseRow, progress model.ScrapeProgress)

// Harvester walks a fan's visible and hidden collection.
//
// The visible pass runs first and must succeed; the hidden pass runs after
// it and its failures are only logged. Within a pass, pages are requested one
// at a time using Bandcamp's older_than_token pagination.
//
// Example usage:
//
//	h := bandcamp.NewHarvester(client, bandcamp.DefaultOptions(), logger)
//	progress, err := h.Harvest(ctx, identity, func(rows []model.PurchaseRow, p model.ScrapeProgress) {
//	    fmt.Printf("%d items from %d pages\n", p.ItemsFetched, p.PagesFetched)
//	})
type Harvester struct {
	upstream Upstream
	opts     Options
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewHarvester creates a Harvester. A nil logger uses slog.Default().
func NewHarvester(upstream Upstream, opts Options, logger *slog.Logger) *Harvester {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{
		upstream: upstream,
		opts:     opts,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// passSpec describes one independent pagination pass.
type passSpec struct {
	name         string
	hidden       bool
	seedSentinel bool
	// requireItems makes an empty first page an ErrNoItems failure.
	requireItems bool
	fetch        func(ctx context.Context, cookieHeader string, req dto.ItemsRequest) (*dto.ItemsPage, error)
}

// harvestRun is the state of one Harvest call.
type harvestRun struct {
	h        *Harvester
	identity model.ResolvedIdentity
	onBatch  BatchFunc
	logger   *slog.Logger

	rows     []model.PurchaseRow
	dedupe   Deduper
	progress model.ScrapeProgress
}

// Harvest fetches the whole collection for identity.
//
// The returned progress is terminal: StatusCompleted, or StatusError with the
// message set. A non-nil error is returned alongside StatusError; it is an
// *APIError for visible-pass failures, or the context error on cancellation.
func (h *Harvester) Harvest(ctx context.Context, identity model.ResolvedIdentity, onBatch BatchFunc) (model.ScrapeProgress, error) {
	run := &harvestRun{
		h:        h,
		identity: identity,
		onBatch:  onBatch,
		logger:   h.logger.With("fan_id", identity.FanID),
		progress: model.ScrapeProgress{Status: model.StatusScraping},
	}
	run.publish()

	if err := run.visible(ctx); err != nil {
		return run.fail(err)
	}

	if err := run.hidden(ctx); err != nil {
		return run.fail(err)
	}

	run.progress.Status = model.StatusCompleted
	run.publish()
	run.logger.Info("Harvest completed",
		"items", run.progress.ItemsFetched,
		"pages", run.progress.PagesFetched)
	return run.progress, nil
}

// visible runs the API pass and, if it produced nothing, the page strategies.
func (r *harvestRun) visible(ctx context.Context) error {
	pass := passSpec{
		name:         "collection_items",
		seedSentinel: true,
		requireItems: true,
		fetch:        r.h.upstream.CollectionItems,
	}

	n, err := r.runPass(ctx, pass)
	if err == nil {
		return nil
	}
	if n > 0 || ctx.Err() != nil {
		return err
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}

	r.logger.Warn("Collection API produced no items, trying profile page", "error", err)
	return r.extractProfile(ctx, err)
}

// extractProfile fetches the profile page once and takes whatever the first
// successful page strategy finds. There is no pagination past this point.
func (r *harvestRun) extractProfile(ctx context.Context, apiErr error) error {
	page, err := r.h.upstream.Profile(ctx, r.identity)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Source: "profile page", Err: errors.Join(apiErr, err)}
	}

	ext, err := ExtractPageItems(page)
	if err != nil {
		r.logger.Warn("Profile page strategies found nothing", "error", err)
		return &APIError{Source: "collection", Err: errors.Join(apiErr, err)}
	}

	r.logger.Info("Extracted items from profile page", "strategy", ext.Strategy, "items", len(ext.Items))
	r.absorb(ext.Items, false)
	return nil
}

// hidden runs the hidden-items pass. Only cancellation is fatal here.
func (r *harvestRun) hidden(ctx context.Context) error {
	pass := passSpec{
		name:   "hidden_items",
		hidden: true,
		fetch:  r.h.upstream.HiddenItems,
	}

	if _, err := r.runPass(ctx, pass); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("Hidden items unavailable, continuing with visible items", "error", err)
	}
	return nil
}

// runPass pages through one source until it is exhausted, fails, or hits
// the page limit. It returns the number of raw items the pass received.
func (r *harvestRun) runPass(ctx context.Context, pass passSpec) (int, error) {
	var token *string
	if pass.seedSentinel {
		t := SentinelToken
		token = &t
	}

	received := 0
	for page := 1; page <= r.h.opts.MaxPages; page++ {
		if page > 1 && r.h.opts.PageDelay > 0 {
			if err := r.h.sleep(ctx, r.h.opts.PageDelay); err != nil {
				return received, err
			}
		}

		resp, err := r.fetch(ctx, pass, token)
		if err != nil {
			return received, &APIError{Source: pass.name, Page: page, Err: err}
		}

		// Bandcamp is inconsistent about how "start of collection" is spelled;
		// an empty first page for the sentinel gets one retry from null.
		if len(resp.Items) == 0 && page == 1 && pass.seedSentinel && token != nil {
			r.logger.Debug("Sentinel token returned no items, retrying from start", "source", pass.name)
			token = nil
			resp, err = r.fetch(ctx, pass, nil)
			if err != nil {
				return received, &APIError{Source: pass.name, Page: page, Err: err}
			}
		}

		if len(resp.Items) == 0 {
			if received == 0 && pass.requireItems {
				return 0, &APIError{Source: pass.name, Page: page, Err: ErrNoItems}
			}
			if received == 0 {
				r.logger.Debug("No items in pass", "source", pass.name)
			}
			return received, nil
		}

		received += len(resp.Items)
		r.absorb(resp.Items, pass.hidden)

		next := resp.NextToken()
		if !resp.MoreAvailable || next == nil {
			return received, nil
		}
		if token != nil && *next == *token {
			r.logger.Warn("Upstream repeated the same token, stopping pass", "source", pass.name, "page", page)
			return received, nil
		}
		token = next
	}

	r.logger.Warn("Page limit reached, stopping pass", "source", pass.name, "max_pages", r.h.opts.MaxPages)
	return received, nil
}

func (r *harvestRun) fetch(ctx context.Context, pass passSpec, token *string) (*dto.ItemsPage, error) {
	r.logger.Debug("Fetching page", "source", pass.name, "has_token", token != nil)
	return pass.fetch(ctx, r.identity.CookieHeader, dto.ItemsRequest{
		FanID:          r.identity.FanID,
		OlderThanToken: token,
		Count:          r.h.opts.PageSize,
	})
}

// absorb normalizes a batch, merges it into the deduplicated rows and
// publishes the new state.
func (r *harvestRun) absorb(items []dto.JSONItem, hidden bool) {
	r.rows = r.dedupe.Add(r.rows, NormalizeAll(items, hidden))
	r.progress.PagesFetched++
	r.progress.ItemsFetched = len(r.rows)
	r.publish()
}

func (r *harvestRun) fail(err error) (model.ScrapeProgress, error) {
	r.progress.Status = model.StatusError
	r.progress.Error = err.Error()
	r.publish()
	r.logger.Error("Harvest failed", "error", err, "items", r.progress.ItemsFetched)
	return r.progress, err
}

func (r *harvestRun) publish() {
	if r.onBatch != nil {
		r.onBatch(r.rows[:len(r.rows):len(r.rows)], r.progress)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
