package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/handiism/bandcamp-purchases/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

func TestStore_KeyValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v2" {
		t.Errorf("Get = %q, %v; want v2", got, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
}

func TestStore_Rows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.LoadRows(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadRows on empty cache error = %v", err)
	}

	date := "01 Jan 2023 00:00:00 GMT"
	rows := []model.PurchaseRow{
		{PurchaseKey: "a:1:" + date, PurchaseDate: &date, ItemType: model.ItemTypeAlbum, ItemID: "1", Title: "One"},
		{PurchaseKey: "t:2:unknown", ItemType: model.ItemTypeTrack, ItemID: "2", IsHidden: true, RawItem: []byte(`{"item_id":2}`)},
	}
	if err := s.SaveRows(ctx, rows); err != nil {
		t.Fatalf("SaveRows failed: %v", err)
	}

	got, err := s.LoadRows(ctx)
	if err != nil {
		t.Fatalf("LoadRows failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].PurchaseKey != rows[0].PurchaseKey || got[0].PurchaseDateOrEmpty() != date {
		t.Errorf("row 0 = %+v", got[0])
	}
	if !got[1].IsHidden || got[1].PurchaseDate != nil || string(got[1].RawItem) != `{"item_id":2}` {
		t.Errorf("row 1 = %+v", got[1])
	}

	if err := s.ClearRows(ctx); err != nil {
		t.Fatalf("ClearRows failed: %v", err)
	}
	if _, err := s.LoadRows(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadRows after clear error = %v", err)
	}
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := Run{ID: "r1", FanID: "42", Status: model.StatusScraping, StartedAt: base, FinishedAt: base}
	second := Run{ID: "r2", FanID: "42", Status: model.StatusError, Error: "boom", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour)}
	for _, r := range []Run{first, second} {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}

	first.Status = model.StatusCompleted
	first.ItemsFetched = 10
	first.PagesFetched = 2
	first.FinishedAt = base.Add(time.Minute)
	if err := s.RecordRun(ctx, first); err != nil {
		t.Fatalf("RecordRun update failed: %v", err)
	}

	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "r2" || runs[0].Error != "boom" {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].Status != model.StatusCompleted || runs[1].ItemsFetched != 10 || !runs[1].FinishedAt.Equal(first.FinishedAt) {
		t.Errorf("updated run = %+v", runs[1])
	}
}
