package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/flashzynex-dot/vps-bot/internal/models"
)

func TestSaveGetRoundtrip(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	v := &models.VPS{
		ID:         "vps-1",
		OwnerID:    "user-42",
		Specs:      models.Specs{RAMMB: 512, DiskGB: 10, CPUCores: 1},
		Status:     models.StatusOffline,
		Credential: "ssh root@vps-1 key=abc",
		Version:    1,
	}
	if err := store.SaveVPS(ctx, v); err != nil {
		t.Fatalf("save err: %v", err)
	}

	got, err := store.GetVPS(ctx, "user-42")
	if err != nil {
		t.Fatalf("get err: %v", err)
	}
	if got.ID != "vps-1" || got.Status != models.StatusOffline || got.Specs.RAMMB != 512 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()

	_, err = store.GetVPS(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListVPS(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, owner := range []string{"a", "b", "c"} {
		v := &models.VPS{ID: "vps-" + owner, OwnerID: owner, Status: models.StatusOffline}
		if err := store.SaveVPS(ctx, v); err != nil {
			t.Fatalf("save %s: %v", owner, err)
		}
	}

	recs, err := store.ListVPS(ctx)
	if err != nil {
		t.Fatalf("list err: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func TestNextIDMonotonic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}

	ctx := context.Background()
	var last uint64
	for i := 0; i < 5; i++ {
		n, err := store.NextID(ctx)
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		if n <= last {
			t.Fatalf("id %d not greater than %d", n, last)
		}
		last = n
	}
	if last != 5 {
		t.Fatalf("expected dense ids ending at 5, got %d", last)
	}
	store.Close()

	// counter must survive a reopen
	store, err = NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("reopen badger: %v", err)
	}
	defer store.Close()
	n, err := store.NextID(ctx)
	if err != nil {
		t.Fatalf("next id after reopen: %v", err)
	}
	if n <= last {
		t.Fatalf("id %d after reopen not greater than %d", n, last)
	}
}
