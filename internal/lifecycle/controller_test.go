package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/flashzynex-dot/vps-bot/internal/models"
	"github.com/flashzynex-dot/vps-bot/internal/registry"
	"github.com/flashzynex-dot/vps-bot/internal/storage"
)

const testDelay = 50 * time.Millisecond

func newTestController(t *testing.T) (*Controller, *registry.Registry) {
	t.Helper()
	store, err := storage.NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	reg := registry.New(store, zap.NewNop())
	return New(reg, nil, zap.NewNop(), testDelay), reg
}

func provision(t *testing.T, reg *registry.Registry, owner string) *models.VPS {
	t.Helper()
	v, err := reg.Create(context.Background(), owner, models.Specs{RAMMB: 512, DiskGB: 10, CPUCores: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return v
}

func mustStatus(t *testing.T, reg *registry.Registry, owner string, want models.Status) {
	t.Helper()
	v, err := reg.Find(context.Background(), owner)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if v.Status != want {
		t.Fatalf("expected %s got %s", want, v.Status)
	}
}

func TestStartShutdownSequence(t *testing.T) {
	ctl, reg := newTestController(t)
	ctx := context.Background()
	provision(t, reg, "user-1")

	v, err := ctl.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("start err: %v", err)
	}
	if v.Status != models.StatusOnline {
		t.Fatalf("expected online got %s", v.Status)
	}

	if _, err := ctl.Shutdown(ctx, "user-1"); err != nil {
		t.Fatalf("shutdown err: %v", err)
	}
	mustStatus(t, reg, "user-1", models.StatusOffline)

	if _, err := ctl.Start(ctx, "user-1"); err != nil {
		t.Fatalf("second start err: %v", err)
	}
	mustStatus(t, reg, "user-1", models.StatusOnline)
}

func TestStartIdempotent(t *testing.T) {
	ctl, reg := newTestController(t)
	ctx := context.Background()
	provision(t, reg, "user-1")

	if _, err := ctl.Start(ctx, "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	before, _ := reg.Find(ctx, "user-1")
	if _, err := ctl.Start(ctx, "user-1"); err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	after, _ := reg.Find(ctx, "user-1")
	if after.Status != models.StatusOnline {
		t.Fatalf("expected online got %s", after.Status)
	}
	if after.Version != before.Version {
		t.Fatalf("no-op start must not bump version: %d vs %d", after.Version, before.Version)
	}
}

func TestActionWithoutRecord(t *testing.T) {
	ctl, _ := newTestController(t)
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context, string) (*models.VPS, error){
		"start":    ctl.Start,
		"shutdown": ctl.Shutdown,
		"reboot":   ctl.Reboot,
		"status":   ctl.Status,
	} {
		if _, err := fn(ctx, "ghost"); !errors.Is(err, registry.ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestRebootDeferredTransition(t *testing.T) {
	ctl, reg := newTestController(t)
	ctx := context.Background()
	provision(t, reg, "user-1")

	v, err := ctl.Reboot(ctx, "user-1")
	if err != nil {
		t.Fatalf("reboot err: %v", err)
	}
	if v.Status != models.StatusRebooting {
		t.Fatalf("immediately after reboot expected rebooting, got %s", v.Status)
	}
	mustStatus(t, reg, "user-1", models.StatusRebooting)

	time.Sleep(3 * testDelay)
	mustStatus(t, reg, "user-1", models.StatusOnline)
}

func TestShutdownDuringRebootSticks(t *testing.T) {
	ctl, reg := newTestController(t)
	ctx := context.Background()
	provision(t, reg, "user-1")

	if _, err := ctl.Reboot(ctx, "user-1"); err != nil {
		t.Fatalf("reboot err: %v", err)
	}
	if _, err := ctl.Shutdown(ctx, "user-1"); err != nil {
		t.Fatalf("shutdown err: %v", err)
	}
	mustStatus(t, reg, "user-1", models.StatusOffline)

	// the deferred transition must not fire over the shutdown
	time.Sleep(3 * testDelay)
	mustStatus(t, reg, "user-1", models.StatusOffline)
}

func TestRebootReplacesPendingReboot(t *testing.T) {
	ctl, reg := newTestController(t)
	ctx := context.Background()
	provision(t, reg, "user-1")

	if _, err := ctl.Reboot(ctx, "user-1"); err != nil {
		t.Fatalf("first reboot: %v", err)
	}
	time.Sleep(testDelay / 2)
	if _, err := ctl.Reboot(ctx, "user-1"); err != nil {
		t.Fatalf("second reboot: %v", err)
	}

	// after the first timer would have fired, the second reboot is
	// still pending
	time.Sleep(3 * testDelay / 4)
	mustStatus(t, reg, "user-1", models.StatusRebooting)

	time.Sleep(3 * testDelay)
	mustStatus(t, reg, "user-1", models.StatusOnline)
}
