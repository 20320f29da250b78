package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flashzynex-dot/vps-bot/internal/events"
	"github.com/flashzynex-dot/vps-bot/internal/metrics"
	"github.com/flashzynex-dot/vps-bot/internal/models"
	"github.com/flashzynex-dot/vps-bot/internal/registry"
)

// DefaultRebootDelay is how long a reboot keeps a record in rebooting
// before the deferred transition brings it back online.
const DefaultRebootDelay = 5 * time.Second

// Controller executes state transitions against records resolved
// through the registry. Every action on one owner is serialized by a
// per-owner op lock; the deferred leg of reboot takes the same lock, so
// a find-then-mutate sequence is never interleaved for one record.
type Controller struct {
	reg   *registry.Registry
	bus   *events.Publisher
	log   *zap.Logger
	delay time.Duration

	// operations mutex per owner id
	opMu sync.Map

	genMu sync.Mutex
	// generation per owner, bumped on every action. A deferred reboot
	// transition only lands if no later action superseded it.
	gen map[string]uint64
}

func New(reg *registry.Registry, bus *events.Publisher, log *zap.Logger, delay time.Duration) *Controller {
	if delay <= 0 {
		delay = DefaultRebootDelay
	}
	return &Controller{
		reg:   reg,
		bus:   bus,
		log:   log,
		delay: delay,
		gen:   make(map[string]uint64),
	}
}

// Status resolves the owner's record without mutating it.
func (c *Controller) Status(ctx context.Context, ownerID string) (*models.VPS, error) {
	return c.reg.Find(ctx, ownerID)
}

// Start brings the record online. Idempotent, valid from every state.
func (c *Controller) Start(ctx context.Context, ownerID string) (*models.VPS, error) {
	return c.apply(ctx, ownerID, models.StatusOnline)
}

// Shutdown takes the record offline. Idempotent, valid from every state.
func (c *Controller) Shutdown(ctx context.Context, ownerID string) (*models.VPS, error) {
	return c.apply(ctx, ownerID, models.StatusOffline)
}

// Reboot marks the record rebooting, returns immediately, and schedules
// the deferred transition back to online. Any action issued before the
// timer fires supersedes it: a shutdown during a reboot sticks, and a
// second reboot replaces the first timer rather than racing it.
func (c *Controller) Reboot(ctx context.Context, ownerID string) (*models.VPS, error) {
	mtx := c.lockOwner(ownerID)
	defer mtx.Unlock()

	v, err := c.reg.Find(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	gen := c.bumpGen(ownerID)
	c.transition(ctx, v, models.StatusRebooting)

	time.AfterFunc(c.delay, func() {
		c.completeReboot(ownerID, gen)
	})
	return v, nil
}

// completeReboot is the deferred leg of Reboot.
func (c *Controller) completeReboot(ownerID string, gen uint64) {
	mtx := c.lockOwner(ownerID)
	defer mtx.Unlock()

	if c.currentGen(ownerID) != gen {
		c.log.Debug("reboot superseded", zap.String("owner", ownerID))
		return
	}

	ctx := context.Background()
	v, err := c.reg.Find(ctx, ownerID)
	if err != nil {
		c.log.Warn("reboot completion lost record", zap.String("owner", ownerID), zap.Error(err))
		return
	}
	c.transition(ctx, v, models.StatusOnline)
}

// apply performs an immediate unconditional transition.
func (c *Controller) apply(ctx context.Context, ownerID string, to models.Status) (*models.VPS, error) {
	mtx := c.lockOwner(ownerID)
	defer mtx.Unlock()

	v, err := c.reg.Find(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	c.bumpGen(ownerID) // cancels any pending reboot timer
	if v.Status == to {
		return v, nil
	}
	c.transition(ctx, v, to)
	return v, nil
}

// transition mutates and persists under the caller-held op lock. Once a
// record is resolved the mutation cannot fail; a store write error is
// logged and the in-memory state stands.
func (c *Controller) transition(ctx context.Context, v *models.VPS, to models.Status) {
	from := v.Status
	v.Status = to
	v.Version++
	v.UpdatedAt = time.Now().UTC()

	if err := c.reg.Update(ctx, v); err != nil {
		c.log.Error("persist transition", zap.String("id", v.ID), zap.Error(err))
	}
	metrics.TransitionsTotal.WithLabelValues(string(to)).Inc()
	c.log.Info("transition",
		zap.String("id", v.ID),
		zap.String("owner", v.OwnerID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	if err := c.bus.Publish(ctx, events.SubjectState, events.Event{
		Kind:    "vps.state",
		VPSID:   v.ID,
		OwnerID: v.OwnerID,
		Status:  string(to),
	}); err != nil {
		c.log.Warn("publish state event", zap.Error(err))
	}
}

// lockOwner ensures only one op per owner at a time.
func (c *Controller) lockOwner(ownerID string) *sync.Mutex {
	v, _ := c.opMu.LoadOrStore(ownerID, &sync.Mutex{})
	mtx := v.(*sync.Mutex)
	mtx.Lock()
	return mtx
}

func (c *Controller) bumpGen(ownerID string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.gen[ownerID]++
	return c.gen[ownerID]
}

func (c *Controller) currentGen(ownerID string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gen[ownerID]
}
