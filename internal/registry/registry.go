package registry

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flashzynex-dot/vps-bot/internal/metrics"
	"github.com/flashzynex-dot/vps-bot/internal/models"
	"github.com/flashzynex-dot/vps-bot/internal/storage"
)

var (
	// ErrAlreadyExists is returned when an owner already has a record.
	ErrAlreadyExists = errors.New("owner already has a vps")
	// ErrNotFound is returned when an owner has no record.
	ErrNotFound = errors.New("vps not found")
)

// Registry owns the owner -> VPS mapping. Every record lives here;
// other components receive clones and must persist mutations through
// Update so the cache and the store never diverge.
type Registry struct {
	store storage.Store
	log   *zap.Logger

	mu sync.RWMutex
	// in-memory cache of records to avoid hot DB on reads; persisted in store.
	cache map[string]*models.VPS
}

func New(store storage.Store, log *zap.Logger) *Registry {
	return &Registry{
		store: store,
		log:   log,
		cache: make(map[string]*models.VPS),
	}
}

// Create provisions a new record for ownerID. Fails with
// ErrAlreadyExists if the owner has one; never overwrites.
func (r *Registry) Create(ctx context.Context, ownerID string, specs models.Specs) (*models.VPS, error) {
	if ownerID == "" {
		return nil, errors.New("owner id required")
	}
	if err := specs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid specs: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cache[ownerID]; ok {
		return nil, ErrAlreadyExists
	}
	if _, err := r.store.GetVPS(ctx, ownerID); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup: %w", err)
	}

	n, err := r.store.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate id: %w", err)
	}
	id := fmt.Sprintf("vps-%d", n)

	now := time.Now().UTC()
	v := &models.VPS{
		ID:         id,
		OwnerID:    ownerID,
		Specs:      specs,
		Status:     models.StatusOffline,
		Credential: deriveCredential(ownerID, id),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.store.SaveVPS(ctx, v); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	r.cache[ownerID] = v
	metrics.RecordsGauge.Inc()
	r.log.Info("vps created", zap.String("id", id), zap.String("owner", ownerID))
	return v.Clone(), nil
}

// Find returns a clone of the owner's record, or ErrNotFound. Absence
// is a normal outcome for callers, not a fault.
func (r *Registry) Find(ctx context.Context, ownerID string) (*models.VPS, error) {
	r.mu.RLock()
	if v, ok := r.cache[ownerID]; ok {
		r.mu.RUnlock()
		return v.Clone(), nil
	}
	r.mu.RUnlock()

	v, err := r.store.GetVPS(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	r.mu.Lock()
	r.cache[ownerID] = v
	r.mu.Unlock()
	return v.Clone(), nil
}

// Update persists a mutated record. Reserved for the lifecycle
// controller; the command surface never writes status directly.
func (r *Registry) Update(ctx context.Context, v *models.VPS) error {
	if err := r.store.SaveVPS(ctx, v); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	r.mu.Lock()
	r.cache[v.OwnerID] = v.Clone()
	r.mu.Unlock()
	return nil
}

// List returns clones of every record.
func (r *Registry) List(ctx context.Context) ([]*models.VPS, error) {
	recs, err := r.store.ListVPS(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.VPS, len(recs))
	for i, v := range recs {
		out[i] = v.Clone()
	}
	return out, nil
}

// ReconcileStartup runs once at boot: any record left in rebooting by a
// previous process lost its deferred transition, so settle it online.
// Also primes the record gauge.
func (r *Registry) ReconcileStartup(ctx context.Context) (int, error) {
	recs, err := r.store.ListVPS(ctx)
	if err != nil {
		return 0, err
	}
	metrics.RecordsGauge.Set(float64(len(recs)))

	fixed := 0
	for _, v := range recs {
		if v.Status != models.StatusRebooting {
			continue
		}
		v.Status = models.StatusOnline
		v.Version++
		v.UpdatedAt = time.Now().UTC()
		if err := r.Update(ctx, v); err != nil {
			return fixed, err
		}
		r.log.Info("settled interrupted reboot", zap.String("id", v.ID), zap.String("owner", v.OwnerID))
		fixed++
	}
	return fixed, nil
}

// deriveCredential builds the opaque connection string handed to the
// owner. Deterministic in (ownerID, id) so re-reads always agree.
func deriveCredential(ownerID, id string) string {
	sum := sha256.Sum256([]byte(ownerID + "/" + id))
	return fmt.Sprintf("ssh root@%s.vps.flashzynex.dev key=%x", id, sum[:12])
}
