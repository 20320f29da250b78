package models

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a VPS.
type Status string

const (
	StatusOffline   Status = "offline"
	StatusOnline    Status = "online"
	StatusRebooting Status = "rebooting"
)

// Specs are the resource dimensions of a VPS. Immutable after creation;
// there is no resize operation.
type Specs struct {
	RAMMB    int `json:"ram_mb"`
	DiskGB   int `json:"disk_gb"`
	CPUCores int `json:"cpu_cores"`
}

// Validate checks that every dimension is positive.
func (s Specs) Validate() error {
	if s.RAMMB <= 0 {
		return fmt.Errorf("ram_mb must be positive, got %d", s.RAMMB)
	}
	if s.DiskGB <= 0 {
		return fmt.Errorf("disk_gb must be positive, got %d", s.DiskGB)
	}
	if s.CPUCores <= 0 {
		return fmt.Errorf("cpu_cores must be positive, got %d", s.CPUCores)
	}
	return nil
}

func (s Specs) String() string {
	return fmt.Sprintf("%dMB RAM / %dGB disk / %d vCPU", s.RAMMB, s.DiskGB, s.CPUCores)
}

// VPS is the core domain object: one provisioned (simulated) server,
// owned by exactly one chat user. Shared between the registry, the
// lifecycle controller, and the storage layer.
type VPS struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Specs      Specs     `json:"specs"`
	Status     Status    `json:"status"`
	Credential string    `json:"credential"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand out to callers that must not retain
// a reference to the registry-owned record.
func (v *VPS) Clone() *VPS {
	out := *v
	return &out
}
