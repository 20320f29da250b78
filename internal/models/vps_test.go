package models

import "testing"

func TestSpecsValidate(t *testing.T) {
	good := Specs{RAMMB: 512, DiskGB: 10, CPUCores: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid specs rejected: %v", err)
	}
	for _, s := range []Specs{
		{RAMMB: 0, DiskGB: 10, CPUCores: 1},
		{RAMMB: 512, DiskGB: 0, CPUCores: 1},
		{RAMMB: 512, DiskGB: 10, CPUCores: -2},
	} {
		if err := s.Validate(); err == nil {
			t.Fatalf("expected error for %+v", s)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	v := &VPS{ID: "vps-1", OwnerID: "u", Status: StatusOffline}
	c := v.Clone()
	c.Status = StatusOnline
	if v.Status != StatusOffline {
		t.Fatalf("clone mutation leaked into original")
	}
}
