// Package domain holds the workspace (tenant) entity.
package domain

import (
	"errors"
	"time"
)

// Workspace represents a tenant. Created in PROVISIONING; an asynchronous
// confirmation event moves it to ACTIVE; deletion passes through DELETING.
type Workspace struct {
	ID        string
	Name      string
	Status    Status
	Plan      Plan
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Status string

const (
	StatusProvisioning Status = "PROVISIONING"
	StatusActive       Status = "ACTIVE"
	StatusDeleting     Status = "DELETING"
)

type Plan string

const (
	PlanStarter Plan = "STARTER"
	PlanPro     Plan = "PRO"
)

// Validate validates the workspace for persistence.
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return errors.New("id is required")
	}
	if w.Status == "" {
		w.Status = StatusProvisioning
	}
	if w.Plan == "" {
		w.Plan = PlanStarter
	}
	return nil
}
