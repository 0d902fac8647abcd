package model

import (
	"time"

	"github.com/google/uuid"
)

// ResourceType names a shareable resource kind.
type ResourceType string

// Resource types.
const (
	TypeChecklist ResourceType = "checklist"
	TypeBudget    ResourceType = "budget"
)

// ParseResourceType converts s into a ResourceType.
func ParseResourceType(s string) (ResourceType, bool) {
	switch ResourceType(s) {
	case TypeChecklist:
		return TypeChecklist, true
	case TypeBudget:
		return TypeBudget, true
	}
	return "", false
}

// Ref identifies a resource of a given type.
type Ref struct {
	Type ResourceType `json:"type"`
	ID   uuid.UUID    `json:"id"`
}

// Status is a resource lifecycle state.
type Status string

// Lifecycle is the status machine of one resource type.
type Lifecycle interface {
	Initial() Status
	// Terminal is the single "done" state. completed_at is set exactly while a
	// resource is in it.
	Terminal() Status
	Valid(Status) bool
}

// Resource is implemented by every shareable entity.
type Resource interface {
	Ref() Ref
	Owner() uuid.UUID
	CurrentStatus() Status
	Lifecycle() Lifecycle
	CompletedTime() *time.Time
}

// LifecycleOf returns the status machine for t.
func LifecycleOf(t ResourceType) Lifecycle {
	switch t {
	case TypeChecklist:
		return ChecklistLifecycle
	case TypeBudget:
		return BudgetLifecycle
	}
	return nil
}

type lifecycle struct {
	initial  Status
	terminal Status
	all      []Status
}

func (l lifecycle) Initial() Status  { return l.initial }
func (l lifecycle) Terminal() Status { return l.terminal }

func (l lifecycle) Valid(s Status) bool {
	for _, v := range l.all {
		if v == s {
			return true
		}
	}
	return false
}
