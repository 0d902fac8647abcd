package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checklist statuses.
const (
	ChecklistPending    Status = "pending"
	ChecklistInProgress Status = "in_progress"
	ChecklistCompleted  Status = "completed"
	ChecklistCancelled  Status = "cancelled"
)

// ChecklistLifecycle is the checklist status machine.
var ChecklistLifecycle Lifecycle = lifecycle{
	initial:  ChecklistPending,
	terminal: ChecklistCompleted,
	all:      []Status{ChecklistPending, ChecklistInProgress, ChecklistCompleted, ChecklistCancelled},
}

// Priority is a checklist's urgency.
type Priority string

// Priorities.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Checklist is a vehicle inspection checklist.
type Checklist struct {
	ID                  uuid.UUID  `json:"id"`
	MechanicID          uuid.UUID  `json:"mechanic_id"`
	CustomerName        string     `json:"customer_name"`
	Plate               string     `json:"plate"`
	VehicleName         string     `json:"vehicle_name"`
	Priority            Priority   `json:"priority"`
	Status              Status     `json:"status"`
	GeneralObservations string     `json:"general_observations,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	// Joined fields (not always populated).
	MechanicName string          `json:"mechanic_name,omitempty"`
	Items        []ChecklistItem `json:"items,omitempty"`
	PhotoIDs     []uuid.UUID     `json:"photo_ids,omitempty"`
}

func (c *Checklist) Ref() Ref                  { return Ref{Type: TypeChecklist, ID: c.ID} }
func (c *Checklist) Owner() uuid.UUID          { return c.MechanicID }
func (c *Checklist) CurrentStatus() Status     { return c.Status }
func (c *Checklist) Lifecycle() Lifecycle      { return ChecklistLifecycle }
func (c *Checklist) CompletedTime() *time.Time { return c.CompletedAt }

// Progress returns the checked and total item counts.
func (c *Checklist) Progress() Progress {
	p := Progress{Total: len(c.Items)}
	for _, it := range c.Items {
		if it.Checked {
			p.Checked++
		}
	}
	return p
}

// ChecklistItem is one inspection point of a checklist.
type ChecklistItem struct {
	ID          uuid.UUID `json:"id"`
	ChecklistID uuid.UUID `json:"checklist_id"`
	Name        string    `json:"item_name"`
	Category    string    `json:"category"`
	Checked     bool      `json:"checked"`
	Observation string    `json:"observation,omitempty"`
	Position    int       `json:"position"`
}

// Progress counts checked items.
type Progress struct {
	Checked int `json:"checked"`
	Total   int `json:"total"`
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Checked, p.Total)
}

// Percent returns the checked share rounded down, 0 for an empty checklist.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Checked * 100 / p.Total
}
