package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Budget statuses.
const (
	BudgetPending   Status = "pending"
	BudgetApproved  Status = "approved"
	BudgetRejected  Status = "rejected"
	BudgetCancelled Status = "cancelled"
)

// BudgetLifecycle is the budget status machine. Approval is the done state.
var BudgetLifecycle Lifecycle = lifecycle{
	initial:  BudgetPending,
	terminal: BudgetApproved,
	all:      []Status{BudgetPending, BudgetApproved, BudgetRejected, BudgetCancelled},
}

// Budget is a repair quote.
type Budget struct {
	ID            uuid.UUID  `json:"id"`
	Number        int64      `json:"number"`
	MechanicID    uuid.UUID  `json:"mechanic_id"`
	CustomerName  string     `json:"customer_name"`
	Plate         string     `json:"plate"`
	VehicleName   string     `json:"vehicle_name"`
	Status        Status     `json:"status"`
	DiscountCents int64      `json:"discount_cents"`
	Observations  string     `json:"observations,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	// Joined fields (not always populated).
	MechanicName string     `json:"mechanic_name,omitempty"`
	Items        []LineItem `json:"items,omitempty"`
}

func (b *Budget) Ref() Ref                  { return Ref{Type: TypeBudget, ID: b.ID} }
func (b *Budget) Owner() uuid.UUID          { return b.MechanicID }
func (b *Budget) CurrentStatus() Status     { return b.Status }
func (b *Budget) Lifecycle() Lifecycle      { return BudgetLifecycle }
func (b *Budget) CompletedTime() *time.Time { return b.CompletedAt }

// Subtotal sums item totals.
func (b *Budget) Subtotal() int64 {
	var sum int64
	for _, it := range b.Items {
		sum += it.Total()
	}
	return sum
}

// Final is the subtotal minus the discount, never below zero.
func (b *Budget) Final() int64 {
	f := b.Subtotal() - b.DiscountCents
	if f < 0 {
		return 0
	}
	return f
}

// LineItem is a priced service line of a budget.
type LineItem struct {
	ID             uuid.UUID `json:"id"`
	BudgetID       uuid.UUID `json:"budget_id"`
	Name           string    `json:"service_name"`
	Category       string    `json:"service_category"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Position       int       `json:"position"`
}

// Total is always derived, never stored from input.
func (li LineItem) Total() int64 {
	return li.Quantity * li.UnitPriceCents
}

// FormatCents renders an amount of cents as "1234.56".
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
