package gateway

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/apperr"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/sanitize"
)

// maxTextLength bounds every free-text field.
const maxTextLength = 2000

// Budget amounts are bounded so that maxBudgetLines lines at the largest
// quantity and unit price still sum within int64 cents. The schema carries
// the same per-line bounds.
const (
	maxQuantity       = 1_000_000
	maxUnitPriceCents = 10_000_000_000
	maxBudgetLines    = 200
)

// ChecklistDraft is the input of CreateChecklist.
type ChecklistDraft struct {
	// MechanicID assigns the checklist. Only admins may set it; for a
	// mechanic the checklist always belongs to the caller.
	MechanicID          uuid.UUID      `json:"mechanic_id"`
	CustomerName        string         `json:"customer_name"`
	Plate               string         `json:"plate"`
	VehicleName         string         `json:"vehicle_name"`
	Priority            model.Priority `json:"priority"`
	GeneralObservations string         `json:"general_observations"`
	Items               []ItemDraft    `json:"items"`
}

// ItemDraft is a new checklist item.
type ItemDraft struct {
	Name     string `json:"item_name"`
	Category string `json:"category"`
}

// BudgetDraft is the input of CreateBudget.
type BudgetDraft struct {
	MechanicID    uuid.UUID   `json:"mechanic_id"`
	CustomerName  string      `json:"customer_name"`
	Plate         string      `json:"plate"`
	VehicleName   string      `json:"vehicle_name"`
	DiscountCents int64       `json:"discount_cents"`
	Observations  string      `json:"observations"`
	Items         []LineDraft `json:"items"`
}

// LineDraft is a budget line. It has no total: totals are always computed.
type LineDraft struct {
	Name           string `json:"service_name"`
	Category       string `json:"service_category"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Patch is a partial update of one resource type. Nil fields are left alone.
type Patch interface {
	ResourceType() model.ResourceType
	empty() bool
}

// ChecklistPatch changes a checklist.
type ChecklistPatch struct {
	MechanicID          *uuid.UUID      `json:"mechanic_id,omitempty"`
	CustomerName        *string         `json:"customer_name,omitempty"`
	Plate               *string         `json:"plate,omitempty"`
	VehicleName         *string         `json:"vehicle_name,omitempty"`
	Priority            *model.Priority `json:"priority,omitempty"`
	Status              *model.Status   `json:"status,omitempty"`
	GeneralObservations *string         `json:"general_observations,omitempty"`
}

func (ChecklistPatch) ResourceType() model.ResourceType { return model.TypeChecklist }

func (p ChecklistPatch) empty() bool {
	return p.MechanicID == nil && p.CustomerName == nil && p.Plate == nil && p.VehicleName == nil &&
		p.Priority == nil && p.Status == nil && p.GeneralObservations == nil
}

// onlyStatus reports whether the patch is a pure status transition.
func (p ChecklistPatch) onlyStatus() bool {
	return p.Status != nil && (ChecklistPatch{Status: p.Status}) == p
}

// BudgetPatch changes a budget. A non-nil Items replaces every line.
type BudgetPatch struct {
	MechanicID    *uuid.UUID    `json:"mechanic_id,omitempty"`
	CustomerName  *string       `json:"customer_name,omitempty"`
	Plate         *string       `json:"plate,omitempty"`
	VehicleName   *string       `json:"vehicle_name,omitempty"`
	Status        *model.Status `json:"status,omitempty"`
	DiscountCents *int64        `json:"discount_cents,omitempty"`
	Observations  *string       `json:"observations,omitempty"`
	Items         *[]LineDraft  `json:"items,omitempty"`
}

func (BudgetPatch) ResourceType() model.ResourceType { return model.TypeBudget }

func (p BudgetPatch) empty() bool {
	return p.MechanicID == nil && p.CustomerName == nil && p.Plate == nil && p.VehicleName == nil &&
		p.Status == nil && p.DiscountCents == nil && p.Observations == nil && p.Items == nil
}

func (p BudgetPatch) onlyStatus() bool {
	return p.Status != nil && p.Items == nil && (BudgetPatch{Status: p.Status}) == p
}

func (d *ChecklistDraft) normalize() error {
	d.CustomerName = sanitize.Text(d.CustomerName)
	d.Plate = strings.ToUpper(sanitize.Text(d.Plate))
	d.VehicleName = sanitize.Text(d.VehicleName)
	d.GeneralObservations = sanitize.Text(d.GeneralObservations)
	if d.Priority == "" {
		d.Priority = model.PriorityNormal
	}

	if err := required("customer_name", d.CustomerName); err != nil {
		return err
	}
	if err := firstErr(
		length("plate", d.Plate),
		length("vehicle_name", d.VehicleName),
		length("general_observations", d.GeneralObservations),
	); err != nil {
		return err
	}
	if !d.Priority.Valid() {
		return apperr.Invalid("priority", "unknown priority %q", d.Priority)
	}

	for i := range d.Items {
		it := &d.Items[i]
		it.Name = sanitize.Text(it.Name)
		it.Category = sanitize.Text(it.Category)
		if err := required(fmt.Sprintf("items[%d].item_name", i), it.Name); err != nil {
			return err
		}
		if err := length(fmt.Sprintf("items[%d].category", i), it.Category); err != nil {
			return err
		}
	}
	return nil
}

func (d *BudgetDraft) normalize() error {
	d.CustomerName = sanitize.Text(d.CustomerName)
	d.Plate = strings.ToUpper(sanitize.Text(d.Plate))
	d.VehicleName = sanitize.Text(d.VehicleName)
	d.Observations = sanitize.Text(d.Observations)

	if err := required("customer_name", d.CustomerName); err != nil {
		return err
	}
	if err := firstErr(
		length("plate", d.Plate),
		length("vehicle_name", d.VehicleName),
		length("observations", d.Observations),
	); err != nil {
		return err
	}
	if d.DiscountCents < 0 {
		return apperr.Invalid("discount_cents", "must not be negative")
	}
	return normalizeLines(d.Items)
}

func (p *ChecklistPatch) normalize() error {
	p.CustomerName = sanitize.TextPtr(p.CustomerName)
	p.VehicleName = sanitize.TextPtr(p.VehicleName)
	p.GeneralObservations = sanitize.TextPtr(p.GeneralObservations)
	if p.Plate != nil {
		v := strings.ToUpper(sanitize.Text(*p.Plate))
		p.Plate = &v
	}

	if p.CustomerName != nil {
		if err := required("customer_name", *p.CustomerName); err != nil {
			return err
		}
	}
	if err := firstErr(
		lengthPtr("plate", p.Plate),
		lengthPtr("vehicle_name", p.VehicleName),
		lengthPtr("general_observations", p.GeneralObservations),
	); err != nil {
		return err
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return apperr.Invalid("priority", "unknown priority %q", *p.Priority)
	}
	if p.Status != nil && !model.ChecklistLifecycle.Valid(*p.Status) {
		return apperr.Invalid("status", "unknown checklist status %q", *p.Status)
	}
	return nil
}

func (p *BudgetPatch) normalize() error {
	p.CustomerName = sanitize.TextPtr(p.CustomerName)
	p.VehicleName = sanitize.TextPtr(p.VehicleName)
	p.Observations = sanitize.TextPtr(p.Observations)
	if p.Plate != nil {
		v := strings.ToUpper(sanitize.Text(*p.Plate))
		p.Plate = &v
	}

	if p.CustomerName != nil {
		if err := required("customer_name", *p.CustomerName); err != nil {
			return err
		}
	}
	if err := firstErr(
		lengthPtr("plate", p.Plate),
		lengthPtr("vehicle_name", p.VehicleName),
		lengthPtr("observations", p.Observations),
	); err != nil {
		return err
	}
	if p.Status != nil && !model.BudgetLifecycle.Valid(*p.Status) {
		return apperr.Invalid("status", "unknown budget status %q", *p.Status)
	}
	if p.DiscountCents != nil && *p.DiscountCents < 0 {
		return apperr.Invalid("discount_cents", "must not be negative")
	}
	if p.Items != nil {
		return normalizeLines(*p.Items)
	}
	return nil
}

func normalizeLines(lines []LineDraft) error {
	if len(lines) > maxBudgetLines {
		return apperr.Invalid("items", "must have at most %d lines", maxBudgetLines)
	}
	for i := range lines {
		l := &lines[i]
		l.Name = sanitize.Text(l.Name)
		l.Category = sanitize.Text(l.Category)

		field := fmt.Sprintf("items[%d]", i)
		if err := required(field+".service_name", l.Name); err != nil {
			return err
		}
		if l.Quantity < 0 || l.Quantity > maxQuantity {
			return apperr.Invalid(field+".quantity", "must be between 0 and %d", maxQuantity)
		}
		if l.UnitPriceCents < 0 || l.UnitPriceCents > maxUnitPriceCents {
			return apperr.Invalid(field+".unit_price_cents", "must be between 0 and %d", maxUnitPriceCents)
		}
	}
	return nil
}

func lineItems(lines []LineDraft) []model.LineItem {
	items := make([]model.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.LineItem{
			ID:             uuid.Must(uuid.NewV7()),
			Name:           l.Name,
			Category:       l.Category,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	return items
}

func required(field, v string) error {
	if v == "" {
		return apperr.Invalid(field, "is required")
	}
	return length(field, v)
}

func length(field, v string) error {
	if len(v) > maxTextLength {
		return apperr.Invalid(field, "must be at most %d characters", maxTextLength)
	}
	return nil
}

func lengthPtr(field string, v *string) error {
	if v == nil {
		return nil
	}
	return length(field, *v)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
