package share

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/apperr"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/store"
)

// Snapshot is the read-only projection of a shared resource. Exactly one of
// Checklist and Budget is set. It holds copies only; nothing in it refers back
// to the store.
type Snapshot struct {
	Type      model.ResourceType `json:"type"`
	Company   model.Company      `json:"company"`
	Mechanic  string             `json:"mechanic_name"`
	Checklist *ChecklistSnapshot `json:"checklist,omitempty"`
	Budget    *BudgetSnapshot    `json:"budget,omitempty"`
}

// ChecklistSnapshot is a shared checklist.
type ChecklistSnapshot struct {
	CustomerName        string         `json:"customer_name"`
	Plate               string         `json:"plate"`
	VehicleName         string         `json:"vehicle_name"`
	Priority            model.Priority `json:"priority"`
	Status              model.Status   `json:"status"`
	GeneralObservations string         `json:"general_observations,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	Items               []ItemSnapshot `json:"items"`
	Progress            model.Progress `json:"progress"`
	PhotoIDs            []uuid.UUID    `json:"photo_ids,omitempty"`
}

// ItemSnapshot is one checklist item.
type ItemSnapshot struct {
	Name        string `json:"item_name"`
	Category    string `json:"category"`
	Checked     bool   `json:"checked"`
	Observation string `json:"observation,omitempty"`
}

// BudgetSnapshot is a shared budget. Amounts are in cents.
type BudgetSnapshot struct {
	Number        int64          `json:"number"`
	CustomerName  string         `json:"customer_name"`
	Plate         string         `json:"plate"`
	VehicleName   string         `json:"vehicle_name"`
	Status        model.Status   `json:"status"`
	Observations  string         `json:"observations,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Items         []LineSnapshot `json:"items"`
	SubtotalCents int64          `json:"subtotal_cents"`
	DiscountCents int64          `json:"discount_cents"`
	FinalCents    int64          `json:"final_cents"`
}

// LineSnapshot is one budget line.
type LineSnapshot struct {
	Name           string `json:"service_name"`
	Category       string `json:"service_category"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// Viewer resolves public tokens. It never consults the access policy:
// holding an active token is the only credential.
type Viewer struct {
	DB      *sql.DB
	Timeout time.Duration
}

// NewViewer returns a Viewer over db.
func NewViewer(db *sql.DB, timeout time.Duration) *Viewer {
	return &Viewer{DB: db, Timeout: timeout}
}

// Resolve returns the snapshot behind token. Unknown and deactivated tokens
// both yield apperr.ErrNotFound.
func (v *Viewer) Resolve(ctx context.Context, token string) (*Snapshot, error) {
	ctx, cancel := bound(ctx, v.Timeout)
	defer cancel()

	link, err := v.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	r, err := store.GetResource(ctx, v.DB, link.Ref)
	if err != nil {
		return nil, apperr.Store("loading shared resource", err)
	}
	if r == nil {
		return nil, apperr.ErrNotFound
	}

	company, err := store.GetCompany(ctx, v.DB)
	if err != nil {
		return nil, apperr.Store("loading company", err)
	}

	s := &Snapshot{Type: link.Ref.Type, Company: *company}
	switch r := r.(type) {
	case *model.Checklist:
		s.Mechanic = r.MechanicName
		s.Checklist = checklistSnapshot(r)
	case *model.Budget:
		s.Mechanic = r.MechanicName
		s.Budget = budgetSnapshot(r)
	}
	return s, nil
}

// ResolveAs is Resolve for a URL that names the resource type. A token used
// under the wrong type is not found.
func (v *Viewer) ResolveAs(ctx context.Context, t model.ResourceType, token string) (*Snapshot, error) {
	s, err := v.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.Type != t {
		return nil, apperr.ErrNotFound
	}
	return s, nil
}

// Photo returns a photo of the checklist shared by token.
func (v *Viewer) Photo(ctx context.Context, token string, photoID uuid.UUID) ([]byte, string, error) {
	ctx, cancel := bound(ctx, v.Timeout)
	defer cancel()

	link, err := v.lookup(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if link.Ref.Type != model.TypeChecklist {
		return nil, "", apperr.ErrNotFound
	}

	data, mime, err := store.GetChecklistPhoto(ctx, v.DB, link.Ref.ID, photoID)
	if err != nil {
		return nil, "", apperr.Store("loading photo", err)
	}
	if data == nil {
		return nil, "", apperr.ErrNotFound
	}
	return data, mime, nil
}

func (v *Viewer) lookup(ctx context.Context, token string) (*model.PublicLink, error) {
	if token == "" {
		return nil, apperr.ErrNotFound
	}
	link, err := store.LookupActiveLink(ctx, v.DB, token)
	if err != nil {
		return nil, apperr.Store("looking up link", err)
	}
	if link == nil {
		return nil, apperr.ErrNotFound
	}
	return link, nil
}

func checklistSnapshot(c *model.Checklist) *ChecklistSnapshot {
	s := &ChecklistSnapshot{
		CustomerName:        c.CustomerName,
		Plate:               c.Plate,
		VehicleName:         c.VehicleName,
		Priority:            c.Priority,
		Status:              c.Status,
		GeneralObservations: c.GeneralObservations,
		CreatedAt:           c.CreatedAt,
		CompletedAt:         copyTime(c.CompletedAt),
		Items:               make([]ItemSnapshot, 0, len(c.Items)),
		Progress:            c.Progress(),
		PhotoIDs:            slices.Clone(c.PhotoIDs),
	}
	for _, it := range c.Items {
		s.Items = append(s.Items, ItemSnapshot{
			Name:        it.Name,
			Category:    it.Category,
			Checked:     it.Checked,
			Observation: it.Observation,
		})
	}
	slices.SortStableFunc(s.Items, func(a, b ItemSnapshot) int {
		return cmp.Or(cmp.Compare(a.Category, b.Category), cmp.Compare(a.Name, b.Name))
	})
	return s
}

func budgetSnapshot(b *model.Budget) *BudgetSnapshot {
	s := &BudgetSnapshot{
		Number:        b.Number,
		CustomerName:  b.CustomerName,
		Plate:         b.Plate,
		VehicleName:   b.VehicleName,
		Status:        b.Status,
		Observations:  b.Observations,
		CreatedAt:     b.CreatedAt,
		CompletedAt:   copyTime(b.CompletedAt),
		Items:         make([]LineSnapshot, 0, len(b.Items)),
		SubtotalCents: b.Subtotal(),
		DiscountCents: b.DiscountCents,
		FinalCents:    b.Final(),
	}
	for _, it := range b.Items {
		s.Items = append(s.Items, LineSnapshot{
			Name:           it.Name,
			Category:       it.Category,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			TotalCents:     it.Total(),
		})
	}
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
