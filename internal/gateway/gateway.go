// Package gateway is the only write path to checklists and budgets.
//
// Every operation runs the access policy before touching the store, and
// every store call carries the caller's scope so the database refuses rows
// the caller does not own even if a check here were skipped. Derived fields
// (owner, initial status, completion time, line totals) are never taken
// from the caller.
package gateway

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/apperr"
	"github.com/erazemk/oficina/internal/imaging"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/policy"
	"github.com/erazemk/oficina/internal/sanitize"
	"github.com/erazemk/oficina/internal/store"
)

// Gateway applies mutations on behalf of principals.
type Gateway struct {
	DB *sql.DB
	// Timeout bounds each operation's store work. Zero means no bound.
	Timeout time.Duration
	Now     func() time.Time
}

// New returns a Gateway over db.
func New(db *sql.DB, timeout time.Duration) *Gateway {
	return &Gateway{DB: db, Timeout: timeout, Now: time.Now}
}

// CreateChecklist creates a checklist owned by p, or by the mechanic an admin
// assigns it to, in its initial status.
func (g *Gateway) CreateChecklist(ctx context.Context, p *model.Principal, d ChecklistDraft) (*model.Checklist, error) {
	if err := g.check(p, "create", policy.CanCreate(p, model.TypeChecklist)); err != nil {
		return nil, err
	}
	if err := d.normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	owner, err := g.owner(ctx, p, d.MechanicID)
	if err != nil {
		return nil, err
	}

	c := &model.Checklist{
		ID:                  uuid.Must(uuid.NewV7()),
		MechanicID:          owner,
		CustomerName:        d.CustomerName,
		Plate:               d.Plate,
		VehicleName:         d.VehicleName,
		Priority:            d.Priority,
		Status:              model.ChecklistLifecycle.Initial(),
		GeneralObservations: d.GeneralObservations,
	}
	items := make([]model.ChecklistItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, model.ChecklistItem{ID: uuid.Must(uuid.NewV7()), Name: it.Name, Category: it.Category})
	}

	created, err := store.CreateChecklist(ctx, g.DB, c, items)
	if err != nil {
		slog.Error("failed to create checklist", "error", err)
		return nil, apperr.Store("creating checklist", err)
	}

	slog.Info("checklist created", "user", p.ID, "id", created.ID, "mechanic", owner, "items", len(items))
	return created, nil
}

// CreateBudget creates a budget the same way CreateChecklist does. The budget
// number is allocated by the store.
func (g *Gateway) CreateBudget(ctx context.Context, p *model.Principal, d BudgetDraft) (*model.Budget, error) {
	if err := g.check(p, "create", policy.CanCreate(p, model.TypeBudget)); err != nil {
		return nil, err
	}
	if err := d.normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	owner, err := g.owner(ctx, p, d.MechanicID)
	if err != nil {
		return nil, err
	}

	b := &model.Budget{
		ID:            uuid.Must(uuid.NewV7()),
		MechanicID:    owner,
		CustomerName:  d.CustomerName,
		Plate:         d.Plate,
		VehicleName:   d.VehicleName,
		Status:        model.BudgetLifecycle.Initial(),
		DiscountCents: d.DiscountCents,
		Observations:  d.Observations,
	}

	created, err := store.CreateBudget(ctx, g.DB, b, lineItems(d.Items))
	if err != nil {
		slog.Error("failed to create budget", "error", err)
		return nil, apperr.Store("creating budget", err)
	}

	slog.Info("budget created", "user", p.ID, "id", created.ID, "number", created.Number, "mechanic", owner)
	return created, nil
}

// Apply changes the resource id with patch and returns the updated resource.
// The resource type is the patch's. A status change into the terminal state
// stamps completed_at; leaving it clears completed_at. Both are computed by
// the store from the patch, never from a copy held here.
func (g *Gateway) Apply(ctx context.Context, p *model.Principal, id uuid.UUID, patch Patch) (model.Resource, error) {
	if p == nil {
		return nil, apperr.Denied("not authenticated")
	}
	if patch == nil {
		return nil, apperr.Invalid("patch", "nothing to change")
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	ref := model.Ref{Type: patch.ResourceType(), ID: id}
	r, err := g.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch patch := patch.(type) {
	case ChecklistPatch:
		err = g.applyChecklist(ctx, p, r, &patch)
	case *ChecklistPatch:
		err = g.applyChecklist(ctx, p, r, patch)
	case BudgetPatch:
		err = g.applyBudget(ctx, p, r, &patch)
	case *BudgetPatch:
		err = g.applyBudget(ctx, p, r, patch)
	default:
		return nil, apperr.Invalid("patch", "unsupported patch")
	}
	if err != nil {
		return nil, err
	}

	updated, err := g.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	slog.Info(string(ref.Type)+" updated", "user", p.ID, "id", id, "status", updated.CurrentStatus())
	return updated, nil
}

func (g *Gateway) applyChecklist(ctx context.Context, p *model.Principal, r model.Resource, patch *ChecklistPatch) error {
	action := policy.ActionUpdate
	if patch.onlyStatus() {
		action = policy.ActionChangeStatus
	}
	if err := g.authorize(p, action, r); err != nil {
		return err
	}
	if patch.empty() {
		return apperr.Invalid("patch", "nothing to change")
	}
	if err := patch.normalize(); err != nil {
		return err
	}
	if err := g.authorizeChange(ctx, p, r, patch.Status, patch.MechanicID); err != nil {
		return err
	}

	ok, err := store.UpdateChecklist(ctx, g.DB, model.ScopeFor(p), r.Ref().ID, store.ChecklistUpdate{
		MechanicID:          patch.MechanicID,
		CustomerName:        patch.CustomerName,
		Plate:               patch.Plate,
		VehicleName:         patch.VehicleName,
		Priority:            patch.Priority,
		Status:              patch.Status,
		GeneralObservations: patch.GeneralObservations,
		Now:                 g.now(),
	})
	if err != nil {
		slog.Error("failed to update checklist", "id", r.Ref().ID, "error", err)
		return apperr.Store("updating checklist", err)
	}
	if !ok {
		return g.refused(ctx, p, r.Ref())
	}
	return nil
}

func (g *Gateway) applyBudget(ctx context.Context, p *model.Principal, r model.Resource, patch *BudgetPatch) error {
	action := policy.ActionUpdate
	if patch.onlyStatus() {
		action = policy.ActionChangeStatus
	}
	if err := g.authorize(p, action, r); err != nil {
		return err
	}
	if patch.empty() {
		return apperr.Invalid("patch", "nothing to change")
	}
	if err := patch.normalize(); err != nil {
		return err
	}
	if err := g.authorizeChange(ctx, p, r, patch.Status, patch.MechanicID); err != nil {
		return err
	}

	u := store.BudgetUpdate{
		MechanicID:    patch.MechanicID,
		CustomerName:  patch.CustomerName,
		Plate:         patch.Plate,
		VehicleName:   patch.VehicleName,
		Status:        patch.Status,
		DiscountCents: patch.DiscountCents,
		Observations:  patch.Observations,
		Now:           g.now(),
	}
	if patch.Items != nil {
		items := lineItems(*patch.Items)
		u.Items = &items
	}

	ok, err := store.UpdateBudget(ctx, g.DB, model.ScopeFor(p), r.Ref().ID, u)
	if err != nil {
		slog.Error("failed to update budget", "id", r.Ref().ID, "error", err)
		return apperr.Store("updating budget", err)
	}
	if !ok {
		return g.refused(ctx, p, r.Ref())
	}
	return nil
}

// authorizeChange runs the checks that depend on what the patch changes
// rather than on the resource alone.
func (g *Gateway) authorizeChange(ctx context.Context, p *model.Principal, r model.Resource, status *model.Status, assignee *uuid.UUID) error {
	if status != nil {
		if err := g.check(p, "change_status", policy.AuthorizeTransition(p, r, *status)); err != nil {
			return err
		}
	}
	if assignee != nil {
		if err := g.check(p, "assign", policy.CanAssign(p)); err != nil {
			return err
		}
		if err := g.mechanicExists(ctx, *assignee); err != nil {
			return err
		}
	}
	return nil
}

// SetItemChecked marks a checklist item and optionally sets its observation.
func (g *Gateway) SetItemChecked(ctx context.Context, p *model.Principal, checklistID, itemID uuid.UUID, checked bool, observation *string) (*model.Checklist, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	ref := model.Ref{Type: model.TypeChecklist, ID: checklistID}
	r, err := g.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := g.authorize(p, policy.ActionToggleItem, r); err != nil {
		return nil, err
	}

	c := r.(*model.Checklist)
	if !hasItem(c, itemID) {
		return nil, apperr.ErrNotFound
	}

	observation = sanitize.TextPtr(observation)
	if err := lengthPtr("observation", observation); err != nil {
		return nil, err
	}

	ok, err := store.SetChecklistItem(ctx, g.DB, model.ScopeFor(p), checklistID, itemID, checked, observation, g.now())
	if err != nil {
		slog.Error("failed to update checklist item", "id", checklistID, "item", itemID, "error", err)
		return nil, apperr.Store("updating checklist item", err)
	}
	if !ok {
		return nil, g.refused(ctx, p, ref)
	}

	updated, err := g.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return updated.(*model.Checklist), nil
}

// AddPhoto attaches a photo to a checklist. The image is re-encoded before
// it is stored.
func (g *Gateway) AddPhoto(ctx context.Context, p *model.Principal, checklistID uuid.UUID, upload io.Reader) (uuid.UUID, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	ref := model.Ref{Type: model.TypeChecklist, ID: checklistID}
	r, err := g.load(ctx, ref)
	if err != nil {
		return uuid.Nil, err
	}
	if err := g.authorize(p, policy.ActionUpdate, r); err != nil {
		return uuid.Nil, err
	}

	photo, err := imaging.Process(upload)
	if err != nil {
		return uuid.Nil, apperr.Invalid("photo", "%v", err)
	}

	id, ok, err := store.AddChecklistPhoto(ctx, g.DB, model.ScopeFor(p), checklistID, photo.Data, photo.MIME)
	if err != nil {
		slog.Error("failed to store photo", "id", checklistID, "error", err)
		return uuid.Nil, apperr.Store("storing photo", err)
	}
	if !ok {
		return uuid.Nil, g.refused(ctx, p, ref)
	}

	slog.Info("checklist photo added", "user", p.ID, "id", checklistID, "photo", id, "bytes", len(photo.Data))
	return id, nil
}

// Photo returns a photo of a checklist p may read.
func (g *Gateway) Photo(ctx context.Context, p *model.Principal, checklistID, photoID uuid.UUID) ([]byte, string, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	r, err := g.load(ctx, model.Ref{Type: model.TypeChecklist, ID: checklistID})
	if err != nil {
		return nil, "", err
	}
	if err := g.authorize(p, policy.ActionRead, r); err != nil {
		return nil, "", err
	}

	data, mime, err := store.GetChecklistPhoto(ctx, g.DB, checklistID, photoID)
	if err != nil {
		return nil, "", apperr.Store("loading photo", err)
	}
	if data == nil {
		return nil, "", apperr.ErrNotFound
	}
	return data, mime, nil
}

// Delete removes a resource with its items and deactivates its public links.
func (g *Gateway) Delete(ctx context.Context, p *model.Principal, ref model.Ref) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	r, err := g.load(ctx, ref)
	if err != nil {
		return err
	}
	if err := g.authorize(p, policy.ActionDelete, r); err != nil {
		return err
	}

	var ok bool
	switch ref.Type {
	case model.TypeChecklist:
		ok, err = store.DeleteChecklist(ctx, g.DB, model.ScopeFor(p), ref.ID, g.now())
	case model.TypeBudget:
		ok, err = store.DeleteBudget(ctx, g.DB, model.ScopeFor(p), ref.ID, g.now())
	}
	if err != nil {
		slog.Error("failed to delete "+string(ref.Type), "id", ref.ID, "error", err)
		return apperr.Store("deleting "+string(ref.Type), err)
	}
	if !ok {
		return g.refused(ctx, p, ref)
	}

	slog.Info(string(ref.Type)+" deleted", "user", p.ID, "id", ref.ID)
	return nil
}

// Get returns a resource p may read.
func (g *Gateway) Get(ctx context.Context, p *model.Principal, ref model.Ref) (model.Resource, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	r, err := g.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := g.authorize(p, policy.ActionRead, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListChecklists returns the checklists p may read that match f.
func (g *Gateway) ListChecklists(ctx context.Context, p *model.Principal, f store.ChecklistFilter) ([]model.Checklist, error) {
	if p == nil || !p.Role.Valid() {
		return nil, apperr.Denied("not authenticated")
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	list, err := store.ListChecklists(ctx, g.DB, model.ScopeFor(p), f)
	if err != nil {
		slog.Error("failed to list checklists", "error", err)
		return nil, apperr.Store("listing checklists", err)
	}
	return list, nil
}

// ListBudgets returns the budgets p may read that match f.
func (g *Gateway) ListBudgets(ctx context.Context, p *model.Principal, f store.BudgetFilter) ([]model.Budget, error) {
	if p == nil || !p.Role.Valid() {
		return nil, apperr.Denied("not authenticated")
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	list, err := store.ListBudgets(ctx, g.DB, model.ScopeFor(p), f)
	if err != nil {
		slog.Error("failed to list budgets", "error", err)
		return nil, apperr.Store("listing budgets", err)
	}
	return list, nil
}

func (g *Gateway) load(ctx context.Context, ref model.Ref) (model.Resource, error) {
	r, err := store.GetResource(ctx, g.DB, ref)
	if err != nil {
		return nil, apperr.Store("loading "+string(ref.Type), err)
	}
	if r == nil {
		return nil, apperr.ErrNotFound
	}
	return r, nil
}

func (g *Gateway) authorize(p *model.Principal, action policy.Action, r model.Resource) error {
	d := policy.Authorize(p, action, r)
	if !d.Allowed {
		ref := r.Ref()
		slog.Warn("mutation denied", "user", principalID(p), "action", action, "type", ref.Type, "id", ref.ID, "reason", d.Reason)
		return apperr.Denied(d.Reason)
	}
	return nil
}

func (g *Gateway) check(p *model.Principal, action string, d policy.Decision) error {
	if !d.Allowed {
		slog.Warn("mutation denied", "user", principalID(p), "action", action, "reason", d.Reason)
		return apperr.Denied(d.Reason)
	}
	return nil
}

// refused explains a write the store matched no row for: the resource is gone,
// or its state changed under the caller so the scope no longer matches.
func (g *Gateway) refused(ctx context.Context, p *model.Principal, ref model.Ref) error {
	if _, err := g.load(ctx, ref); err != nil {
		return err
	}
	slog.Warn("store refused mutation", "user", principalID(p), "type", ref.Type, "id", ref.ID)
	return apperr.Denied("store scope did not match")
}

// owner returns the mechanic a new resource belongs to.
func (g *Gateway) owner(ctx context.Context, p *model.Principal, requested uuid.UUID) (uuid.UUID, error) {
	if requested == uuid.Nil || requested == p.ID || !p.IsAdmin() {
		return p.ID, nil
	}
	if err := g.mechanicExists(ctx, requested); err != nil {
		return uuid.Nil, err
	}
	return requested, nil
}

func (g *Gateway) mechanicExists(ctx context.Context, id uuid.UUID) error {
	u, err := store.GetUser(ctx, g.DB, id)
	if err != nil {
		return apperr.Store("loading mechanic", err)
	}
	if u == nil {
		return apperr.Invalid("mechanic_id", "unknown user")
	}
	return nil
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.Timeout)
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func hasItem(c *model.Checklist, itemID uuid.UUID) bool {
	for _, it := range c.Items {
		if it.ID == itemID {
			return true
		}
	}
	return false
}

func principalID(p *model.Principal) any {
	if p == nil {
		return "anonymous"
	}
	return p.ID
}
