package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/erazemk/oficina/internal/model"
)

func principals() (admin, owner, other *model.Principal) {
	admin = &model.Principal{ID: uuid.New(), Role: model.RoleAdmin}
	owner = &model.Principal{ID: uuid.New(), Role: model.RoleMechanic}
	other = &model.Principal{ID: uuid.New(), Role: model.RoleMechanic}
	return
}

func TestAdminMayDoEverything(t *testing.T) {
	admin, owner, _ := principals()
	c := &model.Checklist{ID: uuid.New(), MechanicID: owner.ID, Status: model.ChecklistCompleted}
	b := &model.Budget{ID: uuid.New(), MechanicID: owner.ID, Status: model.BudgetRejected}

	for _, a := range []Action{ActionRead, ActionUpdate, ActionDelete, ActionChangeStatus, ActionToggleItem, ActionShare, ActionUnshare} {
		assert.True(t, Authorize(admin, a, c).Allowed, "checklist %s", a)
		assert.True(t, Authorize(admin, a, b).Allowed, "budget %s", a)
	}
	assert.True(t, AuthorizeTransition(admin, c, model.ChecklistInProgress).Allowed)
	assert.True(t, VisibleFields(admin, b).Has(FieldAssignee))
}

func TestMechanicDeniedOnForeignResources(t *testing.T) {
	_, owner, other := principals()
	c := &model.Checklist{ID: uuid.New(), MechanicID: owner.ID, Status: model.ChecklistPending}
	b := &model.Budget{ID: uuid.New(), MechanicID: owner.ID, Status: model.BudgetPending}

	for _, a := range []Action{ActionRead, ActionUpdate, ActionDelete, ActionChangeStatus, ActionToggleItem, ActionShare, ActionUnshare} {
		d := Authorize(other, a, c)
		assert.False(t, d.Allowed, "checklist %s", a)
		assert.Equal(t, "not owner", d.Reason)
		assert.False(t, Authorize(other, a, b).Allowed, "budget %s", a)
	}
	assert.Empty(t, VisibleFields(other, c))
}

func TestMechanicOwnChecklist(t *testing.T) {
	_, owner, _ := principals()
	c := &model.Checklist{ID: uuid.New(), MechanicID: owner.ID, Status: model.ChecklistInProgress}

	assert.True(t, Authorize(owner, ActionRead, c).Allowed)
	assert.True(t, Authorize(owner, ActionUpdate, c).Allowed)
	assert.True(t, Authorize(owner, ActionToggleItem, c).Allowed)
	assert.True(t, Authorize(owner, ActionShare, c).Allowed)
	assert.False(t, Authorize(owner, ActionDelete, c).Allowed)

	assert.True(t, AuthorizeTransition(owner, c, model.ChecklistCancelled).Allowed)
	d := AuthorizeTransition(owner, c, model.ChecklistCompleted)
	assert.False(t, d.Allowed)
	assert.Equal(t, "only admin may finalize a checklist", d.Reason)

	fs := VisibleFields(owner, c)
	assert.True(t, fs.Has(FieldPhotos))
	assert.False(t, fs.Has(FieldAmounts))
	assert.False(t, fs.Has(FieldAssignee))
}

func TestMechanicFinalizedChecklistIsReadOnly(t *testing.T) {
	_, owner, _ := principals()
	c := &model.Checklist{ID: uuid.New(), MechanicID: owner.ID, Status: model.ChecklistCompleted}

	assert.True(t, Authorize(owner, ActionRead, c).Allowed)
	assert.False(t, Authorize(owner, ActionUpdate, c).Allowed)
	assert.False(t, Authorize(owner, ActionToggleItem, c).Allowed)
	assert.False(t, AuthorizeTransition(owner, c, model.ChecklistInProgress).Allowed)
}

func TestMechanicBudgetOnlyWhilePending(t *testing.T) {
	_, owner, _ := principals()
	b := &model.Budget{ID: uuid.New(), MechanicID: owner.ID, Status: model.BudgetPending}

	assert.True(t, Authorize(owner, ActionUpdate, b).Allowed)
	assert.True(t, AuthorizeTransition(owner, b, model.BudgetApproved).Allowed)
	assert.False(t, Authorize(owner, ActionToggleItem, b).Allowed)

	for _, s := range []model.Status{model.BudgetApproved, model.BudgetRejected, model.BudgetCancelled} {
		b.Status = s
		assert.False(t, Authorize(owner, ActionUpdate, b).Allowed, s)
		assert.False(t, AuthorizeTransition(owner, b, model.BudgetPending).Allowed, s)
		assert.True(t, Authorize(owner, ActionRead, b).Allowed, s)
	}
}

func TestFailClosed(t *testing.T) {
	c := &model.Checklist{ID: uuid.New()}
	stranger := &model.Principal{ID: c.MechanicID, Role: "customer"}

	assert.False(t, Authorize(nil, ActionRead, c).Allowed)
	assert.False(t, Authorize(stranger, ActionRead, c).Allowed)
	assert.False(t, Authorize(&model.Principal{Role: model.RoleAdmin}, ActionRead, nil).Allowed)
	assert.False(t, CanCreate(nil, model.TypeChecklist).Allowed)
	assert.False(t, CanCreate(stranger, model.TypeChecklist).Allowed)
	assert.False(t, CanManageUsers(nil).Allowed)
}

func TestCreateAndAssign(t *testing.T) {
	admin, owner, _ := principals()

	assert.True(t, CanCreate(owner, model.TypeBudget).Allowed)
	assert.True(t, CanCreate(admin, model.TypeChecklist).Allowed)
	assert.False(t, CanCreate(owner, "invoice").Allowed)

	assert.True(t, CanAssign(admin).Allowed)
	assert.False(t, CanAssign(owner).Allowed)
	assert.True(t, CanManageUsers(admin).Allowed)
	assert.False(t, CanManageUsers(owner).Allowed)
}
