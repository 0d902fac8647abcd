package api

import (
	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/policy"
)

// checklistView is the API shape of a checklist. The assignee fields are
// omitted when the caller may not see them.
type checklistView struct {
	*model.Checklist
	MechanicID   *uuid.UUID     `json:"mechanic_id,omitempty"`
	MechanicName string         `json:"mechanic_name,omitempty"`
	Progress     model.Progress `json:"progress"`
}

func newChecklistView(p *model.Principal, c *model.Checklist) checklistView {
	v := checklistView{Checklist: c, Progress: c.Progress()}
	if policy.VisibleFields(p, c).Has(policy.FieldAssignee) {
		v.MechanicID = &c.MechanicID
		v.MechanicName = c.MechanicName
	}
	return v
}

// budgetView is the API shape of a budget, with computed amounts.
type budgetView struct {
	*model.Budget
	MechanicID    *uuid.UUID `json:"mechanic_id,omitempty"`
	MechanicName  string     `json:"mechanic_name,omitempty"`
	Items         []lineView `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	FinalCents    int64      `json:"final_cents"`
}

type lineView struct {
	model.LineItem
	TotalCents int64 `json:"total_cents"`
}

func newBudgetView(p *model.Principal, b *model.Budget) budgetView {
	v := budgetView{
		Budget:        b,
		Items:         make([]lineView, 0, len(b.Items)),
		SubtotalCents: b.Subtotal(),
		FinalCents:    b.Final(),
	}
	for _, it := range b.Items {
		v.Items = append(v.Items, lineView{LineItem: it, TotalCents: it.Total()})
	}
	if policy.VisibleFields(p, b).Has(policy.FieldAssignee) {
		v.MechanicID = &b.MechanicID
		v.MechanicName = b.MechanicName
	}
	return v
}
