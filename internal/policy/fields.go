package policy

import "github.com/erazemk/oficina/internal/model"

// Field names a visible attribute of a resource projection.
type Field string

// Fields.
const (
	FieldCore         Field = "core"
	FieldItems        Field = "items"
	FieldObservations Field = "observations"
	FieldAmounts      Field = "amounts"
	FieldPhotos       Field = "photos"

	// FieldAssignee is the identity of the owning mechanic.
	FieldAssignee Field = "assignee"
)

// FieldSet is a set of visible fields.
type FieldSet map[Field]bool

// Has reports whether f is visible.
func (s FieldSet) Has(f Field) bool { return s[f] }

// VisibleFields returns the fields of r that p may see. It is empty whenever
// p may not read r. Only admins see who a resource is assigned to, since
// mechanics only ever see their own rows.
func VisibleFields(p *model.Principal, r model.Resource) FieldSet {
	if !Authorize(p, ActionRead, r).Allowed {
		return FieldSet{}
	}

	fs := FieldSet{FieldCore: true, FieldItems: true, FieldObservations: true}
	switch r.Ref().Type {
	case model.TypeBudget:
		fs[FieldAmounts] = true
	case model.TypeChecklist:
		fs[FieldPhotos] = true
	}
	if p.IsAdmin() {
		fs[FieldAssignee] = true
	}
	return fs
}
