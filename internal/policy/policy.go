// Package policy decides what a principal may do with a resource.
//
// Every function is pure: it looks only at its arguments. The store enforces
// ownership a second time in SQL, so a caller that skipped these checks still
// cannot write rows it does not own.
package policy

import (
	"github.com/erazemk/oficina/internal/model"
)

// Action is an operation on an existing resource.
type Action string

// Actions.
const (
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionChangeStatus Action = "change_status"
	ActionToggleItem   Action = "toggle_item"
	ActionShare        Action = "share"
	ActionUnshare      Action = "unshare"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// Reason explains a denial for audit logs. It is never shown to callers.
	Reason string
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Authorize decides whether p may perform action on r.
func Authorize(p *model.Principal, action Action, r model.Resource) Decision {
	if p == nil {
		return deny("not authenticated")
	}
	if r == nil {
		return deny("no resource")
	}

	switch p.Role {
	case model.RoleAdmin:
		return allow
	case model.RoleMechanic:
		return mechanic(p, action, r)
	default:
		return deny("unknown role")
	}
}

func mechanic(p *model.Principal, action Action, r model.Resource) Decision {
	if r.Owner() != p.ID {
		return deny("not owner")
	}

	ref := r.Ref()
	finalized := r.CurrentStatus() == r.Lifecycle().Terminal()

	switch action {
	case ActionRead, ActionShare, ActionUnshare:
		return allow
	case ActionDelete:
		return deny("only admin may delete")
	case ActionUpdate, ActionChangeStatus:
		switch ref.Type {
		case model.TypeBudget:
			if r.CurrentStatus() != model.BudgetPending {
				return deny("budget is no longer pending")
			}
			return allow
		case model.TypeChecklist:
			if finalized {
				return deny("checklist is finalized")
			}
			return allow
		}
	case ActionToggleItem:
		if ref.Type != model.TypeChecklist {
			return deny("resource has no checkable items")
		}
		if finalized {
			return deny("checklist is finalized")
		}
		return allow
	}
	return deny("unknown action")
}

// AuthorizeTransition decides whether p may move r to next. It includes the
// change_status check.
func AuthorizeTransition(p *model.Principal, r model.Resource, next model.Status) Decision {
	if d := Authorize(p, ActionChangeStatus, r); !d.Allowed {
		return d
	}
	if p.Role == model.RoleAdmin {
		return allow
	}
	if r.Ref().Type == model.TypeChecklist && next == model.ChecklistLifecycle.Terminal() {
		return deny("only admin may finalize a checklist")
	}
	return allow
}

// CanCreate decides whether p may create a resource of type t.
func CanCreate(p *model.Principal, t model.ResourceType) Decision {
	if p == nil {
		return deny("not authenticated")
	}
	if model.LifecycleOf(t) == nil {
		return deny("unknown resource type")
	}
	if !p.Role.Valid() {
		return deny("unknown role")
	}
	return allow
}

// CanAssign decides whether p may attribute a resource to another principal.
func CanAssign(p *model.Principal) Decision {
	if !p.IsAdmin() {
		return deny("only admin may assign resources")
	}
	return allow
}

// CanManageUsers decides whether p may provision principals, set roles and
// edit workshop settings.
func CanManageUsers(p *model.Principal) Decision {
	if !p.IsAdmin() {
		return deny("admin only")
	}
	return allow
}
