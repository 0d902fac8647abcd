package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestScopeFor(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name      string
		principal *Principal
		wantAll   bool
		wantUser  uuid.UUID
	}{
		{"admin", &Principal{ID: id, Role: RoleAdmin}, true, id},
		{"mechanic", &Principal{ID: id, Role: RoleMechanic}, false, id},
		// Unknown roles fail-closed.
		{"unknown", &Principal{ID: id, Role: "owner"}, false, uuid.Nil},
		{"nil", nil, false, uuid.Nil},
	}

	for _, tt := range tests {
		got := ScopeFor(tt.principal)
		if got.All != tt.wantAll || got.UserID != tt.wantUser {
			t.Errorf("%s: ScopeFor = %+v, want All=%v UserID=%v", tt.name, got, tt.wantAll, tt.wantUser)
		}
	}
}

func TestRoleValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleMechanic, true},
		{"manager", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
