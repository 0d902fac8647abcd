package model

import "time"

// PublicLink is a capability granting read-only access to one resource.
type PublicLink struct {
	Token         string     `json:"token"`
	Ref           Ref        `json:"resource"`
	Active        bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// Company is the workshop header shown on public pages.
type Company struct {
	Name    string `json:"company_name"`
	Address string `json:"company_address"`
	Phone   string `json:"company_phone"`
}
