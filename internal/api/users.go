package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/provision"
	"github.com/erazemk/oficina/internal/sanitize"
	"github.com/erazemk/oficina/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB          *sql.DB
	Provisioner *provision.Provisioner
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
}

// List handles GET /api/users. The optional role query narrows the list,
// which is how assignee pickers get the mechanics.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "unknown role", "field": "role"})
		return
	}

	users, err := store.ListUsers(r.Context(), h.DB, role)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req provision.NewPrincipal
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.Provisioner.CreatePrincipal(r.Context(), GetPrincipal(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil || user == nil {
		slog.Error("failed to load created user", "user", id, "error", err)
		jsonResponse(w, http.StatusCreated, map[string]string{"id": id.String()})
		return
	}
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// SetRole handles PUT /api/users/{id}/role.
func (h *UsersHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Provisioner.SetRole(r.Context(), GetPrincipal(r.Context()), id, req.Role); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "role updated"})
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Provisioner.ResetPassword(r.Context(), GetPrincipal(r.Context()), id, req.Password); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Me handles GET /api/profile.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	user, err := store.GetUser(r.Context(), h.DB, p.ID)
	if err != nil {
		slog.Error("failed to get profile", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/profile. Only the display name is editable here;
// role changes go through the admin endpoints.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := sanitize.Text(req.FullName)
	if name == "" {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "is required", "field": "full_name"})
		return
	}

	if err := store.SetFullName(r.Context(), h.DB, p.ID, name); err != nil {
		slog.Error("failed to update profile", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
		return
	}

	slog.Info("profile updated", "user", p.ID)
	h.Me(w, r)
}
