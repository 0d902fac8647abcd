package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/sanitize"
	"github.com/erazemk/oficina/internal/store"
)

// SettingsHandler handles the workshop header shown on public pages.
type SettingsHandler struct {
	DB *sql.DB
}

// GetCompany handles GET /api/settings.
func (h *SettingsHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := store.GetCompany(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to get company settings", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// SetCompany handles PUT /api/settings (admin only).
func (h *SettingsHandler) SetCompany(w http.ResponseWriter, r *http.Request) {
	var req model.Company
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := model.Company{
		Name:    sanitize.Text(req.Name),
		Address: sanitize.Text(req.Address),
		Phone:   sanitize.Text(req.Phone),
	}
	if err := store.SetCompany(r.Context(), h.DB, c); err != nil {
		slog.Error("failed to store company settings", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
		return
	}

	slog.Info("company settings updated", "user", GetPrincipal(r.Context()).ID)
	jsonResponse(w, http.StatusOK, c)
}
