package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/gateway"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/store"
)

// BudgetsHandler handles budget endpoints.
type BudgetsHandler struct {
	Gateway *gateway.Gateway
}

// List handles GET /api/budgets.
func (h *BudgetsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())

	f := store.BudgetFilter{
		Status: model.Status(r.URL.Query().Get("status")),
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if v := r.URL.Query().Get("mechanic_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid mechanic id")
			return
		}
		f.MechanicID = id
	}

	list, err := h.Gateway.ListBudgets(r.Context(), p, f)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]budgetView, 0, len(list))
	for i := range list {
		views = append(views, newBudgetView(p, &list[i]))
	}
	jsonResponse(w, http.StatusOK, views)
}

// Create handles POST /api/budgets.
func (h *BudgetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())

	var draft gateway.BudgetDraft
	if err := decodeJSON(r, &draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.Gateway.CreateBudget(r.Context(), p, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newBudgetView(p, b))
}

// Get handles GET /api/budgets/{id}.
func (h *BudgetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid budget id")
		return
	}

	res, err := h.Gateway.Get(r.Context(), p, model.Ref{Type: model.TypeBudget, ID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, newBudgetView(p, res.(*model.Budget)))
}

// Update handles PUT /api/budgets/{id}.
func (h *BudgetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid budget id")
		return
	}

	var patch gateway.BudgetPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Gateway.Apply(r.Context(), p, id, &patch)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, newBudgetView(p, res.(*model.Budget)))
}

// Delete handles DELETE /api/budgets/{id}.
func (h *BudgetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid budget id")
		return
	}

	ref := model.Ref{Type: model.TypeBudget, ID: id}
	if err := h.Gateway.Delete(r.Context(), GetPrincipal(r.Context()), ref); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "budget deleted"})
}
