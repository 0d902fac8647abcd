package api

import (
	"net/http"

	"github.com/erazemk/oficina/internal/apperr"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/share"
)

// LinksHandler handles public link endpoints of both resource types.
type LinksHandler struct {
	Issuer *share.Issuer
}

type linkResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// Share handles POST /api/{checklists,budgets}/{id}/link. Repeated calls
// return the same link until it is deactivated.
func (h *LinksHandler) Share(t model.ResourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			jsonError(w, http.StatusBadRequest, "invalid "+string(t)+" id")
			return
		}

		token, err := h.Issuer.Share(r.Context(), GetPrincipal(r.Context()), model.Ref{Type: t, ID: id})
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, linkResponse{Token: token, URL: h.Issuer.URL(t, token)})
	}
}

// Deactivate handles DELETE /api/{checklists,budgets}/{id}/link.
func (h *LinksHandler) Deactivate(t model.ResourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			jsonError(w, http.StatusBadRequest, "invalid "+string(t)+" id")
			return
		}

		if err := h.Issuer.Deactivate(r.Context(), GetPrincipal(r.Context()), model.Ref{Type: t, ID: id}); err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"message": "link deactivated"})
	}
}

// History handles GET /api/{checklists,budgets}/{id}/links.
func (h *LinksHandler) History(t model.ResourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			jsonError(w, http.StatusBadRequest, "invalid "+string(t)+" id")
			return
		}

		links, err := h.Issuer.Links(r.Context(), GetPrincipal(r.Context()), model.Ref{Type: t, ID: id})
		if err != nil {
			writeError(w, err)
			return
		}
		if links == nil {
			links = []model.PublicLink{}
		}
		jsonResponse(w, http.StatusOK, links)
	}
}

// PublicHandler serves shared resources to anyone holding a token.
type PublicHandler struct {
	Viewer *share.Viewer
}

// Get handles GET /api/public/{type}/{token}. It takes no session.
func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := model.ParseResourceType(r.PathValue("type"))
	if !ok {
		writeError(w, apperr.ErrNotFound)
		return
	}

	snap, err := h.Viewer.ResolveAs(r.Context(), t, r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	jsonResponse(w, http.StatusOK, snap)
}
