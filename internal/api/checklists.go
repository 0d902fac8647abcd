package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/gateway"
	"github.com/erazemk/oficina/internal/imaging"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/store"
)

// ChecklistsHandler handles checklist endpoints.
type ChecklistsHandler struct {
	Gateway *gateway.Gateway
}

type setItemRequest struct {
	Checked     bool    `json:"checked"`
	Observation *string `json:"observation"`
}

// List handles GET /api/checklists.
func (h *ChecklistsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())

	f := store.ChecklistFilter{
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

	list, err := h.Gateway.ListChecklists(r.Context(), p, f)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]checklistView, 0, len(list))
	for i := range list {
		views = append(views, newChecklistView(p, &list[i]))
	}
	jsonResponse(w, http.StatusOK, views)
}

// Create handles POST /api/checklists.
func (h *ChecklistsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())

	var draft gateway.ChecklistDraft
	if err := decodeJSON(r, &draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Gateway.CreateChecklist(r.Context(), p, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newChecklistView(p, c))
}

// Get handles GET /api/checklists/{id}.
func (h *ChecklistsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid checklist id")
		return
	}

	res, err := h.Gateway.Get(r.Context(), p, model.Ref{Type: model.TypeChecklist, ID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, newChecklistView(p, res.(*model.Checklist)))
}

// Update handles PUT /api/checklists/{id}.
func (h *ChecklistsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid checklist id")
		return
	}

	var patch gateway.ChecklistPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Gateway.Apply(r.Context(), p, id, &patch)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, newChecklistView(p, res.(*model.Checklist)))
}

// Delete handles DELETE /api/checklists/{id}.
func (h *ChecklistsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid checklist id")
		return
	}

	ref := model.Ref{Type: model.TypeChecklist, ID: id}
	if err := h.Gateway.Delete(r.Context(), GetPrincipal(r.Context()), ref); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "checklist deleted"})
}

// SetItem handles PUT /api/checklists/{id}/items/{itemID}.
func (h *ChecklistsHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid checklist id")
		return
	}
	itemID, ok := pathID(r, "itemID")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req setItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Gateway.SetItemChecked(r.Context(), p, id, itemID, req.Checked, req.Observation)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, newChecklistView(p, c))
}

// UploadPhoto handles POST /api/checklists/{id}/photos.
func (h *ChecklistsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid checklist id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	photoID, err := h.Gateway.AddPhoto(r.Context(), GetPrincipal(r.Context()), id, file)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{"id": photoID.String()})
}

// GetPhoto handles GET /api/checklists/{id}/photos/{photoID}.
func (h *ChecklistsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid checklist id")
		return
	}
	photoID, ok := pathID(r, "photoID")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	data, mime, err := h.Gateway.Photo(r.Context(), GetPrincipal(r.Context()), id, photoID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
