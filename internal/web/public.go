package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/apperr"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/share"
)

type checklistPage struct {
	PageData
	Token      string
	Mechanic   string
	Checklist  *share.ChecklistSnapshot
	Categories []categoryGroup
}

// categoryGroup is a run of items sharing a category.
type categoryGroup struct {
	Name    string
	Items   []share.ItemSnapshot
	Checked int
}

type budgetPage struct {
	PageData
	Mechanic string
	Budget   *share.BudgetSnapshot
}

// PublicPage handles GET /public/{type}/{token}. An unknown type, an unknown
// or inactive token and a type that does not match the link all render the
// same page.
func (s *Server) PublicPage(w http.ResponseWriter, r *http.Request) {
	t, ok := model.ParseResourceType(r.PathValue("type"))
	if !ok {
		s.notFound(w)
		return
	}

	token := r.PathValue("token")
	snap, err := s.Viewer.ResolveAs(r.Context(), t, token)
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")

	switch {
	case snap.Checklist != nil:
		s.Templates.Render(w, http.StatusOK, "public_checklist.html", checklistPage{
			PageData:   PageData{Title: "Relatório de Inspeção", Company: snap.Company},
			Token:      token,
			Mechanic:   snap.Mechanic,
			Checklist:  snap.Checklist,
			Categories: groupByCategory(snap.Checklist.Items),
		})
	case snap.Budget != nil:
		s.Templates.Render(w, http.StatusOK, "public_budget.html", budgetPage{
			PageData: PageData{Title: "Orçamento #" + strconv.FormatInt(snap.Budget.Number, 10), Company: snap.Company},
			Mechanic: snap.Mechanic,
			Budget:   snap.Budget,
		})
	default:
		s.notFound(w)
	}
}

// PublicPhoto handles GET /public/checklist/{token}/photos/{photoID}.
func (s *Server) PublicPhoto(w http.ResponseWriter, r *http.Request) {
	photoID, err := uuid.Parse(r.PathValue("photoID"))
	if err != nil {
		s.notFound(w)
		return
	}

	data, mime, err := s.Viewer.Photo(r.Context(), r.PathValue("token"), photoID)
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		s.notFound(w)
	case errors.Is(err, apperr.ErrStore):
		slog.Error("public view unavailable", "error", err)
		s.Templates.Render(w, http.StatusServiceUnavailable, "unavailable.html", PageData{Title: "Indisponível"})
	default:
		slog.Error("public view failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) notFound(w http.ResponseWriter) {
	s.Templates.Render(w, http.StatusNotFound, "not_found.html", PageData{Title: "Link inválido"})
}

// groupByCategory splits items, already ordered by category, into groups.
func groupByCategory(items []share.ItemSnapshot) []categoryGroup {
	var groups []categoryGroup
	for _, it := range items {
		if len(groups) == 0 || groups[len(groups)-1].Name != it.Category {
			groups = append(groups, categoryGroup{Name: it.Category})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, it)
		if it.Checked {
			g.Checked++
		}
	}
	return groups
}
