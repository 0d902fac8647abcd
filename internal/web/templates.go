package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/oficina/internal/model"
	webembed "github.com/erazemk/oficina/web"
)

// displayLocation is the zone dates are shown in on public pages.
var displayLocation = loadLocation("America/Sao_Paulo")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"statusName": func(s model.Status) string {
			// Both lifecycles share pending and cancelled.
			switch s {
			case model.ChecklistPending:
				return "Pendente"
			case model.ChecklistInProgress:
				return "Em Andamento"
			case model.ChecklistCompleted:
				return "Concluído"
			case model.BudgetApproved:
				return "Aprovado"
			case model.BudgetRejected:
				return "Rejeitado"
			case model.ChecklistCancelled:
				return "Cancelado"
			default:
				return string(s)
			}
		},
		"priorityName": func(p model.Priority) string {
			switch p {
			case model.PriorityLow:
				return "Baixa"
			case model.PriorityNormal:
				return "Normal"
			case model.PriorityHigh:
				return "Alta"
			case model.PriorityUrgent:
				return "Urgente"
			default:
				return string(p)
			}
		},
		"money": formatMoney,
		"date": func(t time.Time) string {
			return t.In(displayLocation).Format("02/01/2006 15:04")
		},
	}
}

// formatMoney renders cents the way Brazilian invoices do: R$ 1.234,56.
func formatMoney(cents int64) string {
	s := model.FormatCents(cents)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), frac)
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"public_checklist.html",
		"public_budget.html",
		"not_found.html",
		"unavailable.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given status and data. The page is
// rendered into a buffer first so a template error never leaves a half
// written response behind a 200.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	Company model.Company
}
