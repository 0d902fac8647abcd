package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/oficina/internal/gateway"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/provision"
	"github.com/erazemk/oficina/internal/share"
)

// Deps are the services the API is built on.
type Deps struct {
	DB          *sql.DB
	JWTSecret   string
	TokenTTL    time.Duration
	Gateway     *gateway.Gateway
	Issuer      *share.Issuer
	Viewer      *share.Viewer
	Provisioner *provision.Provisioner
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL}
	usersHandler := &UsersHandler{DB: d.DB, Provisioner: d.Provisioner}
	settingsHandler := &SettingsHandler{DB: d.DB}
	checklistsHandler := &ChecklistsHandler{Gateway: d.Gateway}
	budgetsHandler := &BudgetsHandler{Gateway: d.Gateway}
	linksHandler := &LinksHandler{Issuer: d.Issuer}
	publicHandler := &PublicHandler{Viewer: d.Viewer}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login and shared resources.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/public/{type}/{token}", publicHandler.Get)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/profile", authMW(http.HandlerFunc(usersHandler.Me)))
	mux.Handle("PUT /api/profile", authMW(http.HandlerFunc(usersHandler.UpdateMe)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}/role", authMW(requireAdmin(http.HandlerFunc(usersHandler.SetRole))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))

	// Settings: read (all roles), write (admin).
	mux.Handle("GET /api/settings", authMW(http.HandlerFunc(settingsHandler.GetCompany)))
	mux.Handle("PUT /api/settings", authMW(requireAdmin(http.HandlerFunc(settingsHandler.SetCompany))))

	// Checklists. Per-resource rules live in the gateway.
	mux.Handle("GET /api/checklists", authMW(http.HandlerFunc(checklistsHandler.List)))
	mux.Handle("POST /api/checklists", authMW(http.HandlerFunc(checklistsHandler.Create)))
	mux.Handle("GET /api/checklists/{id}", authMW(http.HandlerFunc(checklistsHandler.Get)))
	mux.Handle("PUT /api/checklists/{id}", authMW(http.HandlerFunc(checklistsHandler.Update)))
	mux.Handle("DELETE /api/checklists/{id}", authMW(http.HandlerFunc(checklistsHandler.Delete)))
	mux.Handle("PUT /api/checklists/{id}/items/{itemID}", authMW(http.HandlerFunc(checklistsHandler.SetItem)))
	mux.Handle("POST /api/checklists/{id}/photos", authMW(http.HandlerFunc(checklistsHandler.UploadPhoto)))
	mux.Handle("GET /api/checklists/{id}/photos/{photoID}", authMW(http.HandlerFunc(checklistsHandler.GetPhoto)))
	mux.Handle("POST /api/checklists/{id}/link", authMW(linksHandler.Share(model.TypeChecklist)))
	mux.Handle("DELETE /api/checklists/{id}/link", authMW(linksHandler.Deactivate(model.TypeChecklist)))
	mux.Handle("GET /api/checklists/{id}/links", authMW(linksHandler.History(model.TypeChecklist)))

	// Budgets.
	mux.Handle("GET /api/budgets", authMW(http.HandlerFunc(budgetsHandler.List)))
	mux.Handle("POST /api/budgets", authMW(http.HandlerFunc(budgetsHandler.Create)))
	mux.Handle("GET /api/budgets/{id}", authMW(http.HandlerFunc(budgetsHandler.Get)))
	mux.Handle("PUT /api/budgets/{id}", authMW(http.HandlerFunc(budgetsHandler.Update)))
	mux.Handle("DELETE /api/budgets/{id}", authMW(http.HandlerFunc(budgetsHandler.Delete)))
	mux.Handle("POST /api/budgets/{id}/link", authMW(linksHandler.Share(model.TypeBudget)))
	mux.Handle("DELETE /api/budgets/{id}/link", authMW(linksHandler.Deactivate(model.TypeBudget)))
	mux.Handle("GET /api/budgets/{id}/links", authMW(linksHandler.History(model.TypeBudget)))

	return mux
}
