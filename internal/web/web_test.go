package web

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/oficina/internal/db"
	"github.com/erazemk/oficina/internal/gateway"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/share"
	"github.com/erazemk/oficina/internal/store"
)

type fixture struct {
	db       *sql.DB
	server   *httptest.Server
	gateway  *gateway.Gateway
	issuer   *share.Issuer
	admin    *model.Principal
	mechanic *model.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	viewer := share.NewViewer(database, time.Second)

	router, err := NewRouter(viewer)
	require.NoError(t, err)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	require.NoError(t, store.SetCompany(context.Background(), database, model.Company{
		Name:  "Oficina Central",
		Phone: "(11) 5555-0100",
	}))

	return &fixture{
		db:       database,
		server:   server,
		gateway:  gateway.New(database, time.Second),
		issuer:   share.NewIssuer(database, server.URL, time.Second),
		admin:    newPrincipal(t, database, "admin@example.com", "Ana", model.RoleAdmin),
		mechanic: newPrincipal(t, database, "mech@example.com", "Marcos", model.RoleMechanic),
	}
}

func newPrincipal(t *testing.T, database *sql.DB, email, name string, role model.Role) *model.Principal {
	t.Helper()
	ctx := context.Background()
	u, err := store.CreateIdentity(ctx, database, email, "hash")
	require.NoError(t, err)
	require.NoError(t, store.UpdateProfile(ctx, database, u.ID, name, "", role))
	return &model.Principal{ID: u.ID, Role: role, Name: name}
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (f *fixture) sharedChecklist(t *testing.T) (*model.Checklist, string) {
	t.Helper()
	ctx := context.Background()

	c, err := f.gateway.CreateChecklist(ctx, f.admin, gateway.ChecklistDraft{
		MechanicID:   f.mechanic.ID,
		CustomerName: "Maria Souza",
		Plate:        "abc1d23",
		VehicleName:  "Fiat Uno",
		Items: []gateway.ItemDraft{
			{Name: "Óleo", Category: "Motor"},
			{Name: "Pastilhas", Category: "Freios"},
			{Name: "Filtro de ar", Category: "Motor"},
		},
	})
	require.NoError(t, err)

	obs := "Trocar em 5.000 km"
	_, err = f.gateway.SetItemChecked(ctx, f.mechanic, c.ID, c.Items[0].ID, true, &obs)
	require.NoError(t, err)

	token, err := f.issuer.Share(ctx, f.mechanic, c.Ref())
	require.NoError(t, err)
	return c, token
}

func TestPublicChecklistPage(t *testing.T) {
	f := newFixture(t)
	_, token := f.sharedChecklist(t)

	code, body := f.get(t, "/public/checklist/"+token)
	require.Equal(t, http.StatusOK, code)

	assert.Contains(t, body, "Oficina Central")
	assert.Contains(t, body, "Maria Souza")
	assert.Contains(t, body, "ABC1D23")
	assert.Contains(t, body, "Marcos")
	assert.Contains(t, body, "1 de 3")
	assert.Contains(t, body, "Freios")
	assert.Contains(t, body, "Trocar em 5.000 km")
	assert.NotContains(t, body, "mech@example.com")

	// Read-only: nothing on the page can submit anything.
	for _, tag := range []string{"<form", "<button", "<input", "<textarea", "<select"} {
		assert.NotContains(t, body, tag)
	}
}

func TestPublicBudgetPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.gateway.CreateBudget(ctx, f.mechanic, gateway.BudgetDraft{
		CustomerName:  "João",
		DiscountCents: 500,
		Items: []gateway.LineDraft{
			{Name: "Alinhamento", Quantity: 2, UnitPriceCents: 4500},
			{Name: "Troca de óleo", Quantity: 1, UnitPriceCents: 123456},
		},
	})
	require.NoError(t, err)

	token, err := f.issuer.Share(ctx, f.admin, b.Ref())
	require.NoError(t, err)

	code, body := f.get(t, "/public/budget/"+token)
	require.Equal(t, http.StatusOK, code)

	assert.Contains(t, body, "R$ 90,00")
	assert.Contains(t, body, "R$ 1.324,56")
	assert.Contains(t, body, "-R$ 5,00")
	assert.Contains(t, body, "R$ 1.319,56")
	assert.Contains(t, body, "Pendente")
	assert.NotContains(t, body, "<form")
}

func TestPublicNotFoundIsIdentical(t *testing.T) {
	f := newFixture(t)
	c, token := f.sharedChecklist(t)

	_, unknown := f.get(t, "/public/checklist/does-not-exist")

	paths := []string{
		"/public/budget/" + token,
		"/public/invoice/" + token,
		"/public/checklist/" + strings.Repeat("A", 43),
	}
	for _, path := range paths {
		code, body := f.get(t, path)
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.Equal(t, unknown, body, path)
	}

	require.NoError(t, f.issuer.Deactivate(context.Background(), f.admin, c.Ref()))
	code, body := f.get(t, "/public/checklist/"+token)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, unknown, body)
	assert.Contains(t, unknown, "Link inválido")
}

func TestPublicPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.sharedChecklist(t)
	_, otherToken := f.sharedChecklist(t)

	photoID, ok, err := store.AddChecklistPhoto(ctx, f.db, model.ScopeFor(f.admin), c.ID, []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	require.True(t, ok)

	code, body := f.get(t, "/public/checklist/"+token)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/public/checklist/"+token+"/photos/"+photoID.String())

	resp, err := http.Get(f.server.URL + "/public/checklist/" + token + "/photos/" + photoID.String())
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "jpeg bytes", string(data))

	// A token for another checklist does not unlock this photo.
	code, _ = f.get(t, "/public/checklist/"+otherToken+"/photos/"+photoID.String())
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.get(t, "/public/checklist/"+token+"/photos/not-a-uuid")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStaticAssets(t *testing.T) {
	f := newFixture(t)
	code, body := f.get(t, "/static/style.css")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, ".card")
}

func TestFormatMoney(t *testing.T) {
	tests := map[int64]string{
		0:         "R$ 0,00",
		5:         "R$ 0,05",
		-150:      "-R$ 1,50",
		100000:    "R$ 1.000,00",
		123456789: "R$ 1.234.567,89",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatMoney(in), "formatMoney(%d)", in)
	}
}

func TestGroupByCategory(t *testing.T) {
	groups := groupByCategory([]share.ItemSnapshot{
		{Name: "Pastilhas", Category: "Freios", Checked: true},
		{Name: "Filtro", Category: "Motor"},
		{Name: "Óleo", Category: "Motor", Checked: true},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "Freios", groups[0].Name)
	assert.Equal(t, 1, groups[0].Checked)
	assert.Len(t, groups[1].Items, 2)
	assert.Equal(t, 1, groups[1].Checked)
}
