package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"order-workflow/internal/apitest"
	"order-workflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliRunner struct {
	t     *testing.T
	api   string
	token string
}

func newRunner(t *testing.T, srv *apitest.Server) *cliRunner {
	return &cliRunner{t: t, api: srv.URL, token: filepath.Join(t.TempDir(), "token")}
}

func (r *cliRunner) run(args ...string) (string, error) {
	r.t.Helper()
	var out bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &out
	full := append([]string{"pedidos", "--api", r.api, "--token-file", r.token, "--log-level", "error"}, args...)
	err := a.Run(full)
	return out.String(), err
}

func (r *cliRunner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run(args...)
	require.NoError(r.t, err, out)
	return out
}

func TestCLIOrderFlow(t *testing.T) {
	srv := apitest.New(t)
	warehouse := newRunner(t, srv)

	out := warehouse.mustRun("login", "-e", apitest.Email(model.RoleWarehouse), "-p", apitest.Password)
	assert.Contains(t, out, "Almacén")
	assert.Contains(t, warehouse.mustRun("whoami"), apitest.Email(model.RoleWarehouse))

	out = warehouse.mustRun("create", "--cliente", "Bar O Porto", "--direccion", "Rúa do Mar 3",
		"--producto", "Percebe:4:kg", "--producto", "Zamburiña:20")
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2)
	code, id := fields[0], fields[1]
	assert.True(t, strings.HasPrefix(code, "PED-2026-"), code)

	list := warehouse.mustRun("list")
	assert.Contains(t, list, "Bar O Porto")
	assert.Contains(t, list, "En Preparación")

	shown := warehouse.mustRun("show", code)
	assert.Contains(t, shown, "Percebe")
	assert.Contains(t, shown, "unidades")

	assert.Contains(t, warehouse.mustRun("edit", "--notas", "Frágil", id), "Pedido actualizado")

	_, err := warehouse.run("dashboard")
	assert.Error(t, err, "dashboard is admin only")

	dir := t.TempDir()
	out = warehouse.mustRun("export", "--out", dir, id)
	data, err := os.ReadFile(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Percebe")

	assert.Contains(t, warehouse.mustRun("advance", id), "Asignar Ruta")
	assert.NotContains(t, warehouse.mustRun("list"), "Bar O Porto")

	_, err = warehouse.run("advance", id)
	assert.Error(t, err)

	warehouse.mustRun("logout")
	_, err = warehouse.run("whoami")
	assert.Error(t, err)
}

func TestCLIAdminViews(t *testing.T) {
	srv := apitest.New(t)
	admin := newRunner(t, srv)
	admin.mustRun("login", "-e", apitest.Email(model.RoleAdmin), "-p", apitest.Password)

	admin.mustRun("create", "--cliente", "Urxente SL", "--direccion", "Praza 1", "--prioridad", "urgente", "--producto", "Pulpo:2:kg")

	dash := admin.mustRun("dashboard")
	assert.Contains(t, dash, "Urgentes")
	assert.Contains(t, dash, "En Preparación")
	assert.Contains(t, admin.mustRun("pipeline"), "Urxente SL")

	users := admin.mustRun("users", "list")
	assert.Contains(t, users, apitest.Email(model.RoleCarrier))
	admin.mustRun("users", "create", "--email", "nova@pedidos.local", "--nombre", "Nova", "--rol", "oficina", "--password", "secreto1")
	assert.Contains(t, admin.mustRun("users", "list"), "nova@pedidos.local")
	assert.Contains(t, admin.mustRun("log"), "user_created")
}

func TestParseItem(t *testing.T) {
	item, err := parseItem("Navajas : 2.5 : cajas")
	require.NoError(t, err)
	assert.Equal(t, "Navajas", item.Name)
	assert.True(t, item.RequestedQty.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, model.UnitBoxes, item.Unit)

	item, err = parseItem("Algas:1")
	require.NoError(t, err)
	assert.Equal(t, model.UnitUnits, item.Unit)

	for _, bad := range []string{"", "solo", ":3", "Pulpo:muchos", "a:1:kg:x"} {
		_, err := parseItem(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseOptionalQty(t *testing.T) {
	qty, err := parseOptionalQty("")
	require.NoError(t, err)
	assert.False(t, qty.Valid)

	qty, err = parseOptionalQty("7")
	require.NoError(t, err)
	assert.True(t, qty.Valid)

	_, err = parseOptionalQty("siete")
	assert.Error(t, err)
}
