package client

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"order-workflow/internal/apitest"
	"order-workflow/internal/apperror"
	"order-workflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedIn(t *testing.T, srv *apitest.Server, role model.Role) *Client {
	t.Helper()
	c := New(srv.URL, NewMemoryTokenStore())
	_, err := c.Login(context.Background(), apitest.Email(role), apitest.Password)
	require.NoError(t, err)
	return c
}

func draft() model.OrderDraft {
	return model.OrderDraft{
		Client:  "Conservas do Mar",
		Address: "Peirao 2",
		Phone:   "986 123 456",
		Products: []model.ProductDraft{
			{Name: "Mejillón", RequestedQty: decimal.NewFromInt(30), Unit: model.UnitKg},
		},
	}
}

func TestClientOrderFlow(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse)
	logistics := loggedIn(t, srv, model.RoleLogistics)
	carrier := loggedIn(t, srv, model.RoleCarrier)
	office := loggedIn(t, srv, model.RoleOffice)

	order, err := warehouse.CreateOrder(ctx, draft())
	require.NoError(t, err)
	assert.Equal(t, "+34986123456", order.Phone)

	_, err = logistics.AdvanceOrder(ctx, order.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotAuthorized), "got %v", err)

	item, err := warehouse.AddItem(ctx, order.ID, model.ProductDraft{Name: "Berberecho", RequestedQty: decimal.NewFromInt(5), Unit: model.UnitKg})
	require.NoError(t, err)
	_, err = warehouse.UpdateItemPreparedQty(ctx, order.ID, item.ID, decimal.NewNullDecimal(decimal.NewFromInt(5)))
	require.NoError(t, err)
	items, err := warehouse.ListItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	require.NoError(t, warehouse.DeleteItem(ctx, order.ID, item.ID))

	updated, err := warehouse.UpdateOrder(ctx, order.ID, model.OrderPatch{Notes: strPtr("Entregar antes de las 9")})
	require.NoError(t, err)
	assert.Equal(t, "Entregar antes de las 9", updated.Notes)

	res, err := warehouse.AdvanceOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, res.Archived())
	assert.Equal(t, model.StageRouting, res.Order.Stage)

	err = warehouse.DeleteOrder(ctx, order.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotEditable))

	carriers, err := logistics.ListCarriers(ctx)
	require.NoError(t, err)
	require.Len(t, carriers, 1)
	assigned, err := logistics.AssignCarrier(ctx, order.ID, carriers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, carriers[0].ID, assigned.AssignedTo)

	_, err = logistics.AdvanceOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = carrier.UpdateChecklist(ctx, order.ID, model.Checklist{GoodsOK: true, ConditionOK: true, DocsOK: false})
	require.NoError(t, err)
	_, err = carrier.AdvanceOrder(ctx, order.ID)
	require.NoError(t, err)

	res, err = office.AdvanceOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, res.Archived())
	assert.Equal(t, order.ID, res.History.OrderID)

	_, err = office.FinalizeOrder(ctx, order.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindAlreadyArchived))

	active, err := office.ListOrders(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, active)
	history, err := office.ListHistory(ctx, ListFilter{Search: "conservas"})
	require.NoError(t, err)
	assert.Len(t, history, 1)
	completed, err := office.ListOrders(ctx, ListFilter{Completed: true})
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestClientListFilter(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse)

	_, err := warehouse.CreateOrder(ctx, draft())
	require.NoError(t, err)
	urgent := draft()
	urgent.Priority = model.PriorityUrgent
	_, err = warehouse.CreateOrder(ctx, urgent)
	require.NoError(t, err)

	stage := 0
	all, err := warehouse.ListOrders(ctx, ListFilter{Stage: &stage})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyUrgent, err := warehouse.ListOrders(ctx, ListFilter{Priority: model.PriorityUrgent})
	require.NoError(t, err)
	require.Len(t, onlyUrgent, 1)
	assert.Equal(t, "PED-2026-0002", onlyUrgent[0].Code)

	_, err = warehouse.ListOrders(ctx, ListFilter{Priority: "rapida"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestClientDocumentsAndExport(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse)
	order, err := warehouse.CreateOrder(ctx, draft())
	require.NoError(t, err)

	pdf := []byte("%PDF-1.7\ncontenido\n%%EOF")
	withDoc, err := warehouse.UploadDocument(ctx, order.ID, "albaran.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.NotEmpty(t, withDoc.DocumentPath)

	name, data, err := warehouse.DownloadDocument(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
	assert.Equal(t, order.Code+".pdf", name)
	assert.Equal(t, srv.URL+"/api/archivos/pedidos/"+order.ID+"/pdf", warehouse.DocumentURL(order.ID))

	_, err = warehouse.UploadDocument(ctx, order.ID, "foto.png", bytes.NewReader([]byte("png")))
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	name, data, err = warehouse.ExportOrder(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, order.Code+".csv", name)
	assert.Contains(t, string(data), "Mejillón")

	name, _, err = warehouse.ExportOrder(ctx, order.ID, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, order.Code+".xlsx", name)
}

func TestClientUsersAndLog(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	admin := loggedIn(t, srv, model.RoleAdmin)
	warehouse := loggedIn(t, srv, model.RoleWarehouse)

	created, err := admin.CreateUser(ctx, model.CreateUserRequest{Email: "Marta@Pedidos.Local", Name: "Marta", Role: model.RoleOffice})
	require.NoError(t, err)
	assert.Equal(t, "marta@pedidos.local", created.Email)

	_, err = admin.CreateUser(ctx, model.CreateUserRequest{Email: "marta@pedidos.local", Name: "Otra", Role: model.RoleOffice})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.EqualError(t, err, "Ya existe ese usuario")

	off := false
	updated, err := admin.UpdateUser(ctx, created.ID, model.UpdateUserRequest{Active: &off})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	users, err := admin.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, len(model.Roles)+1)

	entries, err := admin.ListLog(ctx, model.LogCategoryUser)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, model.ActionUserDeactivated, entries[0].Action)

	_, err = warehouse.ListUsers(ctx)
	assert.True(t, apperror.IsKind(err, apperror.KindNotAuthorized))
	_, err = warehouse.ListLog(ctx, "")
	assert.True(t, apperror.IsKind(err, apperror.KindNotAuthorized))
}

func TestClientAuth(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	tokens := NewMemoryTokenStore()
	c := New(srv.URL, tokens)

	_, err := c.Login(ctx, apitest.Email(model.RoleWarehouse), "incorrecta")
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))

	resp, err := c.Login(ctx, apitest.Email(model.RoleWarehouse), apitest.Password)
	require.NoError(t, err)
	stored, _ := tokens.Load()
	assert.Equal(t, resp.Token, stored)

	identity, err := c.VerifyToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleWarehouse, identity.Role)

	require.NoError(t, c.Logout(ctx))
	stored, _ = tokens.Load()
	assert.Empty(t, stored)

	// 失効済みトークンを再設定しても401になり、ストアは消去される
	require.NoError(t, tokens.Save(resp.Token))
	_, err = c.ListOrders(ctx, ListFilter{})
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
	stored, _ = tokens.Load()
	assert.Empty(t, stored)

	assert.Equal(t, srv.URL+"/api/login", c.LoginURL())
}

func TestClientErrorShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pedidos/detail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"upstream caído"}`))
	})
	mux.HandleFunc("/api/pedidos/plain", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})
	mux.HandleFunc("/api/pedidos/coded", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"PED-1 ya no se puede modificar","code":"not_editable"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(srv.URL, nil)
	ctx := context.Background()

	_, err := c.GetOrder(ctx, "detail")
	assert.True(t, apperror.IsKind(err, apperror.KindServer))
	assert.EqualError(t, err, "upstream caído")

	_, err = c.GetOrder(ctx, "plain")
	assert.EqualError(t, err, "boom")

	_, err = c.GetOrder(ctx, "coded")
	assert.True(t, apperror.IsKind(err, apperror.KindNotEditable))

	srv.Close()
	_, err = c.GetOrder(ctx, "detail")
	assert.True(t, apperror.IsKind(err, apperror.KindServer))
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedidos", "token")
	s := NewFileTokenStore(path)

	token, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.Save("abc.def.ghi"))
	token, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	token, _ = s.Load()
	assert.Empty(t, token)
}

func strPtr(s string) *string { return &s }
