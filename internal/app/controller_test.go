package app

import (
	"context"
	"testing"
	"time"

	"order-workflow/internal/apitest"
	"order-workflow/internal/apperror"
	"order-workflow/internal/authz"
	"order-workflow/internal/client"
	"order-workflow/internal/model"
	"order-workflow/internal/session"
	"order-workflow/internal/workflow"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newController(t *testing.T, srv *apitest.Server, opts ...Option) (*Controller, client.TokenStore) {
	t.Helper()
	tokens := client.NewMemoryTokenStore()
	sessions := session.NewManager(client.New(srv.URL, tokens), zap.NewNop())
	engine := workflow.NewEngine(workflow.WithClock(srv.Now))
	return NewController(sessions, engine, authz.MustNew(), zap.NewNop(), opts...), tokens
}

func loggedIn(t *testing.T, srv *apitest.Server, role model.Role, opts ...Option) *Controller {
	t.Helper()
	c, _ := newController(t, srv, opts...)
	_, err := c.Login(context.Background(), apitest.Email(role), apitest.Password)
	require.NoError(t, err)
	return c
}

func draft(customer string, priority model.Priority) model.OrderDraft {
	return model.OrderDraft{
		Client:   customer,
		Address:  "Rúa Nova 4",
		Priority: priority,
		Products: []model.ProductDraft{
			{Name: "Pulpo", RequestedQty: decimal.NewFromInt(12), Unit: model.UnitKg},
		},
	}
}

func notification(t *testing.T, c *Controller) Notification {
	t.Helper()
	n, ok := c.State().Notification()
	require.True(t, ok, "expected a notification")
	return n
}

func TestWorkflowAcrossRoles(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse)
	logistics := loggedIn(t, srv, model.RoleLogistics)
	carrier := loggedIn(t, srv, model.RoleCarrier)
	office := loggedIn(t, srv, model.RoleOffice)

	order, err := warehouse.CreateOrder(ctx, draft("Mariscos Rías Baixas", model.PriorityHigh))
	require.NoError(t, err)
	require.Len(t, warehouse.VisibleOrders(), 1)
	assert.Equal(t, NotifySuccess, notification(t, warehouse).Kind)

	require.NoError(t, warehouse.Advance(ctx, order.ID))
	assert.Equal(t, "Pedido movido a Asignar Ruta", notification(t, warehouse).Message)
	assert.Empty(t, warehouse.VisibleOrders(), "stage 1 belongs to logistica")

	// 担当外の操作はサーバーに送られない
	err = warehouse.Advance(ctx, order.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotAuthorized))
	assert.Equal(t, NotifyError, notification(t, warehouse).Kind)
	stored, err := srv.Store.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageRouting, stored.Stage)

	require.NoError(t, logistics.Refresh(ctx))
	require.Len(t, logistics.VisibleOrders(), 1)
	carriers := logistics.State().Carriers()
	require.Len(t, carriers, 1)

	err = logistics.AssignCarrier(ctx, order.ID, "desconocido")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	require.NoError(t, logistics.AssignCarrier(ctx, order.ID, carriers[0].ID))
	assert.Equal(t, carriers[0].ID, logistics.VisibleOrders()[0].AssignedTo)
	require.NoError(t, logistics.Advance(ctx, order.ID))

	require.NoError(t, carrier.Refresh(ctx))
	require.NoError(t, carrier.UpdateChecklist(ctx, order.ID, model.Checklist{GoodsOK: true, ConditionOK: true, DocsOK: true}))
	require.NoError(t, carrier.Advance(ctx, order.ID))

	require.NoError(t, office.Refresh(ctx))
	require.Len(t, office.VisibleOrders(), 1)
	require.NoError(t, office.Finalize(ctx, order.ID))
	assert.Empty(t, office.VisibleOrders())
	history := office.VisibleHistory()
	require.Len(t, history, 1)
	assert.Equal(t, order.Code, history[0].Code)
	assert.Equal(t, "Pedido archivado en el historial", notification(t, office).Message)

	err = office.Finalize(ctx, order.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound), "archived orders leave the active cache")
}

func TestRejectedActionsNeverReachServer(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	logistics := loggedIn(t, srv, model.RoleLogistics)

	_, err := logistics.CreateOrder(ctx, draft("Lonja", model.PriorityLow))
	assert.True(t, apperror.IsKind(err, apperror.KindNotAuthorized))

	warehouse := loggedIn(t, srv, model.RoleWarehouse)
	_, err = warehouse.CreateOrder(ctx, model.OrderDraft{Client: "Sin productos", Address: "Porto"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Equal(t, NotifyError, notification(t, warehouse).Kind)

	orders, err := srv.Store.Orders().List(ctx, model.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = warehouse.CreateUser(ctx, model.CreateUserRequest{Email: "x@pedidos.local", Name: "X", Role: model.RoleOffice, Password: "secreto1"})
	assert.True(t, apperror.IsKind(err, apperror.KindNotAuthorized))
}

func TestEditingIsLimitedToPreparation(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse)

	order, err := warehouse.CreateOrder(ctx, draft("Conservas", model.PriorityMedium))
	require.NoError(t, err)

	notes := "Cámara 2"
	require.NoError(t, warehouse.UpdateOrder(ctx, order.ID, model.OrderPatch{Notes: &notes}))
	require.NoError(t, warehouse.AddItem(ctx, order.ID, model.ProductDraft{Name: "Navajas", RequestedQty: decimal.NewFromInt(3), Unit: model.UnitBoxes}))

	cached, ok := warehouse.State().order(order.ID)
	require.True(t, ok)
	assert.Equal(t, "Cámara 2", cached.Notes)
	require.Len(t, cached.Products, 2)
	added := cached.Products[1].ID

	require.NoError(t, warehouse.SetPreparedQty(ctx, order.ID, added, decimal.NewNullDecimal(decimal.NewFromInt(3))))
	require.NoError(t, warehouse.DeleteItem(ctx, order.ID, added))
	require.NoError(t, warehouse.Advance(ctx, order.ID))

	err = warehouse.UpdateOrder(ctx, order.ID, model.OrderPatch{Notes: &notes})
	assert.True(t, apperror.IsKind(err, apperror.KindNotEditable))
	err = warehouse.Delete(ctx, order.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotEditable))
}

func TestDeleteOrder(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse)

	order, err := warehouse.CreateOrder(ctx, draft("Borrar", model.PriorityLow))
	require.NoError(t, err)
	require.NoError(t, warehouse.Delete(ctx, order.ID))
	assert.Empty(t, warehouse.VisibleOrders())
	assert.Equal(t, "Pedido eliminado", notification(t, warehouse).Message)
}

func TestNavigationFallsBackToOrders(t *testing.T) {
	srv := apitest.New(t)
	carrier := loggedIn(t, srv, model.RoleCarrier)
	admin := loggedIn(t, srv, model.RoleAdmin)

	view, err := carrier.Navigate(authz.ViewUsers)
	require.NoError(t, err)
	assert.Equal(t, authz.ViewOrders, view)
	assert.Equal(t, []authz.View{authz.ViewOrders, authz.ViewHistory}, carrier.VisibleViews())

	view, err = admin.Navigate(authz.ViewDashboard)
	require.NoError(t, err)
	assert.Equal(t, authz.ViewDashboard, view)
	assert.Equal(t, authz.ViewDashboard, admin.State().View())
	assert.Len(t, admin.VisibleViews(), len(authz.Views))
}

func TestFilters(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	admin := loggedIn(t, srv, model.RoleAdmin)
	warehouse := loggedIn(t, srv, model.RoleWarehouse)

	urgent, err := admin.CreateOrder(ctx, draft("Pescados Ortiz", model.PriorityUrgent))
	require.NoError(t, err)
	_, err = admin.CreateOrder(ctx, draft("Lonja de Vigo", model.PriorityLow))
	require.NoError(t, err)
	require.NoError(t, admin.Advance(ctx, urgent.ID))

	stage := model.StageRouting
	require.NoError(t, admin.SetFilter(Filter{Stage: &stage}))
	require.Len(t, admin.VisibleOrders(), 1)
	assert.Equal(t, urgent.ID, admin.VisibleOrders()[0].ID)

	require.NoError(t, admin.SetFilter(Filter{Search: "vigo"}))
	require.Len(t, admin.VisibleOrders(), 1)
	assert.Equal(t, "Lonja de Vigo", admin.VisibleOrders()[0].Client)

	require.NoError(t, admin.SetFilter(Filter{Priority: model.PriorityUrgent}))
	assert.Len(t, admin.VisibleOrders(), 1)

	bad := 7
	err = admin.SetFilter(Filter{Stage: &bad})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	// 管理者以外のステージ指定は無視される
	require.NoError(t, warehouse.Refresh(ctx))
	require.NoError(t, warehouse.SetFilter(Filter{Stage: &stage}))
	assert.Nil(t, warehouse.State().Filter().Stage)
	require.Len(t, warehouse.VisibleOrders(), 1)
	assert.Equal(t, model.StagePreparation, warehouse.VisibleOrders()[0].Stage)
}

func TestAdminCollections(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	admin := loggedIn(t, srv, model.RoleAdmin)
	office := loggedIn(t, srv, model.RoleOffice)

	assert.Len(t, admin.Users(), len(model.Roles))
	assert.NotEmpty(t, admin.State().Log(), "logins are logged")
	assert.Empty(t, office.Users())
	assert.Empty(t, office.State().Log())

	created, err := admin.CreateUser(ctx, model.CreateUserRequest{Email: "nuevo@pedidos.local", Name: "Nuevo", Role: model.RoleCarrier, Password: "secreto1"})
	require.NoError(t, err)
	assert.Len(t, admin.Users(), len(model.Roles)+1)
	assert.Len(t, admin.State().Carriers(), 2)

	require.NoError(t, admin.SetUserActive(ctx, created.ID, false))
	assert.Equal(t, "Usuario desactivado", notification(t, admin).Message)
	assert.Len(t, admin.State().Carriers(), 1)
}

func TestDashboardAndPipeline(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	admin := loggedIn(t, srv, model.RoleAdmin)

	done, err := admin.CreateOrder(ctx, draft("Entregado", model.PriorityMedium))
	require.NoError(t, err)
	_, err = admin.CreateOrder(ctx, draft("Urgente", model.PriorityUrgent))
	require.NoError(t, err)
	moving, err := admin.CreateOrder(ctx, draft("En ruta", model.PriorityLow))
	require.NoError(t, err)

	for i := 0; i < workflow.StageCount; i++ {
		require.NoError(t, admin.Advance(ctx, done.ID))
	}
	require.NoError(t, admin.Advance(ctx, moving.ID))

	d := admin.Dashboard()
	assert.Equal(t, 2, d.Active)
	assert.Equal(t, 1, d.Urgent)
	assert.Equal(t, 1, d.CompletedToday)
	require.Len(t, d.Stages, workflow.StageCount)
	assert.Equal(t, 1, d.Stages[0].Count)
	assert.Equal(t, 1, d.Stages[1].Count)
	assert.Equal(t, "En Preparación", d.Stages[0].Stage.Label)
	assert.Len(t, d.Recent, recentActivity)

	columns := admin.Pipeline()
	require.Len(t, columns, workflow.StageCount)
	assert.Len(t, columns[0].Orders, 1)
	assert.Len(t, columns[1].Orders, 1)
	assert.Empty(t, columns[2].Orders)

	srv.Advance(24 * time.Hour)
	assert.Equal(t, 0, admin.Dashboard().CompletedToday)
}

func TestInFlightGuard(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse)

	order, err := warehouse.CreateOrder(ctx, draft("Doble clic", model.PriorityMedium))
	require.NoError(t, err)

	require.True(t, warehouse.acquire("advance:"+order.ID))
	assert.ErrorIs(t, warehouse.Advance(ctx, order.ID), ErrBusy)
	assert.ErrorIs(t, warehouse.Finalize(ctx, order.ID), apperror.InvalidTransition(""), "guard runs before the in-flight check")
	warehouse.release("advance:" + order.ID)

	require.NoError(t, warehouse.Advance(ctx, order.ID))
}

func TestNotificationsAutoDismiss(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	warehouse := loggedIn(t, srv, model.RoleWarehouse, WithNotificationTTL(20*time.Millisecond))

	_, err := warehouse.CreateOrder(ctx, draft("Aviso", model.PriorityMedium))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, ok := warehouse.State().Notification()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNotificationReplacesPrevious(t *testing.T) {
	s := NewState(&session.Session{Identity: model.Identity{Role: model.RoleOffice}})
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	s.notify(NotifySuccess, "primero", now)
	s.notify(NotifyError, "segundo", now)
	n, ok := s.Notification()
	require.True(t, ok)
	assert.Equal(t, "segundo", n.Message)

	// 古いタイマーは新しい通知を消さない
	s.dismiss(1)
	_, ok = s.Notification()
	assert.True(t, ok)
	s.Close()
	_, ok = s.Notification()
	assert.False(t, ok)
}

func TestExpiredSessionTearsDown(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	c, tokens := newController(t, srv)
	_, err := c.Login(ctx, apitest.Email(model.RoleWarehouse), apitest.Password)
	require.NoError(t, err)
	state := c.State()

	srv.Advance(apitest.TokenTTL + time.Minute)
	err = c.Refresh(ctx)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))

	assert.Nil(t, c.State())
	assert.True(t, state.Closed())
	assert.Empty(t, state.Orders())
	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	_, err = c.CreateOrder(ctx, draft("Tarde", model.PriorityLow))
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLogoutAndRestore(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	c, tokens := newController(t, srv)
	_, err := c.Login(ctx, apitest.Email(model.RoleOffice), apitest.Password)
	require.NoError(t, err)

	sessions := session.NewManager(client.New(srv.URL, tokens), zap.NewNop())
	restored := NewController(sessions, workflow.NewEngine(workflow.WithClock(srv.Now)), authz.MustNew(), zap.NewNop())
	state, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOffice, state.Identity().Role)

	state = c.State()
	require.NoError(t, c.Logout(ctx))
	assert.Nil(t, c.State())
	assert.True(t, state.Closed())

	_, err = restored.Restore(ctx)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired), "logout cleared the shared token")
}
