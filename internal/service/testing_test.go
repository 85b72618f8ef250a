package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/workflow"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin     = workflow.Actor{ID: "u-admin", Name: "Admin", Role: model.RoleAdmin}
	warehouse = workflow.Actor{ID: "u-alm", Name: "Ana", Role: model.RoleWarehouse}
	logistics = workflow.Actor{ID: "u-log", Name: "Luis", Role: model.RoleLogistics}
	carrier   = workflow.Actor{ID: "u-tra", Name: "Tomás", Role: model.RoleCarrier}
	office    = workflow.Actor{ID: "u-ofi", Name: "Olga", Role: model.RoleOffice}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store     *repository.MemoryStore
	engine    *workflow.Engine
	publisher *recordingPublisher
	orders    OrderService
	products  ProductService
	users     UserService
	activity  ActivityLogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	engine := workflow.NewEngine(workflow.WithClock(func() time.Time { return now }))
	publisher := &recordingPublisher{}
	return &fixture{
		store:     store,
		engine:    engine,
		publisher: publisher,
		orders:    NewOrderService(store, engine, publisher, zap.NewNop()),
		products:  NewProductService(store, engine),
		users:     NewUserService(store, engine),
		activity:  NewActivityLogService(store),
	}
}

func sampleDraft() model.OrderDraft {
	return model.OrderDraft{
		Client:  "Pescadería Lonxa",
		Address: "Avenida do Porto 5",
		Products: []model.ProductDraft{
			{Name: "Merluza", RequestedQty: decimal.NewFromInt(12), Unit: model.UnitKg},
		},
	}
}

func (f *fixture) createOrder(t *testing.T) *model.Order {
	t.Helper()
	order, err := f.orders.Create(context.Background(), sampleDraft(), warehouse)
	require.NoError(t, err)
	return order
}

func (f *fixture) createCarrier(t *testing.T, email string, active bool) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.CreateUser(ctx, &model.CreateUserRequest{Email: email, Name: "Carrier " + email, Role: model.RoleCarrier}, admin)
	require.NoError(t, err)
	if !active {
		off := false
		u, err = f.users.UpdateUser(ctx, u.ID, &model.UpdateUserRequest{Active: &off}, admin)
		require.NoError(t, err)
	}
	return u
}
