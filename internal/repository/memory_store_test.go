package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(id, code string, stage int, created time.Time) *model.Order {
	return &model.Order{
		ID:          id,
		Code:        code,
		Client:      "Lonja de Burela",
		Address:     "Rúa do Porto 1",
		Description: "Pedido semanal de bonito",
		Priority:    model.PriorityMedium,
		Stage:       stage,
		CreatedAt:   created,
		UpdatedAt:   created,
		Products: []model.Product{
			{ID: id + "-p1", OrderID: id, Name: "Bonito", RequestedQty: decimal.NewFromInt(40), Unit: model.UnitKg},
		},
	}
}

func TestMemoryStore_NextCodeIsSequentialPerYear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var codes []string
	for i := 0; i < 3; i++ {
		code, err := s.Orders().NextCode(ctx, 2026)
		require.NoError(t, err)
		codes = append(codes, code)
	}
	other, err := s.Orders().NextCode(ctx, 2027)
	require.NoError(t, err)

	assert.Equal(t, []string{"PED-2026-0001", "PED-2026-0002", "PED-2026-0003"}, codes)
	assert.Equal(t, "PED-2027-0001", other)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	a := sampleOrder("a", "PED-2026-0001", 0, base)
	b := sampleOrder("b", "PED-2026-0002", 1, base.Add(time.Hour))
	b.Client = "Conservas Ortiz"
	b.Priority = model.PriorityUrgent
	require.NoError(t, s.Orders().Create(ctx, a))
	require.NoError(t, s.Orders().Create(ctx, b))

	all, err := s.Orders().List(ctx, model.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID, "newest first")

	stage := 1
	byStage, _ := s.Orders().List(ctx, model.OrderFilter{Stage: &stage})
	require.Len(t, byStage, 1)
	assert.Equal(t, "b", byStage[0].ID)

	byPriority, _ := s.Orders().List(ctx, model.OrderFilter{Priority: model.PriorityUrgent})
	require.Len(t, byPriority, 1)

	bySearch, _ := s.Orders().List(ctx, model.OrderFilter{Search: "ORTIZ"})
	require.Len(t, bySearch, 1)
	assert.Equal(t, "b", bySearch[0].ID)

	byCode, _ := s.Orders().List(ctx, model.OrderFilter{Search: "0001"})
	require.Len(t, byCode, 1)
	assert.Equal(t, "a", byCode[0].ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Orders().Create(ctx, sampleOrder("a", "PED-2026-0001", 0, time.Now())))

	got, err := s.Orders().Get(ctx, "a")
	require.NoError(t, err)
	got.Stage = 3
	got.Products[0].Name = "cambiado"

	again, _ := s.Orders().Get(ctx, "a")
	assert.Equal(t, 0, again.Stage)
	assert.Equal(t, "Bonito", again.Products[0].Name)
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Orders().Create(ctx, sampleOrder("a", "PED-2026-0001", 3, time.Now())))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Store) error {
		record, err := model.NewHistoryRecord("h1", sampleOrder("a", "PED-2026-0001", 3, time.Now()), time.Now(), "Olga", "u-ofi")
		require.NoError(t, err)
		require.NoError(t, tx.History().Create(ctx, record))
		require.NoError(t, tx.Orders().Delete(ctx, "a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Orders().Get(ctx, "a")
	assert.NoError(t, err)
	_, err = s.History().GetByOrder(ctx, "a")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestMemoryStore_HistoryIsUniquePerOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	order := sampleOrder("a", "PED-2026-0001", 3, time.Now())

	first, _ := model.NewHistoryRecord("h1", order, time.Now(), "Olga", "u-ofi")
	second, _ := model.NewHistoryRecord("h2", order, time.Now(), "Olga", "u-ofi")

	require.NoError(t, s.History().Create(ctx, first))
	err := s.History().Create(ctx, second)
	assert.True(t, apperror.IsKind(err, apperror.KindAlreadyArchived))

	records, err := s.History().List(ctx, model.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryStore_Products(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Orders().Create(ctx, sampleOrder("a", "PED-2026-0001", 0, time.Now())))

	require.NoError(t, s.Orders().AddProduct(ctx, &model.Product{ID: "p2", OrderID: "a", Name: "Atún", RequestedQty: decimal.NewFromInt(5), Unit: model.UnitBoxes, Position: 1}))
	require.NoError(t, s.Orders().UpdatePreparedQty(ctx, &model.Product{ID: "p2", OrderID: "a", PreparedQty: decimal.NewNullDecimal(decimal.NewFromInt(4))}))

	got, _ := s.Orders().Get(ctx, "a")
	require.Len(t, got.Products, 2)
	assert.True(t, got.Products[1].PreparedQty.Decimal.Equal(decimal.NewFromInt(4)))

	require.NoError(t, s.Orders().DeleteProduct(ctx, "a", "a-p1"))
	err := s.Orders().DeleteProduct(ctx, "a", "a-p1")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	got, _ = s.Orders().Get(ctx, "a")
	require.Len(t, got.Products, 1)
	assert.Equal(t, "p2", got.Products[0].ID)
}

func TestMemoryStore_UsersAndActivity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Users().Create(ctx, &model.User{ID: "u1", Email: "ana@toscamare.es", Name: "Ana", Role: model.RoleWarehouse, Active: true}))
	err := s.Users().Create(ctx, &model.User{ID: "u2", Email: "ANA@toscamare.es", Name: "Otra", Role: model.RoleOffice})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	u, err := s.Users().GetByEmail(ctx, "Ana@Toscamare.es")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	now := time.Now()
	require.NoError(t, s.Activity().Append(ctx, &model.ActivityLogEntry{ID: "l1", Timestamp: now, Category: model.LogCategoryState, Action: model.ActionAdvanced}))
	require.NoError(t, s.Activity().Append(ctx, &model.ActivityLogEntry{ID: "l2", Timestamp: now.Add(time.Second), Category: model.LogCategoryUser, Action: model.ActionLogin}))

	all, _ := s.Activity().List(ctx, LogFilter{})
	require.Len(t, all, 2)
	assert.Equal(t, "l2", all[0].ID)

	stateOnly, _ := s.Activity().List(ctx, LogFilter{Category: model.LogCategoryState})
	require.Len(t, stateOnly, 1)
	assert.Equal(t, "l1", stateOnly[0].ID)
}
