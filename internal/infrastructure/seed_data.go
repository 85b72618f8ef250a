package infrastructure

import (
	"context"
	"fmt"

	"order-workflow/internal/model"
	"order-workflow/internal/service"
	"order-workflow/internal/workflow"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SeedPassword is the password of every sample account.
const SeedPassword = "password123"

// SeedDataManager handles sample data initialization
type SeedDataManager struct {
	userService  service.UserService
	orderService service.OrderService
	logger       *zap.Logger
}

// NewSeedDataManager creates a new seed data manager
func NewSeedDataManager(userService service.UserService, orderService service.OrderService, logger *zap.Logger) *SeedDataManager {
	return &SeedDataManager{
		userService:  userService,
		orderService: orderService,
		logger:       logger,
	}
}

// seedActor records sample data as created by the system.
var seedActor = workflow.Actor{ID: "system", Name: "Sistema", Role: model.RoleAdmin}

// SeedAll initializes all sample data. It does nothing once any user exists.
func (s *SeedDataManager) SeedAll(ctx context.Context) error {
	count, err := s.userService.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing users: %w", err)
	}
	if count > 0 {
		s.logger.Info("sample data already exists, skipping seed")
		return nil
	}

	if err := s.setupSampleUsers(ctx); err != nil {
		return fmt.Errorf("failed to setup sample users: %w", err)
	}
	if err := s.setupSampleOrders(ctx); err != nil {
		return fmt.Errorf("failed to setup sample orders: %w", err)
	}
	return nil
}

// setupSampleUsers はロールごとのサンプルユーザーを作成
func (s *SeedDataManager) setupSampleUsers(ctx context.Context) error {
	sampleUsers := []model.CreateUserRequest{
		{Email: "admin@pedidos.local", Name: "Administración", Role: model.RoleAdmin, Password: SeedPassword},
		{Email: "almacen@pedidos.local", Name: "Ana Almacén", Role: model.RoleWarehouse, Password: SeedPassword},
		{Email: "logistica@pedidos.local", Name: "Luis Logística", Role: model.RoleLogistics, Password: SeedPassword},
		{Email: "transporte@pedidos.local", Name: "Tomás Transporte", Role: model.RoleCarrier, Password: SeedPassword},
		{Email: "oficina@pedidos.local", Name: "Olga Oficina", Role: model.RoleOffice, Password: SeedPassword},
	}

	for i := range sampleUsers {
		user, err := s.userService.CreateUser(ctx, &sampleUsers[i], seedActor)
		if err != nil {
			return fmt.Errorf("failed to create sample user %s: %w", sampleUsers[i].Email, err)
		}
		s.logger.Info("created sample user", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	}
	return nil
}

// setupSampleOrders はステージの異なるサンプル注文を作成
func (s *SeedDataManager) setupSampleOrders(ctx context.Context) error {
	drafts := []struct {
		draft    model.OrderDraft
		advances int
	}{
		{
			draft: model.OrderDraft{
				Client:      "Restaurante O Porto",
				Address:     "Rúa do Mar 12, Vigo",
				Phone:       "986 12 34 56",
				Description: "Pedido semanal de pescado fresco",
				Priority:    model.PriorityHigh,
				Products: []model.ProductDraft{
					{Name: "Merluza", RequestedQty: decimal.NewFromInt(20), Unit: model.UnitKg},
					{Name: "Pulpo", RequestedQty: decimal.NewFromInt(8), Unit: model.UnitKg},
				},
			},
		},
		{
			draft: model.OrderDraft{
				Client:   "Conservas Rianxeira",
				Address:  "Polígono de Rianxo, nave 3",
				Priority: model.PriorityUrgent,
				Products: []model.ProductDraft{
					{Name: "Cajas de bonito", RequestedQty: decimal.NewFromInt(40), Unit: model.UnitBoxes},
				},
			},
			advances: 1,
		},
		{
			draft: model.OrderDraft{
				Client:  "Mercado de Abastos",
				Address: "Praza de Abastos s/n, Santiago",
				Products: []model.ProductDraft{
					{Name: "Mejillón", RequestedQty: decimal.NewFromInt(2), Unit: model.UnitPallets},
				},
			},
			advances: 2,
		},
	}

	for _, d := range drafts {
		order, err := s.orderService.Create(ctx, d.draft, seedActor)
		if err != nil {
			return fmt.Errorf("failed to create sample order for %s: %w", d.draft.Client, err)
		}
		for i := 0; i < d.advances; i++ {
			if _, err := s.orderService.Advance(ctx, order.ID, seedActor); err != nil {
				return fmt.Errorf("failed to advance sample order %s: %w", order.Code, err)
			}
		}
		s.logger.Info("created sample order", zap.String("code", order.Code), zap.Int("stage", d.advances))
	}
	return nil
}
