package service

import (
	"context"
	"fmt"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/workflow"

	"go.uber.org/zap"
)

// OrderService は注文ワークフローのサービスインターフェース
type OrderService interface {
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	Create(ctx context.Context, draft model.OrderDraft, actor workflow.Actor) (*model.Order, error)
	Update(ctx context.Context, id string, patch model.OrderPatch, actor workflow.Actor) (*model.Order, error)
	Advance(ctx context.Context, id string, actor workflow.Actor) (*AdvanceResult, error)
	AssignCarrier(ctx context.Context, id, carrierID string, actor workflow.Actor) (*model.Order, error)
	UpdateChecklist(ctx context.Context, id string, checklist model.Checklist, actor workflow.Actor) (*model.Order, error)
	Finalize(ctx context.Context, id string, actor workflow.Actor) (*model.HistoryRecord, error)
	Delete(ctx context.Context, id string, actor workflow.Actor) error
	History(ctx context.Context, filter model.OrderFilter) ([]model.HistoryRecord, error)
	ListCarriers(ctx context.Context) ([]model.User, error)
}

// AdvanceResult は遷移後の注文、またはアーカイブされた履歴
type AdvanceResult struct {
	Order   *model.Order         `json:"pedido,omitempty"`
	History *model.HistoryRecord `json:"historial,omitempty"`
}

// Archived reports whether the advance moved the order into history.
func (r *AdvanceResult) Archived() bool {
	return r != nil && r.History != nil
}

type orderServiceImpl struct {
	store     repository.Store
	engine    *workflow.Engine
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderService は新しい注文サービスを作成
func NewOrderService(store repository.Store, engine *workflow.Engine, publisher EventPublisher, logger *zap.Logger) OrderService {
	return &orderServiceImpl{
		store:     store,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

// List はアクティブな注文（completed指定時は履歴）を返す
func (s *orderServiceImpl) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Stage != nil && !workflow.ValidStage(*filter.Stage) {
		return nil, apperror.Newf(apperror.KindValidation, "estado %d no existe", *filter.Stage)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, apperror.Newf(apperror.KindValidation, "prioridad %q no existe", filter.Priority)
	}

	if filter.Completed {
		records, err := s.store.History().List(ctx, filter)
		if err != nil {
			return nil, err
		}
		orders := make([]model.Order, 0, len(records))
		for i := range records {
			o, err := records[i].AsOrder()
			if err != nil {
				return nil, err
			}
			orders = append(orders, *o)
		}
		return orders, nil
	}

	orders, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// Get はIDで注文を取得
func (s *orderServiceImpl) Get(ctx context.Context, id string) (*model.Order, error) {
	return s.store.Orders().Get(ctx, id)
}

// Create は注文コードを採番して注文を作成
func (s *orderServiceImpl) Create(ctx context.Context, draft model.OrderDraft, actor workflow.Actor) (*model.Order, error) {
	if !s.engine.CanCreate(actor.Role) {
		return nil, apperror.NotAuthorized("No tienes permiso para crear pedidos")
	}

	var created *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		code, err := tx.Orders().NextCode(ctx, s.engine.Now().Year())
		if err != nil {
			return err
		}
		t, err := s.engine.NewOrder(draft, code, actor)
		if err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, t.Order); err != nil {
			return err
		}
		if err := tx.Activity().Append(ctx, &t.Log); err != nil {
			return err
		}
		created = t.Order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventOrderCreated, created, actor)
	return created, nil
}

// Update は準備中の注文を部分更新
func (s *orderServiceImpl) Update(ctx context.Context, id string, patch model.OrderPatch, actor workflow.Actor) (*model.Order, error) {
	order, err := s.mutate(ctx, id, func(order *model.Order) (*workflow.Transition, error) {
		return s.engine.EditFields(order, patch, actor)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderEdited, order, actor)
	return order, nil
}

// Advance は注文を次のステージへ進める。最終ステージではアーカイブされる
func (s *orderServiceImpl) Advance(ctx context.Context, id string, actor workflow.Actor) (*AdvanceResult, error) {
	var result AdvanceResult
	var before *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := s.lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		t, err := s.engine.Advance(order, actor)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, order, t); err != nil {
			return err
		}
		before = order
		result = AdvanceResult{Order: t.Order, History: t.History}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Archived() {
		s.publish(ctx, EventOrderArchived, before, actor)
	} else {
		s.publish(ctx, EventOrderAdvanced, result.Order, actor)
	}
	return &result, nil
}

// AssignCarrier は運送担当者を割り当てる
func (s *orderServiceImpl) AssignCarrier(ctx context.Context, id, carrierID string, actor workflow.Actor) (*model.Order, error) {
	var updated *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := s.lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		carrier, err := tx.Users().Get(ctx, carrierID)
		if err != nil && !apperror.IsKind(err, apperror.KindNotFound) {
			return err
		}
		t, err := s.engine.AssignCarrier(order, carrier, actor)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, order, t); err != nil {
			return err
		}
		updated = t.Order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderAssigned, updated, actor)
	return updated, nil
}

// UpdateChecklist は積込確認項目を保存
func (s *orderServiceImpl) UpdateChecklist(ctx context.Context, id string, checklist model.Checklist, actor workflow.Actor) (*model.Order, error) {
	order, err := s.mutate(ctx, id, func(order *model.Order) (*workflow.Transition, error) {
		return s.engine.UpdateChecklist(order, checklist, actor)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderChecklist, order, actor)
	return order, nil
}

// Finalize は最終ステージの注文を履歴へ移す
func (s *orderServiceImpl) Finalize(ctx context.Context, id string, actor workflow.Actor) (*model.HistoryRecord, error) {
	var record *model.HistoryRecord
	var before *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := s.lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		t, err := s.engine.Archive(order, actor)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, order, t); err != nil {
			return err
		}
		before = order
		record = t.History
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderArchived, before, actor)
	return record, nil
}

// Delete は準備中の注文を削除
func (s *orderServiceImpl) Delete(ctx context.Context, id string, actor workflow.Actor) error {
	var deleted *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := s.lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		entry, err := s.engine.Delete(order, actor)
		if err != nil {
			return err
		}
		if err := tx.Orders().Delete(ctx, order.ID); err != nil {
			return err
		}
		if err := tx.Activity().Append(ctx, entry); err != nil {
			return err
		}
		deleted = order
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, EventOrderDeleted, deleted, actor)
	return nil
}

// History は完了した注文を新しい順に返す
func (s *orderServiceImpl) History(ctx context.Context, filter model.OrderFilter) ([]model.HistoryRecord, error) {
	records, err := s.store.History().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	return records, nil
}

// ListCarriers は割当可能な運送担当者を返す
func (s *orderServiceImpl) ListCarriers(ctx context.Context) ([]model.User, error) {
	active := true
	users, err := s.store.Users().List(ctx, model.UserFilters{Role: model.RoleCarrier, Active: &active})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// mutate runs a transition that keeps the order active.
func (s *orderServiceImpl) mutate(ctx context.Context, id string, fn func(order *model.Order) (*workflow.Transition, error)) (*model.Order, error) {
	var updated *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := s.lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		t, err := fn(order)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, order, t); err != nil {
			return err
		}
		updated = t.Order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// lockActive loads the order for update. A missing order that already sits in
// history reports AlreadyArchived instead of NotFound.
func (s *orderServiceImpl) lockActive(ctx context.Context, tx repository.Store, id string) (*model.Order, error) {
	order, err := tx.Orders().GetForUpdate(ctx, id)
	if err == nil {
		return order, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}
	record, herr := tx.History().GetByOrder(ctx, id)
	if herr != nil {
		return nil, err
	}
	return nil, apperror.Newf(apperror.KindAlreadyArchived, "%s ya está en el historial", record.Code)
}

// apply persists a transition and its log entry inside tx.
func (s *orderServiceImpl) apply(ctx context.Context, tx repository.Store, order *model.Order, t *workflow.Transition) error {
	if t.Archived() {
		if err := tx.History().Create(ctx, t.History); err != nil {
			return err
		}
		if err := tx.Orders().Delete(ctx, order.ID); err != nil {
			return err
		}
	} else if err := tx.Orders().Update(ctx, t.Order); err != nil {
		return err
	}
	if err := tx.Activity().Append(ctx, &t.Log); err != nil {
		return fmt.Errorf("failed to append log for %s: %w", order.Code, err)
	}
	return nil
}

// publish notifies subscribers after commit. Delivery failures are logged only.
func (s *orderServiceImpl) publish(ctx context.Context, eventType string, order *model.Order, actor workflow.Actor) {
	if s.publisher == nil || order == nil {
		return
	}
	event := model.OrderEvent{
		Type:    eventType,
		OrderID: order.ID,
		Code:    order.Code,
		Stage:   order.Stage,
		Actor:   actor.Name,
		ActorID: actor.ID,
		At:      s.engine.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("type", eventType),
			zap.String("code", order.Code),
			zap.Error(err),
		)
	}
}
