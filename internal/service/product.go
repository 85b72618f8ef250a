package service

import (
	"context"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/workflow"

	"github.com/shopspring/decimal"
)

// ProductService は注文明細のサービスインターフェース
type ProductService interface {
	ListProducts(ctx context.Context, orderID string) ([]model.Product, error)
	AddProduct(ctx context.Context, orderID string, draft model.ProductDraft, actor workflow.Actor) (*model.Product, error)
	SetPreparedQty(ctx context.Context, orderID, productID string, qty decimal.NullDecimal, actor workflow.Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, orderID, productID string, actor workflow.Actor) error
}

// productServiceImpl は明細サービスの実装
type productServiceImpl struct {
	store  repository.Store
	engine *workflow.Engine
}

// NewProductService は新しい明細サービスを作成
func NewProductService(store repository.Store, engine *workflow.Engine) ProductService {
	return &productServiceImpl{store: store, engine: engine}
}

// ListProducts は注文の明細を返す。完了済みの注文は履歴のスナップショットから返す
func (s *productServiceImpl) ListProducts(ctx context.Context, orderID string) ([]model.Product, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err == nil {
		if order.Products == nil {
			return []model.Product{}, nil
		}
		return order.Products, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}

	record, herr := s.store.History().GetByOrder(ctx, orderID)
	if herr != nil {
		return nil, err
	}
	items, err := record.Items()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Product{}
	}
	return items, nil
}

// AddProduct は準備中の注文に明細を追加
func (s *productServiceImpl) AddProduct(ctx context.Context, orderID string, draft model.ProductDraft, actor workflow.Actor) (*model.Product, error) {
	var added *model.Product
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		product, entry, err := s.engine.AddItem(order, draft, actor)
		if err != nil {
			return err
		}
		if err := tx.Orders().AddProduct(ctx, product); err != nil {
			return err
		}
		if err := tx.Activity().Append(ctx, entry); err != nil {
			return err
		}
		added = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// SetPreparedQty は準備数量を更新（nullで未設定に戻す）
func (s *productServiceImpl) SetPreparedQty(ctx context.Context, orderID, productID string, qty decimal.NullDecimal, actor workflow.Actor) (*model.Product, error) {
	var updated *model.Product
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		product, err := s.engine.SetPreparedQty(order, productID, qty, actor)
		if err != nil {
			return err
		}
		if err := tx.Orders().UpdatePreparedQty(ctx, product); err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProduct は明細を削除
func (s *productServiceImpl) DeleteProduct(ctx context.Context, orderID, productID string, actor workflow.Actor) error {
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		entry, err := s.engine.RemoveItem(order, productID, actor)
		if err != nil {
			return err
		}
		if err := tx.Orders().DeleteProduct(ctx, orderID, productID); err != nil {
			return err
		}
		return tx.Activity().Append(ctx, entry)
	})
}
