package repository

import (
	"context"

	"order-workflow/internal/model"
)

// Store はリポジトリ群とトランザクション境界を提供する
type Store interface {
	Orders() OrderRepository
	History() HistoryRepository
	Users() UserRepository
	Activity() ActivityLogRepository

	// Transaction runs fn atomically. Repositories obtained from tx take part in it.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// OrderRepository はアクティブな注文の永続化インターフェース
type OrderRepository interface {
	// NextCode allocates the next sequential code for year. Call it inside a transaction.
	NextCode(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, order *model.Order) error
	Get(ctx context.Context, id string) (*model.Order, error)
	// GetForUpdate loads the order and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	Update(ctx context.Context, order *model.Order) error
	Delete(ctx context.Context, id string) error

	AddProduct(ctx context.Context, product *model.Product) error
	UpdatePreparedQty(ctx context.Context, product *model.Product) error
	DeleteProduct(ctx context.Context, orderID, productID string) error
}

// HistoryRepository は完了した注文の永続化インターフェース
type HistoryRepository interface {
	// Create fails with AlreadyArchived when the order already has a record.
	Create(ctx context.Context, record *model.HistoryRecord) error
	GetByOrder(ctx context.Context, orderID string) (*model.HistoryRecord, error)
	List(ctx context.Context, filter model.OrderFilter) ([]model.HistoryRecord, error)
}

// UserRepository はユーザーの永続化インターフェース
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context, filters model.UserFilters) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
}

// LogFilter は操作ログの絞り込み条件
type LogFilter struct {
	Category model.LogCategory
	Limit    int
}

// ActivityLogRepository は追記専用の操作ログ
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *model.ActivityLogEntry) error
	List(ctx context.Context, filter LogFilter) ([]model.ActivityLogEntry, error)
}
