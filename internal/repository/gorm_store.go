package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CodeSequence holds the last code number issued per year.
type CodeSequence struct {
	Year int `gorm:"primaryKey;autoIncrement:false"`
	Last int `gorm:"not null;default:0"`
}

func (CodeSequence) TableName() string {
	return "order_code_sequences"
}

// GormStore はPostgreSQLベースのストア実装
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Orders() OrderRepository          { return &gormOrderRepository{db: s.db} }
func (s *GormStore) History() HistoryRepository       { return &gormHistoryRepository{db: s.db} }
func (s *GormStore) Users() UserRepository            { return &gormUserRepository{db: s.db} }
func (s *GormStore) Activity() ActivityLogRepository { return &gormActivityLogRepository{db: s.db} }

// Transaction runs fn inside a database transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

type gormOrderRepository struct {
	db *gorm.DB
}

func (r *gormOrderRepository) NextCode(ctx context.Context, year int) (string, error) {
	db := r.db.WithContext(ctx)
	seq := CodeSequence{Year: year}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return "", fmt.Errorf("failed to init code sequence: %w", err)
	}
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("year = ?", year).First(&seq).Error; err != nil {
		return "", fmt.Errorf("failed to lock code sequence: %w", err)
	}
	seq.Last++
	if err := db.Model(&CodeSequence{}).Where("year = ?", year).Update("last", seq.Last).Error; err != nil {
		return "", fmt.Errorf("failed to advance code sequence: %w", err)
	}
	return model.OrderCode(year, seq.Last), nil
}

func (r *gormOrderRepository) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *gormOrderRepository) Get(ctx context.Context, id string) (*model.Order, error) {
	return r.get(ctx, r.db.WithContext(ctx), id)
}

func (r *gormOrderRepository) GetForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return r.get(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *gormOrderRepository) get(ctx context.Context, q *gorm.DB, id string) (*model.Order, error) {
	var order model.Order
	if err := q.Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Pedido no encontrado")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	// 明細はロック句なしで別途取得
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Order("position ASC").Find(&order.Products).Error; err != nil {
		return nil, fmt.Errorf("failed to get order products: %w", err)
	}
	return &order, nil
}

func (r *gormOrderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	query := r.db.WithContext(ctx).Model(&model.Order{}).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })

	if filter.Stage != nil {
		query = query.Where("stage = ?", *filter.Stage)
	}
	query = applyCommonFilters(query, filter)

	var orders []model.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *gormOrderRepository) Update(ctx context.Context, order *model.Order) error {
	res := r.db.WithContext(ctx).Model(order).Select("*").Omit("Products", "CreatedAt").Updates(order)
	if res.Error != nil {
		return fmt.Errorf("failed to update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Pedido no encontrado")
	}
	return nil
}

func (r *gormOrderRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&model.Product{}).Error; err != nil {
		return fmt.Errorf("failed to delete order products: %w", err)
	}
	res := db.Where("id = ?", id).Delete(&model.Order{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Pedido no encontrado")
	}
	return nil
}

func (r *gormOrderRepository) AddProduct(ctx context.Context, product *model.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to add product: %w", err)
	}
	return nil
}

func (r *gormOrderRepository) UpdatePreparedQty(ctx context.Context, product *model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND order_id = ?", product.ID, product.OrderID).
		Update("prepared_qty", product.PreparedQty)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Producto no encontrado")
	}
	return nil
}

func (r *gormOrderRepository) DeleteProduct(ctx context.Context, orderID, productID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND order_id = ?", productID, orderID).Delete(&model.Product{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Producto no encontrado")
	}
	return nil
}

type gormHistoryRepository struct {
	db *gorm.DB
}

func (r *gormHistoryRepository) Create(ctx context.Context, record *model.HistoryRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Newf(apperror.KindAlreadyArchived, "%s ya está en el historial", record.Code)
		}
		return fmt.Errorf("failed to create history record: %w", err)
	}
	return nil
}

func (r *gormHistoryRepository) GetByOrder(ctx context.Context, orderID string) (*model.HistoryRecord, error) {
	var record model.HistoryRecord
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Registro de historial no encontrado")
		}
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return &record, nil
}

func (r *gormHistoryRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.HistoryRecord, error) {
	query := applyCommonFilters(r.db.WithContext(ctx).Model(&model.HistoryRecord{}), filter)

	var records []model.HistoryRecord
	if err := query.Order("delivered_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}

type gormUserRepository struct {
	db *gorm.DB
}

func (r *gormUserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Validation("Ya existe ese usuario")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *gormUserRepository) Get(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *gormUserRepository) first(ctx context.Context, cond string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Usuario no encontrado")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *gormUserRepository) Update(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(user).Select("*").Omit("CreatedAt").Updates(user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperror.Validation("Ya existe ese usuario")
		}
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Usuario no encontrado")
	}
	return nil
}

func (r *gormUserRepository) List(ctx context.Context, filters model.UserFilters) ([]model.User, error) {
	query := r.db.WithContext(ctx).Model(&model.User{})
	if filters.Role != "" {
		query = query.Where("role = ?", filters.Role)
	}
	if filters.Active != nil {
		query = query.Where("active = ?", *filters.Active)
	}

	var users []model.User
	if err := query.Order("name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *gormUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

type gormActivityLogRepository struct {
	db *gorm.DB
}

func (r *gormActivityLogRepository) Append(ctx context.Context, entry *model.ActivityLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

func (r *gormActivityLogRepository) List(ctx context.Context, filter LogFilter) ([]model.ActivityLogEntry, error) {
	query := r.db.WithContext(ctx).Model(&model.ActivityLogEntry{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []model.ActivityLogEntry
	if err := query.Order("timestamp DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity log: %w", err)
	}
	return entries, nil
}

// applyCommonFilters adds the priority and text search conditions shared by orders and history.
func applyCommonFilters(query *gorm.DB, filter model.OrderFilter) *gorm.DB {
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		query = query.Where("(LOWER(code) LIKE ? OR LOWER(client) LIKE ? OR LOWER(description) LIKE ?)",
			pattern, pattern, pattern)
	}
	return query
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
