package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
)

// MemoryStore はプロセス内のストア実装（開発・テスト用）
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	orders  map[string]*model.Order
	history map[string]*model.HistoryRecord // key: order id
	users   map[string]*model.User
	logs    []model.ActivityLogEntry
	seq     map[int]int
}

func newMemData() *memData {
	return &memData{
		orders:  make(map[string]*model.Order),
		history: make(map[string]*model.HistoryRecord),
		users:   make(map[string]*model.User),
		seq:     make(map[int]int),
	}
}

func (d *memData) clone() *memData {
	cp := newMemData()
	for k, v := range d.orders {
		cp.orders[k] = v.Clone()
	}
	for k, v := range d.history {
		rec := *v
		cp.history[k] = &rec
	}
	for k, v := range d.users {
		u := *v
		cp.users[k] = &u
	}
	cp.logs = append([]model.ActivityLogEntry(nil), d.logs...)
	for k, v := range d.seq {
		cp.seq[k] = v
	}
	return cp
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

func (s *MemoryStore) view() *memView { return &memView{store: s} }

func (s *MemoryStore) Orders() OrderRepository          { return s.view().Orders() }
func (s *MemoryStore) History() HistoryRepository       { return s.view().History() }
func (s *MemoryStore) Users() UserRepository            { return s.view().Users() }
func (s *MemoryStore) Activity() ActivityLogRepository { return s.view().Activity() }

// Transaction serialises fn against every other access and rolls back on error.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&memView{store: s, inTx: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// memView routes repository calls to the shared data, locking unless it runs inside a transaction.
type memView struct {
	store *MemoryStore
	inTx  bool
}

func (v *memView) with(fn func(d *memData) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.data)
}

func (v *memView) Orders() OrderRepository          { return memOrders{v} }
func (v *memView) History() HistoryRepository       { return memHistory{v} }
func (v *memView) Users() UserRepository            { return memUsers{v} }
func (v *memView) Activity() ActivityLogRepository { return memActivity{v} }

func (v *memView) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if v.inTx {
		return fn(v)
	}
	return v.store.Transaction(ctx, fn)
}

type memOrders struct{ v *memView }

func (r memOrders) NextCode(_ context.Context, year int) (string, error) {
	var code string
	err := r.v.with(func(d *memData) error {
		d.seq[year]++
		code = model.OrderCode(year, d.seq[year])
		return nil
	})
	return code, err
}

func (r memOrders) Create(_ context.Context, order *model.Order) error {
	return r.v.with(func(d *memData) error {
		if _, exists := d.orders[order.ID]; exists {
			return apperror.Validation("Pedido duplicado")
		}
		for _, o := range d.orders {
			if o.Code == order.Code {
				return apperror.Validation("Código de pedido duplicado")
			}
		}
		d.orders[order.ID] = order.Clone()
		return nil
	})
}

func (r memOrders) Get(_ context.Context, id string) (*model.Order, error) {
	var out *model.Order
	err := r.v.with(func(d *memData) error {
		o, ok := d.orders[id]
		if !ok {
			return apperror.NotFound("Pedido no encontrado")
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r memOrders) GetForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return r.Get(ctx, id)
}

func (r memOrders) List(_ context.Context, filter model.OrderFilter) ([]model.Order, error) {
	var out []model.Order
	err := r.v.with(func(d *memData) error {
		for _, o := range d.orders {
			if filter.Stage != nil && o.Stage != *filter.Stage {
				continue
			}
			if !matchesCommon(filter, o.Priority, o.Code, o.Client, o.Description) {
				continue
			}
			out = append(out, *o.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r memOrders) Update(_ context.Context, order *model.Order) error {
	return r.v.with(func(d *memData) error {
		cur, ok := d.orders[order.ID]
		if !ok {
			return apperror.NotFound("Pedido no encontrado")
		}
		next := order.Clone()
		next.Products = cur.Products
		next.CreatedAt = cur.CreatedAt
		d.orders[order.ID] = next
		return nil
	})
}

func (r memOrders) Delete(_ context.Context, id string) error {
	return r.v.with(func(d *memData) error {
		if _, ok := d.orders[id]; !ok {
			return apperror.NotFound("Pedido no encontrado")
		}
		delete(d.orders, id)
		return nil
	})
}

func (r memOrders) AddProduct(_ context.Context, product *model.Product) error {
	return r.v.with(func(d *memData) error {
		o, ok := d.orders[product.OrderID]
		if !ok {
			return apperror.NotFound("Pedido no encontrado")
		}
		o.Products = append(o.Products, *product)
		return nil
	})
}

func (r memOrders) UpdatePreparedQty(_ context.Context, product *model.Product) error {
	return r.v.with(func(d *memData) error {
		o, ok := d.orders[product.OrderID]
		if !ok {
			return apperror.NotFound("Pedido no encontrado")
		}
		for i := range o.Products {
			if o.Products[i].ID == product.ID {
				o.Products[i].PreparedQty = product.PreparedQty
				return nil
			}
		}
		return apperror.NotFound("Producto no encontrado")
	})
}

func (r memOrders) DeleteProduct(_ context.Context, orderID, productID string) error {
	return r.v.with(func(d *memData) error {
		o, ok := d.orders[orderID]
		if !ok {
			return apperror.NotFound("Pedido no encontrado")
		}
		for i := range o.Products {
			if o.Products[i].ID == productID {
				o.Products = append(o.Products[:i:i], o.Products[i+1:]...)
				return nil
			}
		}
		return apperror.NotFound("Producto no encontrado")
	})
}

type memHistory struct{ v *memView }

func (r memHistory) Create(_ context.Context, record *model.HistoryRecord) error {
	return r.v.with(func(d *memData) error {
		if _, exists := d.history[record.OrderID]; exists {
			return apperror.Newf(apperror.KindAlreadyArchived, "%s ya está en el historial", record.Code)
		}
		rec := *record
		d.history[record.OrderID] = &rec
		return nil
	})
}

func (r memHistory) GetByOrder(_ context.Context, orderID string) (*model.HistoryRecord, error) {
	var out *model.HistoryRecord
	err := r.v.with(func(d *memData) error {
		rec, ok := d.history[orderID]
		if !ok {
			return apperror.NotFound("Registro de historial no encontrado")
		}
		cp := *rec
		out = &cp
		return nil
	})
	return out, err
}

func (r memHistory) List(_ context.Context, filter model.OrderFilter) ([]model.HistoryRecord, error) {
	var out []model.HistoryRecord
	err := r.v.with(func(d *memData) error {
		for _, rec := range d.history {
			if matchesCommon(filter, rec.Priority, rec.Code, rec.Client, rec.Description) {
				out = append(out, *rec)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveredAt.After(out[j].DeliveredAt) })
	return out, err
}

type memUsers struct{ v *memView }

func (r memUsers) Create(_ context.Context, user *model.User) error {
	return r.v.with(func(d *memData) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, user.Email) {
				return apperror.Validation("Ya existe ese usuario")
			}
		}
		u := *user
		d.users[user.ID] = &u
		return nil
	})
}

func (r memUsers) Get(_ context.Context, id string) (*model.User, error) {
	var out *model.User
	err := r.v.with(func(d *memData) error {
		u, ok := d.users[id]
		if !ok {
			return apperror.NotFound("Usuario no encontrado")
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	var out *model.User
	email = strings.TrimSpace(email)
	err := r.v.with(func(d *memData) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, email) {
				cp := *u
				out = &cp
				return nil
			}
		}
		return apperror.NotFound("Usuario no encontrado")
	})
	return out, err
}

func (r memUsers) Update(_ context.Context, user *model.User) error {
	return r.v.with(func(d *memData) error {
		cur, ok := d.users[user.ID]
		if !ok {
			return apperror.NotFound("Usuario no encontrado")
		}
		for id, u := range d.users {
			if id != user.ID && strings.EqualFold(u.Email, user.Email) {
				return apperror.Validation("Ya existe ese usuario")
			}
		}
		u := *user
		u.CreatedAt = cur.CreatedAt
		d.users[user.ID] = &u
		return nil
	})
}

func (r memUsers) List(_ context.Context, filters model.UserFilters) ([]model.User, error) {
	var out []model.User
	err := r.v.with(func(d *memData) error {
		for _, u := range d.users {
			if filters.Role != "" && u.Role != filters.Role {
				continue
			}
			if filters.Active != nil && u.Active != *filters.Active {
				continue
			}
			out = append(out, *u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r memUsers) Count(_ context.Context) (int64, error) {
	var n int64
	err := r.v.with(func(d *memData) error {
		n = int64(len(d.users))
		return nil
	})
	return n, err
}

type memActivity struct{ v *memView }

func (r memActivity) Append(_ context.Context, entry *model.ActivityLogEntry) error {
	return r.v.with(func(d *memData) error {
		d.logs = append(d.logs, *entry)
		return nil
	})
}

func (r memActivity) List(_ context.Context, filter LogFilter) ([]model.ActivityLogEntry, error) {
	var out []model.ActivityLogEntry
	err := r.v.with(func(d *memData) error {
		for i := len(d.logs) - 1; i >= 0; i-- {
			if filter.Category != "" && d.logs[i].Category != filter.Category {
				continue
			}
			out = append(out, d.logs[i])
		}
		return nil
	})
	// 同時刻のエントリは追記順の逆順を保つ
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, err
}

func matchesCommon(filter model.OrderFilter, priority model.Priority, fields ...string) bool {
	if filter.Priority != "" && priority != filter.Priority {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
