package workflow

import (
	"fmt"
	"time"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor は操作を行うユーザー
type Actor struct {
	ID   string
	Name string
	Role model.Role
}

// ActorFrom builds an actor from an authenticated identity.
func ActorFrom(id model.Identity) Actor {
	name := id.Name
	if name == "" {
		name = id.Email
	}
	return Actor{ID: id.UserID, Name: name, Role: id.Role}
}

// Transition is the outcome of a state-changing operation. Order is the next
// state of the order, or nil when the order left the active collection.
type Transition struct {
	Order   *model.Order
	History *model.HistoryRecord
	Log     model.ActivityLogEntry
}

// Archived reports whether the transition moved the order into history.
func (t *Transition) Archived() bool {
	return t.History != nil
}

// Engine はステージ遷移の判定と次状態の計算を行う
type Engine struct {
	now       func() time.Time
	newID     func() string
	validator *Validator
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides id generation for records the engine creates.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithPhoneRegion sets the region used to parse local phone numbers.
func WithPhoneRegion(region string) Option {
	return func(e *Engine) { e.validator = NewValidator(region) }
}

// NewEngine は新しいワークフローエンジンを作成
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.validator == nil {
		e.validator = NewValidator(DefaultPhoneRegion)
	}
	return e
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Validator returns the input validator used by the engine.
func (e *Engine) Validator() *Validator {
	return e.validator
}

// CanAct はロールが注文の現在ステージで操作できるかを判定
func (e *Engine) CanAct(order *model.Order, role model.Role) bool {
	if order == nil {
		return false
	}
	if IsUnrestricted(role) {
		return true
	}
	meta, ok := StageInfo(order.Stage)
	return ok && meta.Owner == role
}

// CanCreate reports whether role may create orders.
func (e *Engine) CanCreate(role model.Role) bool {
	return IsUnrestricted(role) || role == stageTable[model.StagePreparation].Owner
}

// CanEdit reports whether role may edit fields or line items of order.
func (e *Engine) CanEdit(order *model.Order, role model.Role) bool {
	return order != nil && order.Stage == model.StagePreparation && e.CanAct(order, role)
}

// Advance は注文を次のステージへ進める。最終ステージではアーカイブする
func (e *Engine) Advance(order *model.Order, actor Actor) (*Transition, error) {
	if order == nil {
		return nil, apperror.NotFound("Pedido no encontrado")
	}
	if !ValidStage(order.Stage) {
		return nil, apperror.Newf(apperror.KindInvalidTransition, "estado %d fuera de rango", order.Stage)
	}
	if !e.CanAct(order, actor.Role) {
		return nil, notAuthorized(order, actor)
	}
	if order.Stage == model.StageFinal {
		return e.archive(order, actor)
	}

	next := order.Clone()
	next.Stage = order.Stage + 1
	if next.Stage > model.StageFinal {
		return nil, apperror.InvalidTransition("no existe un estado posterior")
	}
	now := e.now()
	next.UpdatedAt = now

	return &Transition{
		Order: next,
		Log:   e.stateLog(now, actor, model.ActionAdvanced, fmt.Sprintf("%s → %s", order.Code, StageLabel(next.Stage))),
	}, nil
}

// Archive finalizes an order at the last stage.
func (e *Engine) Archive(order *model.Order, actor Actor) (*Transition, error) {
	if order == nil {
		return nil, apperror.NotFound("Pedido no encontrado")
	}
	if order.Stage != model.StageFinal {
		return nil, apperror.Newf(apperror.KindInvalidTransition,
			"%s no está en %s", order.Code, stageTable[model.StageFinal].Label)
	}
	if !e.CanAct(order, actor.Role) {
		return nil, notAuthorized(order, actor)
	}
	return e.archive(order, actor)
}

func (e *Engine) archive(order *model.Order, actor Actor) (*Transition, error) {
	now := e.now()
	deliveredAt := now
	if deliveredAt.Before(order.CreatedAt) {
		deliveredAt = order.CreatedAt
	}
	record, err := model.NewHistoryRecord(e.newID(), order, deliveredAt, actor.Name, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to build history record: %w", err)
	}
	return &Transition{
		History: record,
		Log:     e.stateLog(now, actor, model.ActionArchived, fmt.Sprintf("%s → %s", order.Code, HistoryLabel)),
	}, nil
}

// AssignCarrier は運送担当者を割り当てる。ステージは変更しない
func (e *Engine) AssignCarrier(order *model.Order, carrier *model.User, actor Actor) (*Transition, error) {
	if order == nil {
		return nil, apperror.NotFound("Pedido no encontrado")
	}
	if order.Stage != model.StageRouting {
		return nil, apperror.Newf(apperror.KindInvalidTransition,
			"solo se asigna transportista en %s", stageTable[model.StageRouting].Label)
	}
	if !e.CanAct(order, actor.Role) {
		return nil, notAuthorized(order, actor)
	}
	if carrier == nil {
		return nil, apperror.NotFound("Transportista no encontrado")
	}
	if carrier.Role != model.RoleCarrier {
		return nil, apperror.Newf(apperror.KindValidation, "%s no es transportista", carrier.Name)
	}
	if !carrier.Active {
		return nil, apperror.Newf(apperror.KindValidation, "%s está desactivado", carrier.Name)
	}

	next := order.Clone()
	next.AssignedTo = carrier.ID
	next.AssignedName = carrier.Name
	now := e.now()
	next.UpdatedAt = now

	return &Transition{
		Order: next,
		Log:   e.stateLog(now, actor, model.ActionCarrierAssigned, fmt.Sprintf("%s → %s", order.Code, carrier.Name)),
	}, nil
}

// EditFields は準備中の注文のフィールドを更新する
func (e *Engine) EditFields(order *model.Order, patch model.OrderPatch, actor Actor) (*Transition, error) {
	if err := e.editable(order, actor); err != nil {
		return nil, err
	}
	patch, err := e.validator.Patch(patch)
	if err != nil {
		return nil, err
	}

	next := order.Clone()
	if patch.Client != nil {
		next.Client = *patch.Client
	}
	if patch.Address != nil {
		next.Address = *patch.Address
	}
	if patch.Phone != nil {
		next.Phone = *patch.Phone
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Priority != nil {
		next.Priority = *patch.Priority
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}
	now := e.now()
	next.UpdatedAt = now

	return &Transition{
		Order: next,
		Log:   e.stateLog(now, actor, model.ActionEdited, order.Code),
	}, nil
}

// Delete は準備中の注文を削除できるか判定し、ログを返す
func (e *Engine) Delete(order *model.Order, actor Actor) (*model.ActivityLogEntry, error) {
	if err := e.editable(order, actor); err != nil {
		return nil, err
	}
	entry := e.stateLog(e.now(), actor, model.ActionDeleted, order.Code)
	return &entry, nil
}

// UpdateChecklist は積込確認項目を保存する。遷移には影響しない
func (e *Engine) UpdateChecklist(order *model.Order, checklist model.Checklist, actor Actor) (*Transition, error) {
	if order == nil {
		return nil, apperror.NotFound("Pedido no encontrado")
	}
	if order.Stage != model.StageTransport {
		return nil, apperror.Newf(apperror.KindInvalidTransition,
			"el checklist solo aplica en %s", stageTable[model.StageTransport].Label)
	}
	if !e.CanAct(order, actor.Role) {
		return nil, notAuthorized(order, actor)
	}

	next := order.Clone()
	next.GoodsOK = boolPtr(checklist.GoodsOK)
	next.ConditionOK = boolPtr(checklist.ConditionOK)
	next.DocsOK = boolPtr(checklist.DocsOK)
	now := e.now()
	next.UpdatedAt = now

	return &Transition{
		Order: next,
		Log:   e.stateLog(now, actor, model.ActionChecklistUpdated, order.Code),
	}, nil
}

// NewOrder は入力を検証し、ステージ0の注文を生成する
func (e *Engine) NewOrder(draft model.OrderDraft, code string, actor Actor) (*Transition, error) {
	if !e.CanCreate(actor.Role) {
		return nil, apperror.NotAuthorized("No tienes permiso para crear pedidos")
	}
	draft, err := e.validator.Draft(draft)
	if err != nil {
		return nil, err
	}

	now := e.now()
	order := &model.Order{
		ID:          e.newID(),
		Code:        code,
		Client:      draft.Client,
		Address:     draft.Address,
		Phone:       draft.Phone,
		Description: draft.Description,
		Priority:    draft.Priority,
		Notes:       draft.Notes,
		Stage:       model.StagePreparation,
		CreatedBy:   actor.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, item := range draft.Products {
		order.Products = append(order.Products, e.newProduct(order.ID, item, i))
	}

	return &Transition{
		Order: order,
		Log:   e.stateLog(now, actor, model.ActionCreated, fmt.Sprintf("%s - %s", code, draft.Client)),
	}, nil
}

// AddItem は準備中の注文に明細を追加する
func (e *Engine) AddItem(order *model.Order, item model.ProductDraft, actor Actor) (*model.Product, *model.ActivityLogEntry, error) {
	if err := e.editable(order, actor); err != nil {
		return nil, nil, err
	}
	item, err := e.validator.Item(item)
	if err != nil {
		return nil, nil, err
	}
	product := e.newProduct(order.ID, item, nextPosition(order))
	entry := e.stateLog(e.now(), actor, model.ActionItemsChanged, fmt.Sprintf("%s + %s", order.Code, product.Name))
	return &product, &entry, nil
}

// SetPreparedQty は準備数量を更新した明細を返す
func (e *Engine) SetPreparedQty(order *model.Order, productID string, qty decimal.NullDecimal, actor Actor) (*model.Product, error) {
	if err := e.editable(order, actor); err != nil {
		return nil, err
	}
	product := findProduct(order, productID)
	if product == nil {
		return nil, apperror.NotFound("Producto no encontrado")
	}
	if qty.Valid && qty.Decimal.IsNegative() {
		return nil, apperror.Validation("La cantidad preparada no puede ser negativa").
			WithDetails(apperror.Detail{Path: "cantidad_preparada", Info: "cantidad_preparada must not be negative"})
	}
	updated := *product
	updated.PreparedQty = qty
	return &updated, nil
}

// RemoveItem は明細を削除できるか判定する
func (e *Engine) RemoveItem(order *model.Order, productID string, actor Actor) (*model.ActivityLogEntry, error) {
	if err := e.editable(order, actor); err != nil {
		return nil, err
	}
	product := findProduct(order, productID)
	if product == nil {
		return nil, apperror.NotFound("Producto no encontrado")
	}
	if len(order.Products) <= 1 {
		return nil, apperror.Validation("El pedido debe tener al menos un producto")
	}
	entry := e.stateLog(e.now(), actor, model.ActionItemsChanged, fmt.Sprintf("%s - %s", order.Code, product.Name))
	return &entry, nil
}

// OrderLog builds an order log entry stamped with the engine clock.
func (e *Engine) OrderLog(actor Actor, action, detail string) model.ActivityLogEntry {
	return e.stateLog(e.now(), actor, action, detail)
}

// UserLog builds an account or session log entry.
func (e *Engine) UserLog(actor Actor, action, detail string) model.ActivityLogEntry {
	return model.ActivityLogEntry{
		ID:        e.newID(),
		Timestamp: e.now(),
		User:      actor.Name,
		UserID:    actor.ID,
		Action:    action,
		Detail:    detail,
		Category:  model.LogCategoryUser,
	}
}

func (e *Engine) editable(order *model.Order, actor Actor) error {
	if order == nil {
		return apperror.NotFound("Pedido no encontrado")
	}
	if order.Stage != model.StagePreparation {
		return apperror.Newf(apperror.KindNotEditable,
			"%s ya no se puede modificar (%s)", order.Code, StageLabel(order.Stage))
	}
	if !e.CanAct(order, actor.Role) {
		return notAuthorized(order, actor)
	}
	return nil
}

func (e *Engine) newProduct(orderID string, item model.ProductDraft, position int) model.Product {
	return model.Product{
		ID:           e.newID(),
		OrderID:      orderID,
		Name:         item.Name,
		RequestedQty: item.RequestedQty,
		Unit:         item.Unit,
		Position:     position,
	}
}

func nextPosition(order *model.Order) int {
	next := 0
	for _, p := range order.Products {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}

func (e *Engine) stateLog(now time.Time, actor Actor, action, detail string) model.ActivityLogEntry {
	return model.ActivityLogEntry{
		ID:        e.newID(),
		Timestamp: now,
		User:      actor.Name,
		UserID:    actor.ID,
		Action:    action,
		Detail:    detail,
		Category:  model.LogCategoryState,
	}
}

func notAuthorized(order *model.Order, actor Actor) error {
	return apperror.Newf(apperror.KindNotAuthorized,
		"%s no puede actuar sobre %s en %s", actor.Role, order.Code, StageLabel(order.Stage))
}

func findProduct(order *model.Order, productID string) *model.Product {
	for i := range order.Products {
		if order.Products[i].ID == productID {
			return &order.Products[i]
		}
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}
