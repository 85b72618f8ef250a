package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"order-workflow/internal/apperror"
	"order-workflow/internal/authz"
	"order-workflow/internal/client"
	"order-workflow/internal/model"
	"order-workflow/internal/session"
	"order-workflow/internal/workflow"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrBusy is returned when the same action is already in flight.
var ErrBusy = errors.New("acción en curso")

// Controller は画面操作をワークフローのガード、APIクライアント、再取得の順に処理する
type Controller struct {
	sessions   *session.Manager
	api        *client.Client
	engine     *workflow.Engine
	authorizer *authz.Authorizer
	logger     *zap.Logger
	notifyTTL  time.Duration

	mu    sync.Mutex
	state *State

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotificationTTL overrides how long notifications stay visible.
func WithNotificationTTL(d time.Duration) Option {
	return func(c *Controller) { c.notifyTTL = d }
}

// NewController は新しいコントローラーを作成
func NewController(sessions *session.Manager, engine *workflow.Engine, authorizer *authz.Authorizer, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		sessions:   sessions,
		api:        sessions.Client(),
		engine:     engine,
		authorizer: authorizer,
		logger:     logger,
		notifyTTL:  DefaultNotificationTTL,
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current application state, or nil when logged out.
func (c *Controller) State() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Login はログインして状態を作成し、初回の取得を行う
func (c *Controller) Login(ctx context.Context, email, password string) (*State, error) {
	s, err := c.sessions.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.start(ctx, s)
}

// LoginWithToken はMicrosoftログインで受け取ったトークンで開始する
func (c *Controller) LoginWithToken(ctx context.Context, token string) (*State, error) {
	s, err := c.sessions.LoginWithToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return c.start(ctx, s)
}

// Restore は保存済みのトークンが有効な場合のみ状態を復元する
func (c *Controller) Restore(ctx context.Context) (*State, error) {
	s, err := c.sessions.Restore(ctx)
	if err != nil {
		return nil, err
	}
	return c.start(ctx, s)
}

// LoginURL is where the browser starts the Microsoft sign-in.
func (c *Controller) LoginURL() string {
	return c.api.LoginURL()
}

// Logout はセッションを終了し、状態を破棄する
func (c *Controller) Logout(ctx context.Context) error {
	c.teardown()
	return c.sessions.Logout(ctx)
}

func (c *Controller) start(ctx context.Context, s *session.Session) (*State, error) {
	state := NewState(s)
	state.notifyTTL = c.notifyTTL

	c.mu.Lock()
	if c.state != nil {
		c.state.Close()
	}
	c.state = state
	c.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

func (c *Controller) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		c.state.Close()
		c.state = nil
	}
}

func (c *Controller) active() (*State, error) {
	state := c.State()
	if state == nil || state.Closed() {
		return nil, session.ErrNoSession
	}
	return state, nil
}

// Navigate は許可された画面に遷移する。権限のない画面は注文一覧に置き換える
func (c *Controller) Navigate(view authz.View) (authz.View, error) {
	state, err := c.active()
	if err != nil {
		return "", err
	}
	resolved := c.authorizer.Resolve(state.Identity().Role, view)
	state.update(func(s *State) { s.view = resolved })
	return resolved, nil
}

// VisibleViews returns the navigation entries of the current role.
func (c *Controller) VisibleViews() []authz.View {
	state, err := c.active()
	if err != nil {
		return nil
	}
	return c.authorizer.VisibleViews(state.Identity().Role)
}

// SetFilter は一覧の絞り込み条件を設定する。管理者以外のステージ指定は無視される
func (c *Controller) SetFilter(f Filter) error {
	state, err := c.active()
	if err != nil {
		return err
	}
	if f.Stage != nil && !workflow.ValidStage(*f.Stage) {
		return apperror.Newf(apperror.KindValidation, "estado %d no existe", *f.Stage)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return apperror.Newf(apperror.KindValidation, "prioridad %q no existe", f.Priority)
	}
	if !workflow.IsUnrestricted(state.Identity().Role) {
		f.Stage = nil
	}
	state.update(func(s *State) { s.filter = f })
	return nil
}

// Refresh は注文・履歴を再取得し、管理者向けの一覧は可能な範囲で取得する
func (c *Controller) Refresh(ctx context.Context) error {
	state, err := c.active()
	if err != nil {
		return err
	}
	if err := c.refreshOrders(ctx, state, true); err != nil {
		c.fail(state, err)
		return err
	}
	c.refreshAdmin(ctx, state)
	return nil
}

func (c *Controller) refreshOrders(ctx context.Context, state *State, withHistory bool) error {
	orders, err := c.api.ListOrders(ctx, client.ListFilter{})
	if err != nil {
		return err
	}
	var history []model.HistoryRecord
	if withHistory {
		if history, err = c.api.ListHistory(ctx, client.ListFilter{}); err != nil {
			return err
		}
	}
	state.update(func(s *State) {
		s.orders = orders
		if withHistory {
			s.history = history
		}
	})
	return nil
}

// refreshAdmin fetches users, carriers and the log for roles allowed to read them; failures leave them empty.
func (c *Controller) refreshAdmin(ctx context.Context, state *State) {
	role := state.Identity().Role
	var (
		users    []model.User
		carriers []model.User
		entries  []model.ActivityLogEntry
		err      error
	)
	if c.allowed(role, authz.ResourceUsers, authz.ActionRead) {
		if users, err = c.api.ListUsers(ctx); err != nil {
			c.logger.Warn("failed to fetch users", zap.Error(err))
			users = nil
		}
	}
	if c.allowed(role, authz.ResourceCarriers, authz.ActionRead) {
		if carriers, err = c.api.ListCarriers(ctx); err != nil {
			c.logger.Warn("failed to fetch carriers", zap.Error(err))
			carriers = nil
		}
	}
	if c.allowed(role, authz.ResourceActivity, authz.ActionRead) {
		if entries, err = c.api.ListLog(ctx, ""); err != nil {
			c.logger.Warn("failed to fetch activity log", zap.Error(err))
			entries = nil
		}
	}
	state.update(func(s *State) {
		s.users = users
		s.carriers = carriers
		s.log = entries
	})
}

func (c *Controller) allowed(role model.Role, resource, action string) bool {
	ok, err := c.authorizer.Can(role, resource, action)
	return err == nil && ok
}

// dispatch runs a guarded action: local guard, server call, refetch, notification.
func (c *Controller) dispatch(ctx context.Context, key string, guard func(state *State, actor workflow.Actor) error, call func() (archived bool, err error), success string) error {
	state, err := c.active()
	if err != nil {
		return err
	}
	actor := workflow.ActorFrom(state.Identity())

	if guard != nil {
		if err := guard(state, actor); err != nil {
			state.notify(NotifyError, err.Error(), c.engine.Now())
			return err
		}
	}

	if !c.acquire(key) {
		return ErrBusy
	}
	defer c.release(key)

	archived, err := call()
	if err != nil {
		c.fail(state, err)
		return err
	}

	if err := c.refreshOrders(ctx, state, archived); err != nil {
		c.logger.Warn("refetch after action failed", zap.String("action", key), zap.Error(err))
		c.fail(state, err)
	}
	if workflow.IsUnrestricted(actor.Role) {
		c.refreshAdmin(ctx, state)
	}
	state.notify(NotifySuccess, success, c.engine.Now())
	return nil
}

// fail notifies err. An expired session tears the state down and forgets the token.
func (c *Controller) fail(state *State, err error) {
	if apperror.IsKind(err, apperror.KindSessionExpired) {
		c.teardown()
		c.sessions.Clear()
		return
	}
	state.notify(NotifyError, err.Error(), c.engine.Now())
}

func (c *Controller) acquire(key string) bool {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Controller) release(key string) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	delete(c.inflight, key)
}

// withOrder guards an action on an active order with fn.
func withOrder(id string, fn func(order *model.Order, actor workflow.Actor) error) func(*State, workflow.Actor) error {
	return func(state *State, actor workflow.Actor) error {
		order, ok := state.order(id)
		if !ok {
			return apperror.NotFound("Pedido no encontrado")
		}
		return fn(order, actor)
	}
}

// CreateOrder は注文を作成する
func (c *Controller) CreateOrder(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	var created *model.Order
	err := c.dispatch(ctx, "create",
		func(_ *State, actor workflow.Actor) error {
			if !c.engine.CanCreate(actor.Role) {
				return apperror.NotAuthorized("No tienes permiso para crear pedidos")
			}
			_, err := c.engine.Validator().Draft(draft)
			return err
		},
		func() (bool, error) {
			order, err := c.api.CreateOrder(ctx, draft)
			created = order
			return false, err
		},
		"Pedido creado")
	return created, err
}

// UpdateOrder は準備中の注文を編集する
func (c *Controller) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) error {
	return c.dispatch(ctx, "update:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, err := c.engine.EditFields(order, patch, actor)
			return err
		}),
		func() (bool, error) {
			_, err := c.api.UpdateOrder(ctx, id, patch)
			return false, err
		},
		"Pedido actualizado")
}

// Advance は注文を次のステージへ進める（最終ステージではアーカイブ）
func (c *Controller) Advance(ctx context.Context, id string) error {
	label := workflow.HistoryLabel
	if state := c.State(); state != nil {
		if order, ok := state.order(id); ok && order.Stage < model.StageFinal {
			label = workflow.StageLabel(order.Stage + 1)
		}
	}
	return c.dispatch(ctx, "advance:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, err := c.engine.Advance(order, actor)
			return err
		}),
		func() (bool, error) {
			res, err := c.api.AdvanceOrder(ctx, id)
			if err != nil {
				return false, err
			}
			return res.Archived(), nil
		},
		fmt.Sprintf("Pedido movido a %s", label))
}

// AssignCarrier は運送担当者を割り当てる
func (c *Controller) AssignCarrier(ctx context.Context, id, carrierID string) error {
	return c.dispatch(ctx, "assign:"+id,
		func(state *State, actor workflow.Actor) error {
			order, ok := state.order(id)
			if !ok {
				return apperror.NotFound("Pedido no encontrado")
			}
			_, err := c.engine.AssignCarrier(order, state.carrier(carrierID), actor)
			return err
		},
		func() (bool, error) {
			_, err := c.api.AssignCarrier(ctx, id, carrierID)
			return false, err
		},
		"Transportista asignado")
}

// UpdateChecklist は積込チェックリストを保存する
func (c *Controller) UpdateChecklist(ctx context.Context, id string, checklist model.Checklist) error {
	return c.dispatch(ctx, "checklist:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, err := c.engine.UpdateChecklist(order, checklist, actor)
			return err
		}),
		func() (bool, error) {
			_, err := c.api.UpdateChecklist(ctx, id, checklist)
			return false, err
		},
		"Checklist guardado")
}

// Finalize は最終ステージの注文を履歴へ移す
func (c *Controller) Finalize(ctx context.Context, id string) error {
	return c.dispatch(ctx, "advance:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, err := c.engine.Archive(order, actor)
			return err
		}),
		func() (bool, error) {
			_, err := c.api.FinalizeOrder(ctx, id)
			return err == nil, err
		},
		"Pedido archivado en el historial")
}

// Delete は準備中の注文を削除する
func (c *Controller) Delete(ctx context.Context, id string) error {
	return c.dispatch(ctx, "delete:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, err := c.engine.Delete(order, actor)
			return err
		}),
		func() (bool, error) {
			return false, c.api.DeleteOrder(ctx, id)
		},
		"Pedido eliminado")
}

// AddItem は明細を追加する
func (c *Controller) AddItem(ctx context.Context, id string, item model.ProductDraft) error {
	return c.dispatch(ctx, "items:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, _, err := c.engine.AddItem(order, item, actor)
			return err
		}),
		func() (bool, error) {
			_, err := c.api.AddItem(ctx, id, item)
			return false, err
		},
		"Producto añadido")
}

// SetPreparedQty は準備数量を更新する
func (c *Controller) SetPreparedQty(ctx context.Context, id, itemID string, qty decimal.NullDecimal) error {
	return c.dispatch(ctx, "items:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, err := c.engine.SetPreparedQty(order, itemID, qty, actor)
			return err
		}),
		func() (bool, error) {
			_, err := c.api.UpdateItemPreparedQty(ctx, id, itemID, qty)
			return false, err
		},
		"Cantidad actualizada")
}

// DeleteItem は明細を削除する
func (c *Controller) DeleteItem(ctx context.Context, id, itemID string) error {
	return c.dispatch(ctx, "items:"+id,
		withOrder(id, func(order *model.Order, actor workflow.Actor) error {
			_, err := c.engine.RemoveItem(order, itemID, actor)
			return err
		}),
		func() (bool, error) {
			return false, c.api.DeleteItem(ctx, id, itemID)
		},
		"Producto eliminado")
}

// UploadDocument はPDFを添付する
func (c *Controller) UploadDocument(ctx context.Context, id, filename string, r io.Reader) error {
	return c.dispatch(ctx, "document:"+id,
		withOrder(id, func(_ *model.Order, actor workflow.Actor) error {
			if !c.allowed(actor.Role, authz.ResourceDocuments, authz.ActionWrite) {
				return apperror.NotAuthorized("No tienes permiso para adjuntar documentos")
			}
			return nil
		}),
		func() (bool, error) {
			_, err := c.api.UploadDocument(ctx, id, filename, r)
			return false, err
		},
		"PDF adjuntado")
}

// Export は注文シートをダウンロードする。状態は変更しない
func (c *Controller) Export(ctx context.Context, id, format string) (string, []byte, error) {
	state, err := c.active()
	if err != nil {
		return "", nil, err
	}
	if !c.allowed(state.Identity().Role, authz.ResourceOrders, authz.ActionExport) {
		err := apperror.NotAuthorized("No tienes permiso para exportar")
		state.notify(NotifyError, err.Error(), c.engine.Now())
		return "", nil, err
	}
	name, data, err := c.api.ExportOrder(ctx, id, format)
	if err != nil {
		c.fail(state, err)
		return "", nil, err
	}
	return name, data, nil
}

// Users は管理者向けのユーザー一覧を返す
func (c *Controller) Users() []model.User {
	state, err := c.active()
	if err != nil {
		return nil
	}
	return state.Users()
}

func (c *Controller) requireUserAdmin(_ *State, actor workflow.Actor) error {
	if !c.allowed(actor.Role, authz.ResourceUsers, authz.ActionWrite) {
		return apperror.NotAuthorized("Solo el administrador gestiona usuarios")
	}
	return nil
}

// CreateUser はユーザーを作成する
func (c *Controller) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	var created *model.User
	err := c.dispatch(ctx, "user:create", c.requireUserAdmin,
		func() (bool, error) {
			u, err := c.api.CreateUser(ctx, req)
			created = u
			return false, err
		},
		"Usuario creado")
	return created, err
}

// SetUserActive はユーザーを有効化・無効化する
func (c *Controller) SetUserActive(ctx context.Context, id string, active bool) error {
	message := "Usuario desactivado"
	if active {
		message = "Usuario activado"
	}
	return c.dispatch(ctx, "user:"+id, c.requireUserAdmin,
		func() (bool, error) {
			_, err := c.api.UpdateUser(ctx, id, model.UpdateUserRequest{Active: &active})
			return false, err
		},
		message)
}
