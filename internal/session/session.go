package session

import (
	"context"
	"strings"
	"sync"

	"order-workflow/internal/apperror"
	"order-workflow/internal/client"
	"order-workflow/internal/model"

	"go.uber.org/zap"
)

// ErrNoSession is returned when no session is active or persisted.
var ErrNoSession = apperror.SessionExpired("No hay sesión activa")

// Session は認証済みのユーザーとトークン
type Session struct {
	Identity model.Identity
	Token    string
}

// Manager はクライアント側のセッションを管理する
type Manager struct {
	api    *client.Client
	logger *zap.Logger

	mu      sync.RWMutex
	current *Session
}

// NewManager は新しいセッションマネージャーを作成
func NewManager(api *client.Client, logger *zap.Logger) *Manager {
	return &Manager{api: api, logger: logger}
}

// Client returns the repository client bound to this session's token store.
func (m *Manager) Client() *client.Client {
	return m.api
}

// Login はメールアドレスとパスワードでログインする
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperror.Validation("Introduce email y contraseña")
	}
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.set(resp.User, resp.Token), nil
}

// LoginWithToken はMicrosoftログインのリダイレクトで受け取ったトークンを検証して保存する
func (m *Manager) LoginWithToken(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoSession
	}
	if err := m.api.Tokens().Save(token); err != nil {
		return nil, err
	}
	return m.verify(ctx, token)
}

// Restore は保存済みのトークンを検証してからセッションを復元する
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	token, err := m.api.Tokens().Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoSession
	}
	return m.verify(ctx, token)
}

// Logout はサーバー側で失効させ（失敗しても続行）、トークンを消去する
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		m.logger.Warn("server logout failed", zap.Error(err))
	}
	m.Clear()
	return nil
}

// Clear drops the in-memory session and the persisted token without calling the server.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	if err := m.api.Tokens().Clear(); err != nil {
		m.logger.Warn("failed to clear token", zap.Error(err))
	}
}

// Current returns the active session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, false
	}
	cp := *m.current
	return &cp, true
}

func (m *Manager) verify(ctx context.Context, token string) (*Session, error) {
	identity, err := m.api.VerifyToken(ctx, token)
	if err != nil {
		if apperror.IsKind(err, apperror.KindSessionExpired) {
			m.Clear()
		}
		return nil, err
	}
	return m.set(*identity, token), nil
}

func (m *Manager) set(identity model.Identity, token string) *Session {
	s := &Session{Identity: identity, Token: token}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	cp := *s
	return &cp
}
