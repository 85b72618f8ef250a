package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"order-workflow/internal/apitest"
	"order-workflow/internal/apperror"
	"order-workflow/internal/client"
	"order-workflow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newManager(srv *apitest.Server, tokens client.TokenStore) *Manager {
	return NewManager(client.New(srv.URL, tokens), zap.NewNop())
}

func TestLoginAndRestore(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	tokens := client.NewFileTokenStore(filepath.Join(t.TempDir(), "token"))

	m := newManager(srv, tokens)
	s, err := m.Login(ctx, apitest.Email(model.RoleLogistics), apitest.Password)
	require.NoError(t, err)
	assert.Equal(t, model.RoleLogistics, s.Identity.Role)
	assert.NotEmpty(t, s.Token)

	// 別プロセス相当: 同じファイルから復元する
	restored, err := newManager(srv, tokens).Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Identity, restored.Identity)
	assert.Equal(t, s.Token, restored.Token)
}

func TestLoginFailures(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	m := newManager(srv, client.NewMemoryTokenStore())

	_, err := m.Login(ctx, "", "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = m.Login(ctx, apitest.Email(model.RoleOffice), "incorrecta")
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestRestoreWithoutToken(t *testing.T) {
	srv := apitest.New(t)
	_, err := newManager(srv, client.NewMemoryTokenStore()).Restore(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRestoreClearsExpiredToken(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	tokens := client.NewMemoryTokenStore()
	m := newManager(srv, tokens)

	_, err := m.Login(ctx, apitest.Email(model.RoleCarrier), apitest.Password)
	require.NoError(t, err)

	srv.Advance(apitest.TokenTTL + time.Minute)

	_, err = newManager(srv, tokens).Restore(ctx)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
	token, _ := tokens.Load()
	assert.Empty(t, token)
}

func TestRestoreRejectsGarbageToken(t *testing.T) {
	srv := apitest.New(t)
	tokens := client.NewMemoryTokenStore()
	require.NoError(t, tokens.Save("no.es.un.token"))

	m := newManager(srv, tokens)
	_, err := m.Restore(context.Background())
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
	_, ok := m.Current()
	assert.False(t, ok)
	token, _ := tokens.Load()
	assert.Empty(t, token)
}

func TestLoginWithToken(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()

	issuer := client.New(srv.URL, client.NewMemoryTokenStore())
	resp, err := issuer.Login(ctx, apitest.Email(model.RoleAdmin), apitest.Password)
	require.NoError(t, err)

	tokens := client.NewMemoryTokenStore()
	m := newManager(srv, tokens)
	s, err := m.LoginWithToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, s.Identity.Role)
	stored, _ := tokens.Load()
	assert.Equal(t, resp.Token, stored)

	_, err = m.LoginWithToken(ctx, "  ")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutRevokesAndClears(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	tokens := client.NewMemoryTokenStore()
	m := newManager(srv, tokens)

	s, err := m.Login(ctx, apitest.Email(model.RoleWarehouse), apitest.Password)
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))

	_, ok := m.Current()
	assert.False(t, ok)
	stored, _ := tokens.Load()
	assert.Empty(t, stored)

	// サーバー側でも失効している
	_, err = m.LoginWithToken(ctx, s.Token)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))

	// 二度目のログアウトはサーバーエラーでも成功扱い
	assert.NoError(t, m.Logout(ctx))
}

func TestDeactivatedUserCannotRestore(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()
	tokens := client.NewMemoryTokenStore()

	_, err := newManager(srv, tokens).Login(ctx, apitest.Email(model.RoleOffice), apitest.Password)
	require.NoError(t, err)

	off := false
	_, err = srv.Users.UpdateUser(ctx, srv.UserID(model.RoleOffice), &model.UpdateUserRequest{Active: &off}, srv.Actor(model.RoleAdmin))
	require.NoError(t, err)

	_, err = newManager(srv, tokens).Restore(ctx)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
}
