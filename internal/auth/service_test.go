package auth

import (
	"context"
	"testing"
	"time"

	"order-workflow/internal/apperror"
	"order-workflow/internal/infrastructure"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/service"
	"order-workflow/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = workflow.Actor{ID: "u-admin", Name: "Admin", Role: model.RoleAdmin}

type authFixture struct {
	now   time.Time
	store *repository.MemoryStore
	users service.UserService
	auth  *Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	f.store = repository.NewMemoryStore()
	engine := workflow.NewEngine(workflow.WithClock(func() time.Time { return f.now }))
	f.users = service.NewUserService(f.store, engine)
	f.auth = NewService(
		Config{Secret: []byte("test-secret"), TTL: 24 * time.Hour},
		f.users,
		service.NewActivityLogService(f.store),
		infrastructure.NewMemoryTokenRevoker(),
		engine,
	)

	_, err := f.users.CreateUser(context.Background(), &model.CreateUserRequest{
		Email: "ana@pedidos.local", Name: "Ana", Role: model.RoleWarehouse, Password: "secreto1",
	}, admin)
	require.NoError(t, err)
	return f
}

func TestLoginAndValidate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.auth.Login(ctx, "ana@pedidos.local", "secreto1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.RoleWarehouse, resp.User.Role)

	identity, claims, err := f.auth.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User, *identity)
	assert.NotEmpty(t, claims.ID)

	logs, err := f.store.Activity().List(ctx, repository.LogFilter{Category: model.LogCategoryUser})
	require.NoError(t, err)
	assert.Equal(t, model.ActionLogin, logs[0].Action)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Login(context.Background(), "ana@pedidos.local", "otra")
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
}

func TestValidateTokenRejectsGarbageAndExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, _, err := f.auth.ValidateToken(ctx, "not-a-token")
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))

	resp, err := f.auth.Login(ctx, "ana@pedidos.local", "secreto1")
	require.NoError(t, err)

	f.now = f.now.Add(25 * time.Hour)
	_, _, err = f.auth.ValidateToken(ctx, resp.Token)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
}

func TestValidateTokenRejectsOtherSecret(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp, err := f.auth.Login(ctx, "ana@pedidos.local", "secreto1")
	require.NoError(t, err)

	other := *f.auth
	other.secret = []byte("different")
	_, _, err = other.ValidateToken(ctx, resp.Token)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp, err := f.auth.Login(ctx, "ana@pedidos.local", "secreto1")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, resp.Token))

	_, _, err = f.auth.ValidateToken(ctx, resp.Token)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp, err := f.auth.Login(ctx, "ana@pedidos.local", "secreto1")
	require.NoError(t, err)

	off := false
	_, err = f.users.UpdateUser(ctx, resp.User.UserID, &model.UpdateUserRequest{Active: &off}, admin)
	require.NoError(t, err)

	_, _, err = f.auth.ValidateToken(ctx, resp.Token)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionExpired))
}

func TestRoleChangeAppliesToExistingToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp, err := f.auth.Login(ctx, "ana@pedidos.local", "secreto1")
	require.NoError(t, err)

	role := model.RoleOffice
	_, err = f.users.UpdateUser(ctx, resp.User.UserID, &model.UpdateUserRequest{Role: &role}, admin)
	require.NoError(t, err)

	identity, _, err := f.auth.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOffice, identity.Role)
}

func TestLoginEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.auth.LoginEmail(ctx, "ANA@pedidos.local")
	require.NoError(t, err)
	assert.Equal(t, "Ana", resp.User.Name)

	_, err = f.auth.LoginEmail(ctx, "nadie@pedidos.local")
	assert.ErrorIs(t, err, ErrUnregistered)
}
