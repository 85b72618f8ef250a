package service

import (
	"context"
	"testing"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, &model.CreateUserRequest{
		Email:    "  Ana@Pedidos.Local ",
		Name:     "Ana",
		Role:     model.RoleWarehouse,
		Password: "secreto1",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, "ana@pedidos.local", user.Email)
	assert.True(t, user.Active)
	assert.NotEqual(t, "secreto1", user.PasswordHash)

	got, err := f.users.ValidatePassword(ctx, "ANA@pedidos.local", "secreto1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.users.ValidatePassword(ctx, "ana@pedidos.local", "incorrecta")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.ValidatePassword(ctx, "nadie@pedidos.local", "secreto1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logs, err := f.activity.List(ctx, repository.LogFilter{Category: model.LogCategoryUser})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionUserCreated, logs[0].Action)
}

func TestUserService_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.CreateUser(ctx, &model.CreateUserRequest{Email: "ana@pedidos.local", Name: "Ana", Role: model.RoleOffice}, admin)
	require.NoError(t, err)

	_, err = f.users.CreateUser(ctx, &model.CreateUserRequest{Email: "ANA@pedidos.local", Name: "Otra", Role: model.RoleOffice}, admin)
	require.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Equal(t, "Ya existe ese usuario", err.Error())
}

func TestUserService_PasswordlessAccountCannotUsePasswordLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.CreateUser(ctx, &model.CreateUserRequest{Email: "ms@pedidos.local", Name: "MS", Role: model.RoleOffice}, admin)
	require.NoError(t, err)

	_, err = f.users.ValidatePassword(ctx, "ms@pedidos.local", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_ToggleActiveIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.users.CreateUser(ctx, &model.CreateUserRequest{Email: "t@pedidos.local", Name: "T", Role: model.RoleCarrier, Password: "secreto1"}, admin)
	require.NoError(t, err)

	off, on := false, true
	_, err = f.users.UpdateUser(ctx, user.ID, &model.UpdateUserRequest{Active: &off}, admin)
	require.NoError(t, err)

	_, err = f.users.ValidatePassword(ctx, "t@pedidos.local", "secreto1")
	assert.True(t, apperror.IsKind(err, apperror.KindNotAuthorized))

	_, err = f.users.UpdateUser(ctx, user.ID, &model.UpdateUserRequest{Active: &on}, admin)
	require.NoError(t, err)

	logs, err := f.activity.List(ctx, repository.LogFilter{Category: model.LogCategoryUser})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, model.ActionUserActivated, logs[0].Action)
	assert.Equal(t, model.ActionUserDeactivated, logs[1].Action)
}

func TestUserService_UpdateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	self, err := f.users.CreateUser(ctx, &model.CreateUserRequest{Email: "admin@pedidos.local", Name: "Admin", Role: model.RoleAdmin}, admin)
	require.NoError(t, err)
	me := admin
	me.ID = self.ID

	_, err = f.users.UpdateUser(ctx, self.ID, &model.UpdateUserRequest{}, me)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	off := false
	_, err = f.users.UpdateUser(ctx, self.ID, &model.UpdateUserRequest{Active: &off}, me)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	role := model.Role("capitan")
	_, err = f.users.UpdateUser(ctx, self.ID, &model.UpdateUserRequest{Role: &role}, admin)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = f.users.UpdateUser(ctx, "missing", &model.UpdateUserRequest{Active: &off}, admin)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	name := "Administración"
	updated, err := f.users.UpdateUser(ctx, self.ID, &model.UpdateUserRequest{Name: &name}, me)
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, updated.Active)
}
