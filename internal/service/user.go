package service

import (
	"context"
	"fmt"
	"strings"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/workflow"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials は認証失敗エラー
var ErrInvalidCredentials = apperror.New(apperror.KindSessionExpired, "Usuario o contraseña incorrectos")

// UserService はユーザー管理サービスのインターフェース
type UserService interface {
	CreateUser(ctx context.Context, req *model.CreateUserRequest, actor workflow.Actor) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest, actor workflow.Actor) (*model.User, error)
	ValidatePassword(ctx context.Context, email, password string) (*model.User, error)
	ListUsers(ctx context.Context, filters model.UserFilters) ([]model.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// userServiceImpl はユーザーサービスの実装
type userServiceImpl struct {
	store  repository.Store
	engine *workflow.Engine
}

// NewUserService は新しいユーザーサービスを作成
func NewUserService(store repository.Store, engine *workflow.Engine) UserService {
	return &userServiceImpl{store: store, engine: engine}
}

// CreateUser は新しいユーザーを作成
func (s *userServiceImpl) CreateUser(ctx context.Context, req *model.CreateUserRequest, actor workflow.Actor) (*model.User, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, apperror.Validation("Email y nombre son obligatorios")
	}
	if !req.Role.Valid() {
		return nil, apperror.Newf(apperror.KindValidation, "rol %q no existe", req.Role)
	}

	user := &model.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      req.Role,
		Active:    true,
		CreatedAt: s.engine.Now(),
	}
	// パスワード未指定はMicrosoftログイン専用アカウント
	if req.Password != "" {
		hashedPassword, err := hashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hashedPassword
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		entry := s.engine.UserLog(actor, model.ActionUserCreated, fmt.Sprintf("%s (%s)", user.Email, user.Role))
		return tx.Activity().Append(ctx, &entry)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID はIDでユーザーを取得
func (s *userServiceImpl) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.store.Users().Get(ctx, id)
}

// GetUserByEmail はメールアドレスでユーザーを取得
func (s *userServiceImpl) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.store.Users().GetByEmail(ctx, normalizeEmail(email))
}

// ValidatePassword はメールアドレスとパスワードを検証
func (s *userServiceImpl) ValidatePassword(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	// パスワード検証
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, apperror.NotAuthorized("Usuario desactivado")
	}
	return user, nil
}

// UpdateUser はユーザー情報を部分更新
func (s *userServiceImpl) UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest, actor workflow.Actor) (*model.User, error) {
	if req.Email == nil && req.Name == nil && req.Role == nil && req.Active == nil && req.Password == nil {
		return nil, apperror.Validation("No hay campos para actualizar")
	}

	var updated *model.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.Users().Get(ctx, id)
		if err != nil {
			return err
		}
		wasActive := user.Active

		if req.Email != nil {
			if user.Email = normalizeEmail(*req.Email); user.Email == "" {
				return apperror.Validation("El email no puede estar vacío")
			}
		}
		if req.Name != nil {
			if user.Name = strings.TrimSpace(*req.Name); user.Name == "" {
				return apperror.Validation("El nombre no puede estar vacío")
			}
		}
		if req.Role != nil {
			if !req.Role.Valid() {
				return apperror.Newf(apperror.KindValidation, "rol %q no existe", *req.Role)
			}
			if user.ID == actor.ID && *req.Role != user.Role {
				return apperror.Validation("No puedes cambiar tu propio rol")
			}
			user.Role = *req.Role
		}
		if req.Active != nil {
			if user.ID == actor.ID && !*req.Active {
				return apperror.Validation("No puedes desactivar tu propia cuenta")
			}
			user.Active = *req.Active
		}
		if req.Password != nil {
			hashedPassword, err := hashPassword(*req.Password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			user.PasswordHash = hashedPassword
		}

		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}

		action := model.ActionUserUpdated
		switch {
		case !wasActive && user.Active:
			action = model.ActionUserActivated
		case wasActive && !user.Active:
			action = model.ActionUserDeactivated
		}
		entry := s.engine.UserLog(actor, action, user.Email)
		if err := tx.Activity().Append(ctx, &entry); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListUsers はユーザー一覧を取得
func (s *userServiceImpl) ListUsers(ctx context.Context, filters model.UserFilters) ([]model.User, error) {
	users, err := s.store.Users().List(ctx, filters)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// CountUsers は登録ユーザー数を返す
func (s *userServiceImpl) CountUsers(ctx context.Context) (int64, error) {
	return s.store.Users().Count(ctx)
}

// hashPassword はパスワードをハッシュ化
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
