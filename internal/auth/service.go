package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
	"order-workflow/internal/service"
	"order-workflow/internal/workflow"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken は無効なトークンエラー
	ErrInvalidToken = apperror.SessionExpired("Sesión expirada o token inválido")

	// ErrUnregistered はMicrosoftアカウントに対応するユーザーがいないエラー
	ErrUnregistered = apperror.NotAuthorized("Usuario no registrado")
)

// Config は認証サービスの設定
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Service は認証サービス
type Service struct {
	users    service.UserService
	activity service.ActivityLogService
	revoker  service.TokenRevoker
	engine   *workflow.Engine
	secret   []byte
	ttl      time.Duration
}

// NewService は新しい認証サービスを作成
func NewService(cfg Config, users service.UserService, activity service.ActivityLogService, revoker service.TokenRevoker, engine *workflow.Engine) *Service {
	return &Service{
		users:    users,
		activity: activity,
		revoker:  revoker,
		engine:   engine,
		secret:   cfg.Secret,
		ttl:      cfg.TTL,
	}
}

// Login はユーザー認証とJWTトークン生成を行う
func (s *Service) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	user, err := s.users.ValidatePassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.LoginUser(ctx, user)
}

// LoginEmail はMicrosoftで確認済みのメールアドレスでログインする
func (s *Service) LoginEmail(ctx context.Context, email string) (*model.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, ErrUnregistered
		}
		return nil, err
	}
	if !user.Active {
		return nil, apperror.NotAuthorized("Usuario desactivado")
	}
	return s.LoginUser(ctx, user)
}

// LoginUser は認証済みユーザーにトークンを発行し、ログインを記録する
func (s *Service) LoginUser(ctx context.Context, user *model.User) (*model.LoginResponse, error) {
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	identity := model.IdentityOf(user)
	entry := s.engine.UserLog(workflow.ActorFrom(identity), model.ActionLogin, user.Email)
	if err := s.activity.Record(ctx, entry); err != nil {
		return nil, err
	}

	return &model.LoginResponse{Token: token, User: identity}, nil
}

// ValidateToken はJWTトークンを検証してユーザー情報を返す。
// ロールはトークンではなく現在の登録内容から取得する
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*model.Identity, *model.JWTClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, nil, err
	}

	if claims.ID != "" && s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, err
		}
		if revoked {
			return nil, nil, ErrInvalidToken
		}
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !user.Active {
		return nil, nil, ErrInvalidToken
	}

	identity := model.IdentityOf(user)
	return &identity, claims, nil
}

// Logout はトークンを失効させ、ログアウトを記録する
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	identity, claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return err
	}

	if s.revoker != nil && claims.ID != "" {
		ttl := claims.ExpiresAt.Time.Sub(s.engine.Now())
		if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
			return err
		}
	}

	entry := s.engine.UserLog(workflow.ActorFrom(*identity), model.ActionLogout, identity.Email)
	return s.activity.Record(ctx, entry)
}

func (s *Service) parse(tokenString string) (*model.JWTClaims, error) {
	claims := &model.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.engine.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.SessionExpired("Sesión expirada")
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateJWT はJWTトークンを生成
func (s *Service) generateJWT(user *model.User) (string, error) {
	now := s.engine.Now()
	claims := &model.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
