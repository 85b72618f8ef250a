package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User はユーザー情報を表すモデル
type User struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string    `json:"nombre" gorm:"type:varchar(255);not null"`
	Role         Role      `json:"rol" gorm:"type:varchar(50);not null;index"`
	Active       bool      `json:"activo" gorm:"not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"fecha_creacion"`
}

func (User) TableName() string {
	return "users"
}

// Identity は認証済みユーザーの識別情報
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"nombre"`
	Role   Role   `json:"rol"`
}

// IdentityOf builds the identity carried in tokens for u.
func IdentityOf(u *User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// JWTClaims はJWTトークンのクレーム
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"nombre"`
	Role   Role   `json:"rol"`
	jwt.RegisteredClaims
}

// LoginRequest はログインリクエスト
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse はログインレスポンス
type LoginResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// VerifyTokenRequest はトークン検証リクエスト
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse はトークン検証レスポンス
type VerifyTokenResponse struct {
	Valid bool      `json:"valid"`
	User  *Identity `json:"user,omitempty"`
	Error string    `json:"error,omitempty"`
}

// CreateUserRequest はユーザー作成リクエスト
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"nombre" binding:"required"`
	Role     Role   `json:"rol" binding:"required,oneof=almacen logistica transportista oficina admin"`
	Password string `json:"password,omitempty" binding:"omitempty,min=6"`
}

// UpdateUserRequest はユーザー更新リクエスト
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty" binding:"omitempty,email"`
	Name     *string `json:"nombre,omitempty"`
	Role     *Role   `json:"rol,omitempty" binding:"omitempty,oneof=almacen logistica transportista oficina admin"`
	Active   *bool   `json:"activo,omitempty"`
	Password *string `json:"password,omitempty" binding:"omitempty,min=6"`
}

// UserFilters はユーザーフィルタリング条件
type UserFilters struct {
	Role   Role
	Active *bool
}
