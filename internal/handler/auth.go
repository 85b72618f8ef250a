package handler

import (
	"net/http"
	"net/url"
	"strings"

	"order-workflow/internal/apperror"
	"order-workflow/internal/auth"
	"order-workflow/internal/handler/response"
	"order-workflow/internal/middleware"
	"order-workflow/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const stateCookie = "pedidos_oauth_state"

// AuthHandler は認証ハンドラー
type AuthHandler struct {
	authService *auth.Service
	microsoft   *auth.MicrosoftOAuth
	frontendURL string
	logger      *zap.Logger
}

// NewAuthHandler は新しい認証ハンドラーを作成。microsoftがnilの場合はMicrosoftログインを無効にする
func NewAuthHandler(authService *auth.Service, microsoft *auth.MicrosoftOAuth, frontendURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		microsoft:   microsoft,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// Login はメールアドレスとパスワードでログインする
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// MicrosoftLogin はMicrosoftのログイン画面へリダイレクトする
func (h *AuthHandler) MicrosoftLogin(c *gin.Context) {
	if h.microsoft == nil {
		response.Error(c, apperror.NotFound("Inicio de sesión con Microsoft no configurado"))
		return
	}

	state, err := auth.NewState()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/api", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.microsoft.AuthCodeURL(state))
}

// Callback は認可コードを交換し、トークン付きでフロントエンドへリダイレクトする
func (h *AuthHandler) Callback(c *gin.Context) {
	if h.microsoft == nil {
		response.Error(c, apperror.NotFound("Inicio de sesión con Microsoft no configurado"))
		return
	}
	if msg := c.Query("error_description"); msg != "" {
		response.Error(c, apperror.Validation(msg))
		return
	}

	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		response.Error(c, apperror.Validation("Estado de inicio de sesión no válido"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/api", "", c.Request.TLS != nil, true)

	profile, err := h.microsoft.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn("microsoft code exchange failed", zap.Error(err))
		response.Error(c, err)
		return
	}

	resp, err := h.authService.LoginEmail(c.Request.Context(), profile.Email)
	if err != nil {
		h.logger.Info("microsoft login rejected", zap.String("email", profile.Email), zap.Error(err))
		response.Error(c, err)
		return
	}

	c.Redirect(http.StatusFound, h.redirectURL(resp.Token))
}

// VerifyToken はトークンの有効性を確認する
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	var req model.VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		response.Error(c, apperror.Validation("Token no proporcionado"))
		return
	}

	identity, _, err := h.authService.ValidateToken(c.Request.Context(), req.Token)
	if err != nil {
		if apperror.IsKind(err, apperror.KindSessionExpired) {
			c.JSON(http.StatusUnauthorized, model.VerifyTokenResponse{Valid: false, Error: err.Error()})
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, model.VerifyTokenResponse{Valid: true, User: identity})
}

// Logout はトークンを失効させる
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.GetTokenFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Sesión cerrada")
}

// Me は現在のユーザー情報を返す
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		response.Error(c, auth.ErrInvalidToken)
		return
	}
	response.Success(c, identity)
}

func (h *AuthHandler) redirectURL(token string) string {
	u, err := url.Parse(h.frontendURL)
	if err != nil || h.frontendURL == "" {
		return "/?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
