package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"order-workflow/internal/apperror"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultGraphURL is the Microsoft Graph profile endpoint.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftConfig はAzure ADアプリの設定
type MicrosoftConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// MicrosoftProfile はGraph APIから取得したユーザー情報
type MicrosoftProfile struct {
	Email string
	Name  string
}

type graphUser struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

// MicrosoftOAuth はMicrosoftアカウントのOAuth2フロー
type MicrosoftOAuth struct {
	config   *oauth2.Config
	graphURL string
}

// NewMicrosoftOAuth は新しいMicrosoft OAuthクライアントを作成
func NewMicrosoftOAuth(cfg MicrosoftConfig) *MicrosoftOAuth {
	return &MicrosoftOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     microsoft.AzureADEndpoint(cfg.TenantID),
			Scopes:       []string{"openid", "profile", "email", "User.Read"},
		},
		graphURL: DefaultGraphURL,
	}
}

// WithEndpoints overrides the token and profile endpoints.
func (m *MicrosoftOAuth) WithEndpoints(endpoint oauth2.Endpoint, graphURL string) *MicrosoftOAuth {
	m.config.Endpoint = endpoint
	m.graphURL = graphURL
	return m
}

// NewState returns a random value for the oauth2 state parameter.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthCodeURL はMicrosoftのログイン画面URLを返す
func (m *MicrosoftOAuth) AuthCodeURL(state string) string {
	return m.config.AuthCodeURL(state)
}

// Exchange は認可コードをトークンに交換し、プロフィールを取得する
func (m *MicrosoftOAuth) Exchange(ctx context.Context, code string) (*MicrosoftProfile, error) {
	if code == "" {
		return nil, apperror.Validation("Código no recibido")
	}
	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Newf(apperror.KindValidation, "No se pudo obtener el token: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.graphURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query graph profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph profile returned %d", resp.StatusCode)
	}

	var user graphUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode graph profile: %w", err)
	}

	email := user.Mail
	if email == "" {
		email = user.UserPrincipalName
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.Validation("La cuenta de Microsoft no tiene email")
	}
	return &MicrosoftProfile{Email: email, Name: user.DisplayName}, nil
}
