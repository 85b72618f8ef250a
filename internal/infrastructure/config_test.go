package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DB_HOST", "memory")
	t.Setenv("FRONTEND_URL", "https://pedidos.example.com/")
	t.Setenv("SEED_DATA", "false")
	t.Setenv("JWT_EXPIRATION_HOURS", "8")
	t.Setenv("DEFAULT_PHONE_REGION", "pt")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Server.Port)
	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, "https://pedidos.example.com", cfg.Server.FrontendURL)
	assert.False(t, cfg.Server.SeedData)
	assert.Equal(t, 8, cfg.JWT.ExpirationHours)
	assert.Equal(t, "PT", cfg.Orders.PhoneRegion)
	assert.Equal(t, "pedidos-eventos", cfg.Events.Topic)
	assert.False(t, cfg.Microsoft.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7000\"\nredis:\n  addr: localhost:6379\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "5000", Env: "development"},
		JWT:    JWTConfig{Secret: developmentSecret, Algorithm: "HS256", ExpirationHours: 24},
		Events: EventsConfig{Topic: "pedidos-eventos"},
		Orders: OrdersConfig{PhoneRegion: "ES"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no port", func(c *Config) { c.Server.Port = "" }},
		{"dev secret in production", func(c *Config) { c.Server.Env = "production" }},
		{"unsupported algorithm", func(c *Config) { c.JWT.Algorithm = "RS256" }},
		{"non-positive expiry", func(c *Config) { c.JWT.ExpirationHours = 0 }},
		{"partial microsoft", func(c *Config) { c.Microsoft.TenantID = "contoso" }},
		{"pubsub without topic", func(c *Config) { c.Events = EventsConfig{ProjectID: "p"} }},
		{"bad region", func(c *Config) { c.Orders.PhoneRegion = "ESP" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := validConfig()
	cfg.Microsoft = MicrosoftConfig{TenantID: "t", ClientID: "c", ClientSecret: "s", RedirectURI: "http://localhost/api/callback"}
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Microsoft.Enabled())
}
