package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the server configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Microsoft MicrosoftConfig `mapstructure:"microsoft"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Events    EventsConfig    `mapstructure:"events"`
	Orders    OrdersConfig    `mapstructure:"orders"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Env         string `mapstructure:"env"`
	LogLevel    string `mapstructure:"log_level"`
	FrontendURL string `mapstructure:"frontend_url"`
	SeedData    bool   `mapstructure:"seed_data"`
}

type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	Algorithm       string `mapstructure:"algorithm"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

type MicrosoftConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// Enabled reports whether Microsoft sign-in is configured.
func (m MicrosoftConfig) Enabled() bool {
	return m.TenantID != "" && m.ClientID != "" && m.ClientSecret != "" && m.RedirectURI != ""
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StorageConfig struct {
	GCSBucket          string `mapstructure:"gcs_bucket"`
	GCSCredentialsJSON string `mapstructure:"gcs_credentials_json"`
	Dir                string `mapstructure:"dir"`
}

type EventsConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

type OrdersConfig struct {
	PhoneRegion string `mapstructure:"phone_region"`
}

// developmentSecret is accepted only outside production.
const developmentSecret = "dev-secret-change-me"

// envBinding maps a config key to its environment variable and default.
type envBinding struct {
	key      string
	env      string
	fallback interface{}
}

var bindings = []envBinding{
	{"server.port", "PORT", "5000"},
	{"server.env", "APP_ENV", "development"},
	{"server.log_level", "LOG_LEVEL", "info"},
	{"server.frontend_url", "FRONTEND_URL", "http://localhost:5173"},
	{"server.seed_data", "SEED_DATA", true},

	{"database.host", "DB_HOST", "localhost"},
	{"database.port", "DB_PORT", "5432"},
	{"database.user", "DB_USER", "postgres"},
	{"database.password", "DB_PASSWORD", "postgres"},
	{"database.database", "DB_NAME", "postgres"},
	{"database.ssl_mode", "DB_SSLMODE", "disable"},

	{"jwt.secret", "JWT_SECRET", developmentSecret},
	{"jwt.algorithm", "JWT_ALGORITHM", "HS256"},
	{"jwt.expiration_hours", "JWT_EXPIRATION_HOURS", 24},

	{"microsoft.tenant_id", "TENANT_ID", ""},
	{"microsoft.client_id", "CLIENT_ID", ""},
	{"microsoft.client_secret", "CLIENT_SECRET", ""},
	{"microsoft.redirect_uri", "REDIRECT_URI", ""},

	{"redis.addr", "REDIS_ADDR", ""},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},

	{"storage.gcs_bucket", "GCS_BUCKET", ""},
	{"storage.gcs_credentials_json", "GCS_CREDENTIALS_JSON", ""},
	{"storage.dir", "STORAGE_DIR", "uploads"},

	{"events.project_id", "PUBSUB_PROJECT_ID", ""},
	{"events.topic", "PUBSUB_TOPIC", "pedidos-eventos"},

	{"orders.phone_region", "DEFAULT_PHONE_REGION", "ES"},
}

// LoadConfig reads .env (if present), an optional YAML file, then environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.fallback)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Orders.PhoneRegion = strings.ToUpper(cfg.Orders.PhoneRegion)
	cfg.Server.FrontendURL = strings.TrimRight(cfg.Server.FrontendURL, "/")

	return &cfg, nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// UseMemoryStore reports whether the in-process store replaces PostgreSQL.
func (c *Config) UseMemoryStore() bool {
	return c.Database.Host == "memory"
}

// Validate checks the configuration for values the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == developmentSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if !strings.EqualFold(c.JWT.Algorithm, "HS256") {
		return fmt.Errorf("unsupported JWT_ALGORITHM %q (only HS256)", c.JWT.Algorithm)
	}
	if c.JWT.ExpirationHours <= 0 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be positive")
	}
	ms := c.Microsoft
	set := 0
	for _, s := range []string{ms.TenantID, ms.ClientID, ms.ClientSecret, ms.RedirectURI} {
		if s != "" {
			set++
		}
	}
	if set > 0 && set < 4 {
		return fmt.Errorf("microsoft oauth requires TENANT_ID, CLIENT_ID, CLIENT_SECRET and REDIRECT_URI")
	}
	if c.Events.ProjectID != "" && c.Events.Topic == "" {
		return fmt.Errorf("PUBSUB_TOPIC is required when PUBSUB_PROJECT_ID is set")
	}
	if len(c.Orders.PhoneRegion) != 2 {
		return fmt.Errorf("DEFAULT_PHONE_REGION must be a two-letter region code")
	}
	return nil
}
