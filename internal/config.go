package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	StoreDriverSupabase = "supabase"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	DefaultGatewayScriptURL  = "https://js.paystack.co/v1/inline.js"
	DefaultGatewayAPIBaseURL = "https://api.paystack.co"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Store         StoreConfig         `mapstructure:"store"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Staff         []StaffAccount      `mapstructure:"staff"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	GiveURL           string        `mapstructure:"give_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ValidateRequests  bool          `mapstructure:"validate_requests"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// StoreConfig selects where donation records live.
type StoreConfig struct {
	Driver  string        `mapstructure:"driver"`
	URL     string        `mapstructure:"url"`
	AnonKey string        `mapstructure:"anon_key"`
	Table   string        `mapstructure:"table"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GatewayConfig struct {
	PublicKey   string        `mapstructure:"public_key"`
	SecretKey   string        `mapstructure:"secret_key"`
	ScriptURL   string        `mapstructure:"script_url"`
	APIBaseURL  string        `mapstructure:"api_base_url"`
	CallbackURL string        `mapstructure:"callback_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SecurityConfig struct {
	JWTPrivateKey        string        `mapstructure:"jwt_private_key"`
	JWTPublicKey         string        `mapstructure:"jwt_public_key"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost"`
}

// StaffAccount is a church staff member allowed to read donation reports.
type StaffAccount struct {
	Email        string   `mapstructure:"email"`
	Name         string   `mapstructure:"name"`
	PasswordHash string   `mapstructure:"password_hash"`
	Permissions  []string `mapstructure:"permissions"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfigFromEnv builds the configuration for container deployments where
// no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			GiveURL:           getEnv("GIVE_URL", "/give"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
			ValidateRequests:  getEnvAsBool("VALIDATE_REQUESTS", true),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Store: StoreConfig{
			Driver:  getEnv("STORE_DRIVER", StoreDriverSupabase),
			URL:     getEnv("SUPABASE_URL", ""),
			AnonKey: getEnv("SUPABASE_ANON_KEY", ""),
			Table:   getEnv("DONATIONS_TABLE", "donations"),
			Timeout: getEnvAsDuration("STORE_TIMEOUT", 10*time.Second),
		},
		Gateway: GatewayConfig{
			PublicKey:   getEnv("PAYSTACK_PUBLIC_KEY", ""),
			SecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
			ScriptURL:   getEnv("PAYSTACK_SCRIPT_URL", DefaultGatewayScriptURL),
			APIBaseURL:  getEnv("PAYSTACK_API_URL", DefaultGatewayAPIBaseURL),
			CallbackURL: getEnv("PAYSTACK_CALLBACK_URL", ""),
			Timeout:     getEnvAsDuration("PAYSTACK_TIMEOUT", 15*time.Second),
		},
		Security: SecurityConfig{
			JWTPrivateKey:        getEnv("JWT_PRIVATE_KEY", ""),
			JWTPublicKey:         getEnv("JWT_PUBLIC_KEY", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level: getEnv("LOG_LEVEL", "info"),
			},
		},
	}

	// STAFF_ACCOUNTS=email:bcrypt-hash:perm1|perm2,...
	for _, entry := range strings.Split(getEnv("STAFF_ACCOUNTS", ""), ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		account := StaffAccount{Email: parts[0], Name: parts[0], PasswordHash: parts[1]}
		if len(parts) == 3 {
			account.Permissions = strings.Split(parts[2], "|")
		}
		cfg.Staff = append(cfg.Staff, account)
	}

	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := cast.ToIntE(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := cast.ToBoolE(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := cast.ToDurationE(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Store.Validate(c.Database); err != nil {
		errs = append(errs, fmt.Sprintf("store config: %v", err))
	} else if c.IsProduction() && c.Store.Driver == StoreDriverMemory {
		errs = append(errs, "store config: memory driver loses donations on restart and is not allowed in production")
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range strings.Split(c.AllowedOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

// Validate requires the credentials of whichever backend is selected.
func (c *StoreConfig) Validate(db DatabaseConfig) error {
	switch c.Driver {
	case StoreDriverSupabase, "":
		if c.URL == "" {
			return errors.New("SUPABASE_URL is required")
		}
		if _, err := url.ParseRequestURI(c.URL); err != nil {
			return fmt.Errorf("invalid supabase url: %w", err)
		}
		if c.AnonKey == "" {
			return errors.New("SUPABASE_ANON_KEY is required")
		}
	case StoreDriverPostgres:
		if db.Source == "" {
			return errors.New("database.source is required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
	return nil
}

func (c *StoreConfig) TableName() string {
	if c.Table == "" {
		return "donations"
	}
	return c.Table
}

func (c *GatewayConfig) Validate() error {
	if c.PublicKey == "" {
		return errors.New("PAYSTACK_PUBLIC_KEY is required")
	}
	if c.ScriptURL != "" {
		if _, err := url.ParseRequestURI(c.ScriptURL); err != nil {
			return fmt.Errorf("invalid script_url: %w", err)
		}
	}
	return nil
}

func (c *GatewayConfig) GetScriptURL() string {
	if c.ScriptURL == "" {
		return DefaultGatewayScriptURL
	}
	return c.ScriptURL
}

func (c *GatewayConfig) GetAPIBaseURL() string {
	if c.APIBaseURL == "" {
		return DefaultGatewayAPIBaseURL
	}
	return strings.TrimRight(c.APIBaseURL, "/")
}

// Validate only checks keys when staff login is enabled.
func (c *SecurityConfig) Validate() error {
	if c.JWTPrivateKey == "" && c.JWTPublicKey == "" {
		return nil
	}
	if _, err := c.GetPrivateKey(); err != nil {
		return fmt.Errorf("invalid JWT private key: %w", err)
	}
	if _, err := c.GetPublicKey(); err != nil {
		return fmt.Errorf("invalid JWT public key: %w", err)
	}
	if c.BCryptCost != 0 && (c.BCryptCost < 10 || c.BCryptCost > 15) {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *SecurityConfig) StaffLoginEnabled() bool {
	return c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

func (c *SecurityConfig) GetPrivateKey() (*rsa.PrivateKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func (c *SecurityConfig) GetPublicKey() (*rsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}
