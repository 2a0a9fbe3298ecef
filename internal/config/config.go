// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinSigningSecretBytes is the shortest HS256 signing secret accepted at startup.
const MinSigningSecretBytes = 32

// Cookie security modes for COOKIE_SECURE.
const (
	CookieSecureAuto   = "auto"
	CookieSecureAlways = "always"
	CookieSecureNever  = "never"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health server (e.g. :9090).
	GRPCAddr    string `mapstructure:"GRPC_ADDR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment ("development", "production").
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTSigningSecret enables HS256 signing. Must be at least MinSigningSecretBytes long.
	JWTSigningSecret string `mapstructure:"JWT_SIGNING_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`

	AccessTokenTTLSeconds  int `mapstructure:"ACCESS_TOKEN_TTL_SECONDS"`
	RefreshTokenTTLSeconds int `mapstructure:"REFRESH_TOKEN_TTL_SECONDS"`

	// LoginMaxFailures is the failure count at which login requires a challenge token.
	LoginMaxFailures   int           `mapstructure:"LOGIN_MAX_FAILURES"`
	LoginFailureWindow time.Duration `mapstructure:"LOGIN_FAILURE_WINDOW"`
	// LoginTrackedIdentities bounds how many emails the failure counter remembers.
	LoginTrackedIdentities int `mapstructure:"LOGIN_TRACKED_IDENTITIES"`
	// RequireVerifiedEmail refuses login to accounts with an unverified email.
	RequireVerifiedEmail bool `mapstructure:"REQUIRE_VERIFIED_EMAIL"`

	// PasswordMinLength is the shortest password accepted at signup.
	PasswordMinLength       int `mapstructure:"PASSWORD_MIN_LENGTH"`
	RecoveryTokenTTLSeconds int `mapstructure:"RECOVERY_TOKEN_TTL_SECONDS"`
	RecoveryCodeLength      int `mapstructure:"RECOVERY_CODE_LENGTH"`

	// PasswordHasher is "bcrypt" or "argon2id"; both formats are always verifiable.
	PasswordHasher string `mapstructure:"PASSWORD_HASHER"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// TurnstileSecret enables captcha verification once login failures reach the threshold.
	TurnstileSecret    string `mapstructure:"TURNSTILE_SECRET"`
	TurnstileVerifyURL string `mapstructure:"TURNSTILE_VERIFY_URL"`

	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose X-Forwarded-For is honored.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	// CookieSecure is auto, always or never.
	CookieSecure string `mapstructure:"COOKIE_SECURE"`
	// PolicyFile optionally replaces the built-in route authorization policy.
	PolicyFile string `mapstructure:"POLICY_FILE"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of broker addresses. Empty disables the event stream.
	KafkaBrokers        string `mapstructure:"KAFKA_BROKERS"`
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`

	// Worker-only: consumer group and Loki URL.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	LokiURL      string `mapstructure:"LOKI_URL"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                   ":8080",
	"GRPC_ADDR":                   ":9090",
	"DATABASE_URL":                "",
	"APP_ENV":                     "development",
	"LOG_LEVEL":                   "info",
	"JWT_SIGNING_SECRET":          "",
	"JWT_PRIVATE_KEY":             "",
	"JWT_PUBLIC_KEY":              "",
	"JWT_ISSUER":                  "aphinity-auth",
	"JWT_AUDIENCE":                "aphinity-api",
	"ACCESS_TOKEN_TTL_SECONDS":    900,
	"REFRESH_TOKEN_TTL_SECONDS":   604800,
	"LOGIN_MAX_FAILURES":          3,
	"LOGIN_FAILURE_WINDOW":        "15m",
	"LOGIN_TRACKED_IDENTITIES":    10000,
	"REQUIRE_VERIFIED_EMAIL":      true,
	"PASSWORD_MIN_LENGTH":         12,
	"RECOVERY_TOKEN_TTL_SECONDS":  3600,
	"RECOVERY_CODE_LENGTH":        6,
	"PASSWORD_HASHER":             "bcrypt",
	"BCRYPT_COST":                 12,
	"TURNSTILE_SECRET":            "",
	"TURNSTILE_VERIFY_URL":        "https://challenges.cloudflare.com/turnstile/v0/siteverify",
	"TRUSTED_PROXIES":             "127.0.0.1,::1",
	"COOKIE_SECURE":               CookieSecureAuto,
	"POLICY_FILE":                 "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"KAFKA_BROKERS":               "",
	"SECURITY_EVENTS_TOPIC":       "aphinity-security-events",
	"KAFKA_GROUP_ID":              "aphinity-security-worker",
	"LOKI_URL":                    "",
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker reads the same sources as Load but only requires the settings the event
// forwarding worker uses.
func LoadWorker() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if len(cfg.KafkaBrokersList()) == 0 {
		return nil, errors.New("config: KAFKA_BROKERS is required")
	}
	if cfg.SecurityEventsTopic == "" || cfg.KafkaGroupID == "" {
		return nil, errors.New("config: SECURITY_EVENTS_TOPIC and KAFKA_GROUP_ID must be set")
	}
	if cfg.LokiURL == "" {
		return nil, errors.New("config: LOKI_URL is required")
	}
	return cfg, nil
}

func read() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.CookieSecure = strings.ToLower(strings.TrimSpace(cfg.CookieSecure))
	cfg.PasswordHasher = strings.ToLower(strings.TrimSpace(cfg.PasswordHasher))
	return &cfg, nil
}

// Validate checks invariants that must hold before the server starts.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		return errors.New("config: JWT_ISSUER and JWT_AUDIENCE must be set")
	}
	hasKeys := c.JWTPrivateKey != "" || c.JWTPublicKey != ""
	switch {
	case hasKeys && (c.JWTPrivateKey == "" || c.JWTPublicKey == ""):
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	case !hasKeys && c.JWTSigningSecret == "":
		return errors.New("config: JWT_SIGNING_SECRET or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY must be set")
	case !hasKeys && len(c.JWTSigningSecret) < MinSigningSecretBytes:
		return fmt.Errorf("config: JWT_SIGNING_SECRET must be at least %d bytes", MinSigningSecretBytes)
	}
	if c.AccessTokenTTLSeconds < 60 {
		return errors.New("config: ACCESS_TOKEN_TTL_SECONDS must be at least 60")
	}
	if c.RefreshTokenTTLSeconds < 300 {
		return errors.New("config: REFRESH_TOKEN_TTL_SECONDS must be at least 300")
	}
	if c.RefreshTokenTTLSeconds <= c.AccessTokenTTLSeconds {
		return errors.New("config: REFRESH_TOKEN_TTL_SECONDS must exceed ACCESS_TOKEN_TTL_SECONDS")
	}
	if c.LoginMaxFailures < 1 {
		return errors.New("config: LOGIN_MAX_FAILURES must be at least 1")
	}
	if c.LoginFailureWindow <= 0 {
		return errors.New("config: LOGIN_FAILURE_WINDOW must be positive")
	}
	if c.LoginTrackedIdentities < 1 {
		return errors.New("config: LOGIN_TRACKED_IDENTITIES must be at least 1")
	}
	if c.PasswordMinLength < 8 {
		return errors.New("config: PASSWORD_MIN_LENGTH must be at least 8")
	}
	if c.RecoveryTokenTTLSeconds < 60 {
		return errors.New("config: RECOVERY_TOKEN_TTL_SECONDS must be at least 60")
	}
	if c.RecoveryCodeLength < 6 || c.RecoveryCodeLength > 9 {
		return errors.New("config: RECOVERY_CODE_LENGTH must be between 6 and 9")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("config: PASSWORD_HASHER %q is not supported", c.PasswordHasher)
	}
	switch c.CookieSecure {
	case CookieSecureAuto, CookieSecureAlways, CookieSecureNever:
	default:
		return fmt.Errorf("config: COOKIE_SECURE %q must be auto, always or never", c.CookieSecure)
	}
	return nil
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh token (session) lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSeconds) * time.Second
}

// RecoveryTTL returns how long a recovery code stays redeemable.
func (c *Config) RecoveryTTL() time.Duration {
	return time.Duration(c.RecoveryTokenTTLSeconds) * time.Second
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the security event stream.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// TrustedProxiesList returns the configured trusted proxy entries.
func (c *Config) TrustedProxiesList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
