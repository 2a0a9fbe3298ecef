package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SIGNING_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":9090" {
		t.Errorf("addrs = %q/%q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.JWTIssuer != "aphinity-auth" || cfg.JWTAudience != "aphinity-api" {
		t.Errorf("iss/aud = %q/%q", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v", cfg.RefreshTTL())
	}
	if cfg.LoginMaxFailures != 3 || cfg.LoginFailureWindow != 15*time.Minute {
		t.Errorf("login throttle = %d/%v", cfg.LoginMaxFailures, cfg.LoginFailureWindow)
	}
	if !cfg.RequireVerifiedEmail {
		t.Error("RequireVerifiedEmail should default to true")
	}
	if cfg.LoginTrackedIdentities != 10000 || cfg.PasswordMinLength != 12 {
		t.Errorf("tracked/min length = %d/%d", cfg.LoginTrackedIdentities, cfg.PasswordMinLength)
	}
	if cfg.RecoveryTTL() != time.Hour || cfg.RecoveryCodeLength != 6 {
		t.Errorf("recovery = %v/%d", cfg.RecoveryTTL(), cfg.RecoveryCodeLength)
	}
	if cfg.BcryptCost != 12 || cfg.PasswordHasher != "bcrypt" {
		t.Errorf("hasher = %s/%d", cfg.PasswordHasher, cfg.BcryptCost)
	}
	if cfg.CookieSecure != CookieSecureAuto {
		t.Errorf("CookieSecure = %q", cfg.CookieSecure)
	}
	if got := cfg.TrustedProxiesList(); len(got) != 2 || got[0] != "127.0.0.1" || got[1] != "::1" {
		t.Errorf("TrustedProxiesList = %v", got)
	}
	if cfg.SecurityEventsTopic != "aphinity-security-events" {
		t.Errorf("SecurityEventsTopic = %q", cfg.SecurityEventsTopic)
	}
	if cfg.KafkaBrokersList() != nil {
		t.Errorf("KafkaBrokersList = %v, want nil", cfg.KafkaBrokersList())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("JWT_SIGNING_SECRET", testSecret)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("JWT_ISSUER", "custom-issuer")
	t.Setenv("ACCESS_TOKEN_TTL_SECONDS", "120")
	t.Setenv("REFRESH_TOKEN_TTL_SECONDS", "3600")
	t.Setenv("LOGIN_FAILURE_WINDOW", "5m")
	t.Setenv("REQUIRE_VERIFIED_EMAIL", "false")
	t.Setenv("COOKIE_SECURE", " Always ")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" || cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AccessTTL() != 2*time.Minute || cfg.RefreshTTL() != time.Hour {
		t.Errorf("ttls = %v/%v", cfg.AccessTTL(), cfg.RefreshTTL())
	}
	if cfg.LoginFailureWindow != 5*time.Minute {
		t.Errorf("LoginFailureWindow = %v", cfg.LoginFailureWindow)
	}
	if cfg.RequireVerifiedEmail {
		t.Error("RequireVerifiedEmail should be false")
	}
	if cfg.CookieSecure != CookieSecureAlways {
		t.Errorf("CookieSecure = %q", cfg.CookieSecure)
	}
	if got := cfg.KafkaBrokersList(); len(got) != 2 || got[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
}

func TestLoad_KeyPairInsteadOfSecret(t *testing.T) {
	t.Setenv("JWT_PRIVATE_KEY", "/etc/keys/private.pem")
	t.Setenv("JWT_PUBLIC_KEY", "/etc/keys/public.pem")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"no signing material", map[string]string{}, "JWT_SIGNING_SECRET or"},
		{"short secret", map[string]string{"JWT_SIGNING_SECRET": "too-short"}, "at least 32 bytes"},
		{"half key pair", map[string]string{"JWT_PRIVATE_KEY": "k"}, "set together"},
		{"access ttl too small", map[string]string{"JWT_SIGNING_SECRET": testSecret, "ACCESS_TOKEN_TTL_SECONDS": "30"}, "ACCESS_TOKEN_TTL_SECONDS"},
		{"refresh ttl too small", map[string]string{"JWT_SIGNING_SECRET": testSecret, "REFRESH_TOKEN_TTL_SECONDS": "120"}, "at least 300"},
		{"refresh not above access", map[string]string{"JWT_SIGNING_SECRET": testSecret, "ACCESS_TOKEN_TTL_SECONDS": "600", "REFRESH_TOKEN_TTL_SECONDS": "600"}, "must exceed"},
		{"zero failures", map[string]string{"JWT_SIGNING_SECRET": testSecret, "LOGIN_MAX_FAILURES": "0"}, "LOGIN_MAX_FAILURES"},
		{"no tracked identities", map[string]string{"JWT_SIGNING_SECRET": testSecret, "LOGIN_TRACKED_IDENTITIES": "0"}, "LOGIN_TRACKED_IDENTITIES"},
		{"short min password", map[string]string{"JWT_SIGNING_SECRET": testSecret, "PASSWORD_MIN_LENGTH": "6"}, "PASSWORD_MIN_LENGTH"},
		{"recovery ttl too small", map[string]string{"JWT_SIGNING_SECRET": testSecret, "RECOVERY_TOKEN_TTL_SECONDS": "30"}, "RECOVERY_TOKEN_TTL_SECONDS"},
		{"recovery code too long", map[string]string{"JWT_SIGNING_SECRET": testSecret, "RECOVERY_CODE_LENGTH": "12"}, "RECOVERY_CODE_LENGTH"},
		{"bad cost", map[string]string{"JWT_SIGNING_SECRET": testSecret, "BCRYPT_COST": "40"}, "BCRYPT_COST"},
		{"bad hasher", map[string]string{"JWT_SIGNING_SECRET": testSecret, "PASSWORD_HASHER": "md5"}, "PASSWORD_HASHER"},
		{"bad cookie mode", map[string]string{"JWT_SIGNING_SECRET": testSecret, "COOKIE_SECURE": "sometimes"}, "COOKIE_SECURE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"JWT_SIGNING_SECRET", "JWT_PRIVATE_KEY", "JWT_PUBLIC_KEY"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	if !(&Config{Env: "Production"}).IsProduction() {
		t.Error("Production should be production")
	}
	if (&Config{Env: "development"}).IsProduction() {
		t.Error("development is not production")
	}
}

func TestLoadWorker(t *testing.T) {
	t.Setenv("JWT_SIGNING_SECRET", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LOKI_URL", "")
	if _, err := LoadWorker(); err == nil {
		t.Fatal("expected error without KAFKA_BROKERS")
	}

	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	if _, err := LoadWorker(); err == nil {
		t.Fatal("expected error without LOKI_URL")
	}

	t.Setenv("LOKI_URL", "http://loki:3100")
	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker: %v", err)
	}
	if cfg.KafkaGroupID != "aphinity-security-worker" || cfg.SecurityEventsTopic != "aphinity-security-events" {
		t.Errorf("defaults = %q / %q", cfg.KafkaGroupID, cfg.SecurityEventsTopic)
	}
}
