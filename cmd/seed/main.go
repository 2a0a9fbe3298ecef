// seed creates a verified local account for development. Idempotent: an existing email is
// reported and skipped.
//
//	go run ./cmd/seed -email dev@example.com -password 'Dev-Password-1' -roles admin,user
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/config"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/db"
	identityrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/repository"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/logging"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
	sessionrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/repository"
	userrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/repository"
)

func main() {
	email := flag.String("email", "dev@example.com", "Account email")
	password := flag.String("password", "", "Account password (12+ chars with upper, lower, number and symbol)")
	name := flag.String("name", "Dev User", "Display name")
	roles := flag.String("roles", "user", "Comma-separated roles")
	unverified := flag.Bool("unverified", false, "Leave the email unverified")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "seed: -password is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.Env)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{})
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("token provider")
	}
	hasher, err := security.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hasher")
	}
	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	verifier, err := service.NewPasswordVerifier(users, identities, hasher)
	if err != nil {
		log.Fatal().Err(err).Msg("verifier")
	}
	passwordPolicy := security.DefaultPasswordPolicy()
	passwordPolicy.MinLength = cfg.PasswordMinLength
	svc, err := service.NewAuthService(service.Deps{
		Users:          users,
		Identities:     identities,
		Sessions:       sessionrepo.NewPostgresRepository(conn),
		Verifier:       verifier,
		Tokens:         tokens,
		Hasher:         hasher,
		PasswordPolicy: passwordPolicy,
	}, service.Options{RefreshTTL: cfg.RefreshTTL()})
	if err != nil {
		log.Fatal().Err(err).Msg("auth service")
	}

	u, err := svc.CreateLocalUser(ctx, service.NewUser{
		Email:         *email,
		Password:      *password,
		Name:          *name,
		Roles:         splitRoles(*roles),
		EmailVerified: !*unverified,
	})
	if errors.Is(err, service.ErrEmailAlreadyRegistered) {
		log.Info().Str("email", *email).Msg("seed: account already exists, skipping")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("seed: create account")
	}
	log.Info().Str("user_id", u.ID).Str("email", u.Email).Strs("roles", u.Roles).Msg("seed: account created")
}

func newTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey != "" {
		priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	}
	return security.NewHMACTokenProvider([]byte(cfg.JWTSigningSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
