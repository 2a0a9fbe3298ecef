// server runs the session lifecycle HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit"
	auditrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/repository"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/challenge"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/config"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/db"
	healthhandler "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/health/handler"
	identityhandler "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/handler"
	identityrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/repository"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/logging"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/loginattempt"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/notify"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/policy/engine"
	recoveryrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/recovery/repository"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/refresh"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/server"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/server/interceptors"
	sessionrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/repository"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry"
	otelsetup "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/otel"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/producer"
	userrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/repository"
)

const (
	appName             = "aphinity auth"
	serviceName         = "aphinity-auth"
	healthSyncInterval  = 10 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.Env)
	displayAppname(appName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server: exited")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

type stores struct {
	users      service.UserRepo
	identities service.IdentityRepo
	sessions   sessionrepo.Repository
	recovery   recoveryrepo.Repository
	audit      auditrepo.Repository
}

// openStores returns Postgres-backed stores, or in-memory stores outside production when
// DATABASE_URL is unset.
func openStores(ctx context.Context, cfg *config.Config) (*stores, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			return nil, nil, errors.New("DATABASE_URL is required in production")
		}
		log.Warn().Msg("server: DATABASE_URL not set, using in-memory stores")
		return &stores{
			users:      userrepo.NewMemoryRepository(),
			identities: identityrepo.NewMemoryRepository(),
			sessions:   sessionrepo.NewMemoryRepository(),
			recovery:   recoveryrepo.NewMemoryRepository(),
			audit:      auditrepo.NewMemoryRepository(),
		}, nil, nil
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute})
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	return &stores{
		users:      userrepo.NewPostgresRepository(conn),
		identities: identityrepo.NewPostgresRepository(conn),
		sessions:   sessionrepo.NewPostgresRepository(conn),
		recovery:   recoveryrepo.NewPostgresRepository(conn),
		audit:      auditrepo.NewPostgresRepository(conn),
	}, conn, nil
}

func newTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey != "" {
		priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, fmt.Errorf("jwt keys: %w", err)
		}
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	}
	return security.NewHMACTokenProvider([]byte(cfg.JWTSigningSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
}

func run(ctx context.Context, cfg *config.Config) error {
	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	st, conn, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		return err
	}
	hasher, err := security.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return err
	}
	counter, err := loginattempt.NewCounter(cfg.LoginMaxFailures, cfg.LoginFailureWindow,
		loginattempt.WithCapacity(int64(cfg.LoginTrackedIdentities)))
	if err != nil {
		return err
	}
	defer counter.Close()

	var verifier challenge.Verifier
	if cfg.TurnstileSecret != "" {
		verifier = challenge.NewTurnstileClient(cfg.TurnstileSecret, cfg.TurnstileVerifyURL)
	} else {
		log.Warn().Msg("server: TURNSTILE_SECRET not set, recovery and logins past the failure threshold will be refused")
	}

	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic)
	events := telemetry.MultiEmitter{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		events = append(events, kafkaProducer)
	}
	auditLogger := audit.NewLogger(st.audit, interceptors.ClientIPFromContext).WithEmitter(events)

	credentials, err := service.NewPasswordVerifier(st.users, st.identities, hasher)
	if err != nil {
		return err
	}
	passwordPolicy := security.DefaultPasswordPolicy()
	passwordPolicy.MinLength = cfg.PasswordMinLength
	svc, err := service.NewAuthService(service.Deps{
		Users:          st.users,
		Identities:     st.identities,
		Sessions:       st.sessions,
		Verifier:       credentials,
		Counter:        counter,
		Challenge:      verifier,
		Tokens:         tokens,
		Hasher:         hasher,
		Audit:          auditLogger,
		PasswordPolicy: passwordPolicy,
		Recovery:       st.recovery,
		Mailer:         notify.NewLogMailer(log.Logger, !cfg.IsProduction()),
	}, service.Options{
		RefreshTTL:           cfg.RefreshTTL(),
		RequireVerifiedEmail: cfg.RequireVerifiedEmail,
		RecoveryTTL:          cfg.RecoveryTTL(),
		RecoveryCodeLength:   cfg.RecoveryCodeLength,
	})
	if err != nil {
		return err
	}
	coordinator := refresh.NewCoordinator(svc, tokens)

	policy, err := engine.LoadOPAEvaluator(ctx, cfg.PolicyFile)
	if err != nil {
		return err
	}
	var pinger healthhandler.Pinger
	if conn != nil {
		pinger = conn
	}
	health := healthhandler.NewServer(pinger, policy)

	clientMeta, err := interceptors.NewClientMetaResolver(cfg.TrustedProxiesList())
	if err != nil {
		return err
	}
	cookies := interceptors.NewCookiePolicy(cfg.CookieSecure)
	router := server.NewRouter(server.HTTPDeps{
		Identity: identityhandler.NewHandler(identityhandler.Deps{
			Auth:      svc,
			Refresher: coordinator,
			Users:     st.users,
			Sessions:  st.sessions,
			Audit:     st.audit,
			Cookies:   cookies,
			Meta:      clientMeta,
		}),
		Health:     health,
		Refresh:    coordinator,
		Tokens:     tokens,
		Authorizer: policy,
		Cookies:    cookies,
		ClientMeta: clientMeta,
		Events:     events,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcSrv := server.NewGRPCServer(health)

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go health.Run(healthCtx, healthSyncInterval)

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC health server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.Env).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server failed, shutting down")
	}

	stopHealth()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()

	// Let in-flight async emits finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		log.Warn().Err(err).Msg("kafka producer close")
	}
	otelCtx, otelCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer otelCancel()
	if err := providers.Shutdown(otelCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("server stopped")
	return serveErr
}
