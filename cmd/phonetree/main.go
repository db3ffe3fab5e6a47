package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flowpbx/phonetree/internal/api"
	"github.com/flowpbx/phonetree/internal/api/middleware"
	"github.com/flowpbx/phonetree/internal/config"
	"github.com/flowpbx/phonetree/internal/database"
	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/metrics"
	"github.com/flowpbx/phonetree/internal/session"
	"github.com/flowpbx/phonetree/internal/session/pgstore"
	"github.com/flowpbx/phonetree/internal/session/redisstore"
	"github.com/flowpbx/phonetree/internal/session/sqlitestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sessionCleanupInterval is how often stores without native expiry are swept.
const sessionCleanupInterval = 5 * time.Minute

// callCookieMaxAge caps correlation cookies when sessions never expire.
const callCookieMaxAge = 24 * time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting phonetree",
		"http_port", cfg.HTTPPort,
		"session_store", cfg.SessionStore,
		"session_ttl", cfg.SessionTTL,
	)

	if cfg.AdminAuthEnabled() {
		if _, err := middleware.ParsePasswordHash(cfg.AdminPasswordHash); err != nil {
			slog.Error("invalid admin-password-hash", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("no admin credentials configured, /api/v1 is unauthenticated")
	}

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	table, err := ivr.NewACMETable(ivr.ACMEOptions{
		CompanyName:     cfg.CompanyName,
		ReceptionNumber: cfg.ReceptionNumber,
		SupportQueue:    cfg.SupportQueue,
	})
	if err != nil {
		slog.Error("failed to build state table", "error", err)
		os.Exit(1)
	}

	report := ivr.Report(table)
	for _, issue := range report.Issues {
		slog.Warn("state table issue",
			"severity", issue.Severity,
			"state", issue.State,
			"message", issue.Message,
		)
	}
	if !report.Valid {
		slog.Error("state table failed validation")
		os.Exit(1)
	}

	sessions, err := openSessionStore(appCtx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "store", cfg.SessionStore, "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	// Metrics live in a private registry served at /metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(sessions, time.Now(), logger),
	)
	recorder := metrics.NewRecorder(reg)

	engine := ivr.NewEngine(table,
		ivr.WithMaxChainDepth(cfg.MaxChainDepth),
		ivr.WithObserver(recorder),
		ivr.WithLogger(logger),
	)

	secret, err := cfg.CookieSecretBytes()
	if err != nil {
		slog.Error("failed to load cookie secret", "error", err)
		os.Exit(1)
	}
	cookieTTL := cfg.SessionTTL
	if cookieTTL == 0 {
		cookieTTL = callCookieMaxAge
	}

	opts := api.Options{
		Engine:            engine,
		Sessions:          sessions,
		CallTokens:        middleware.NewCallTokenSigner(secret, cookieTTL),
		Logger:            logger,
		TLSEnabled:        cfg.TLSEnabled(),
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: cfg.AdminPasswordHash,
		Metrics:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if cfg.WebhookAuthEnabled() {
		opts.WebhookAuth = middleware.NewDigestAuth(cfg.WebhookUsername, cfg.WebhookPassword, logger)
	} else {
		slog.Warn("no webhook credentials configured, /webhook accepts unauthenticated requests")
	}
	if cfg.RateLimit > 0 {
		limiter := middleware.NewIPRateLimiter(middleware.NewRateLimitConfig(cfg.RateLimit, cfg.RateBurst), logger)
		defer limiter.Stop()
		opts.WebhookLimiter = limiter
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      api.NewServer(opts),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr, "tls", cfg.TLSEnabled())
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down http server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("phonetree stopped")
}

// openSessionStore opens the configured session backend and, for backends
// without native key expiry, starts the background sweep.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	var (
		store session.Store
		err   error
	)

	switch cfg.SessionStore {
	case config.StoreMemory:
		store = session.NewMemoryStore(cfg.SessionTTL)
	case config.StoreSQLite:
		db, openErr := database.Open(ctx, cfg.DataDir)
		if openErr != nil {
			return nil, openErr
		}
		store = sqlitestore.New(db, cfg.SessionTTL)
	case config.StorePostgres:
		store, err = pgstore.New(ctx, cfg.PostgresDSN, cfg.SessionTTL)
	case config.StoreRedis:
		store, err = redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redisstore.WithTTL(cfg.SessionTTL))
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
	if err != nil {
		return nil, err
	}

	if expirer, ok := store.(session.Expirer); ok && cfg.SessionTTL > 0 {
		session.StartCleanupTicker(ctx, expirer, sessionCleanupInterval)
	}

	slog.Info("session store opened", "store", cfg.SessionStore)
	return store, nil
}

// hashPassword reads a password from stdin and prints its Argon2id hash for
// use as admin-password-hash.
func hashPassword() error {
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := middleware.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
