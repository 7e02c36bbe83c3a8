package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/truxe-io/heimdall/internal/cache"
	"github.com/truxe-io/heimdall/internal/config"
	"github.com/truxe-io/heimdall/internal/database"
	"github.com/truxe-io/heimdall/internal/directory"
	"github.com/truxe-io/heimdall/internal/health"
	"github.com/truxe-io/heimdall/internal/jwks"
	"github.com/truxe-io/heimdall/internal/oauth/authorize"
	"github.com/truxe-io/heimdall/internal/oauth/token"
	"github.com/truxe-io/heimdall/internal/oauth/validator"
	"github.com/truxe-io/heimdall/internal/web/handler"
	"github.com/truxe-io/heimdall/internal/web/middleware"
)

func main() {
	ctx := context.Background()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := slog.LevelInfo
	if !cfg.Server.IsProduction() {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	cacheService := cache.NewService(cfg.Cache, logger)
	defer cacheService.Close()

	keyring, err := loadKeyring(cfg.Keys)
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}

	store := directory.NewPostgresStore(db)
	memoryCache := cache.NewMemory(cfg.Cache.MemoryTTL, 10_000)
	defer memoryCache.Close()
	clients := directory.NewCachedClientStore(store, cacheService, memoryCache, cfg.Cache.ClientTTL, logger)

	validators := validator.New(clients, store)

	codeStore := authorize.NewPostgresCodeStore(db)
	consentStore := authorize.NewPostgresConsentStore(db)
	authorizeService := authorize.NewService(validators, codeStore, consentStore, cfg.Tokens.AuthorizationCodeTTL, logger)

	refreshStore := token.NewPostgresRefreshTokenStore(db)
	revocationStore := token.NewPostgresRevocationStore(db)
	tokenService := token.NewService(
		validators,
		refreshStore,
		revocationStore,
		keyring,
		store,
		cfg.GetIssuer(),
		cfg.Tokens.AccessTokenTTL,
		cfg.Tokens.RefreshTokenTTL,
		logger,
	)

	go runCleanup(ctx, cfg.Tokens, authorizeService, tokenService, logger)

	var limiter middleware.RateLimiter
	if cfg.Server.RateLimitEnabled {
		inMemoryLimiter := middleware.NewInMemoryRateLimiter()
		defer inMemoryLimiter.Close()
		limiter = inMemoryLimiter
	}

	mux := http.NewServeMux()

	oauthHandler := handler.NewOAuthHandler(&cfg, logger, authorizeService, tokenService, keyring, limiter)
	oauthHandler.RegisterRoutes(mux)

	healthHandler := handler.NewHealthHandler(health.NewChecker(db, cacheService))
	healthHandler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        mux,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr, "issuer", cfg.GetIssuer())
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("shutdown completed")
	}

	return nil
}

func loadKeyring(keys config.Keys) (*jwks.Keyring, error) {
	if keys.PrivateKeyPEMFile == "" {
		return jwks.NewEphemeralKeyring(keys.RSABits)
	}

	pemBytes, err := os.ReadFile(keys.PrivateKeyPEMFile)
	if err != nil {
		return nil, err
	}

	return jwks.NewKeyringFromPEM(pemBytes, keys.ActiveKID)
}

// runCleanup reaps expired codes, expired tokens, and old revoked tokens on
// a fixed interval until shutdown.
func runCleanup(ctx context.Context, cfg config.Tokens, authorizeService *authorize.Service, tokenService *token.Service, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			codes, err := authorizeService.CleanupExpiredCodes(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "failed to clean up expired authorization codes", "error", err)
			}

			tokens, err := tokenService.CleanupExpiredTokens(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "failed to clean up expired tokens", "error", err)
			}

			revoked, err := tokenService.CleanupOldRevokedTokens(ctx, cfg.RevokedRetention)
			if err != nil {
				logger.ErrorContext(ctx, "failed to clean up revoked tokens", "error", err)
			}

			logger.InfoContext(ctx, "cleanup pass completed",
				"expired_codes", codes, "expired_tokens", tokens, "revoked_tokens", revoked)

		case <-ctx.Done():
			return
		}
	}
}
