package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrewpaige1/bookswap-api/auth"
	"github.com/andrewpaige1/bookswap-api/config"
	"github.com/andrewpaige1/bookswap-api/handlers"
	"github.com/andrewpaige1/bookswap-api/keystore"
	"github.com/andrewpaige1/bookswap-api/middleware"
	"github.com/andrewpaige1/bookswap-api/trading"
)

func init() {
	RootCmd.AddCommand(&ServeCommand)
}

var ServeCommand = cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func newRevoker(ctx context.Context) (auth.Revoker, func(), error) {
	if env.RedisURL == "" {
		logger.Info("Using in-memory token revocation")
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	revoker, err := auth.NewRedisRevoker(env.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if err := revoker.Ping(ctx); err != nil {
		revoker.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("Using redis token revocation")
	return revoker, func() { revoker.Close() }, nil
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.Connect(env)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return err
	}

	keys, err := keystore.Open(env.KeystorePath)
	if err != nil {
		logger.Error("Failed to open key store", zap.String("path", env.KeystorePath), zap.Error(err))
		return err
	}

	revoker, closeRevoker, err := newRevoker(ctx)
	if err != nil {
		logger.Error("Failed to set up token revocation", zap.Error(err))
		return err
	}
	defer closeRevoker()

	issuer := auth.NewIssuer(env.JWTSecret, env.JWTIssuer, env.JWTAudience, env.TokenTTL)
	cookies := auth.Cookies{
		Domain: env.Domain(),
		Secure: env.CookieSecure(),
		MaxAge: env.TokenTTL,
	}
	authMiddleware, err := middleware.EnsureValidToken(issuer, revoker, cookies, logger)
	if err != nil {
		logger.Error("Failed to set up token validation", zap.Error(err))
		return err
	}

	providers := auth.NewProviders(
		auth.GitHub(env.GitHubClientID, env.GitHubClientSecret, env.GitHubRedirectURL),
		auth.Google(env.GoogleClientID, env.GoogleClientSecret, env.GoogleRedirectURL),
	)

	handler := &handlers.DBHandler{
		DB:          db,
		Trading:     trading.NewService(db, logger),
		Keys:        keys,
		Tokens:      issuer,
		Cookies:     cookies,
		Revoker:     revoker,
		Providers:   providers,
		Logger:      logger,
		FrontendURL: env.FrontendURL,
	}

	limiter := middleware.NewRateLimiter(env.LoginRate, env.LoginBurst, logger)
	limiter.TrustProxy = env.TrustProxy

	server := &http.Server{
		Addr:              "0.0.0.0:" + env.Port,
		Handler:           handler.Routes(authMiddleware, limiter, env.Origins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", server.Addr),
			zap.String("env", env.AppEnv),
			zap.Strings("providers", providers.Names()),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}
