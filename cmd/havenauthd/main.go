// Command havenauthd serves the havenAuth engine over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	havenAuth "github.com/MrEthical07/havenAuth"
	"github.com/MrEthical07/havenAuth/internal/httpapi"
	"github.com/MrEthical07/havenAuth/internal/postgres"
	promexport "github.com/MrEthical07/havenAuth/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "configs/havenauth.yaml", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error("havenauthd stopped", "operation", "run", "outcome", "failure", "error", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if strings.EqualFold(os.Getenv("HAVEN_LOG_LEVEL"), "debug") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func run(ctx context.Context, configPath string, logger *slog.Logger) error {
	cfg, err := havenAuth.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database url is required")
	}

	db, err := postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.Database.RunMigrations {
		if err := postgres.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}
	repos := postgres.NewRepositories(db)

	b := havenAuth.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithUserLookup(repos.Users).
		WithCredentialLookup(repos.Users).
		WithPermissionSource(repos.Permissions).
		WithRoleStore(repos.Permissions).
		WithPasskeyStore(repos.Passkeys)
	if cfg.Session.Store == havenAuth.StorePostgres {
		b.WithSessionStore(repos.Sessions)
	}
	if cfg.OTP.Store == havenAuth.StorePostgres {
		b.WithOTPStore(repos.OTPs)
	}

	if cfg.Redis.URL != "" {
		rdb, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()
	for _, warning := range engine.SecurityReport().Warnings {
		logger.Warn("security posture",
			"operation", "security_report",
			"outcome", "warning",
			"warning", warning,
		)
	}

	opts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithMetricsHandler(promexport.NewExporter(engine).Handler()),
	}
	if cfg.Environment == havenAuth.EnvDevelopment {
		opts = append(opts, httpapi.WithCodeSender(logSender{logger: logger}))
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpapi.NewRouter(httpapi.NewHandler(engine, opts...)),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started",
			"operation", "serve",
			"outcome", "start",
			"addr", cfg.HTTP.Addr,
			"environment", cfg.Environment,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("http server stopped", "operation", "serve", "outcome", "success")
	return nil
}

// connectRedis accepts a redis:// URL or a bare host:port.
func connectRedis(ctx context.Context, raw string) (redis.UniversalClient, error) {
	opts := &redis.Options{Addr: raw}
	if strings.Contains(raw, "://") {
		parsed, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
