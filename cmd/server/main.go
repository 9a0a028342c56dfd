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
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/valkey-io/valkey-go"

	"github.com/smallwat3r/secretdrop/internal/app"
	"github.com/smallwat3r/secretdrop/internal/config"
	"github.com/smallwat3r/secretdrop/internal/logging"
	"github.com/smallwat3r/secretdrop/internal/ratelimit"
	"github.com/smallwat3r/secretdrop/internal/service"
	"github.com/smallwat3r/secretdrop/internal/store"
	"github.com/smallwat3r/secretdrop/internal/utility"
)

func main() {
	configPath := flag.String("config", utility.Getenv("SECRETDROP_CONFIG", ""), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := utility.NewIDGenerator(cfg.IDAlphabet, cfg.IDLength)
	if err != nil {
		return err
	}
	limiter := ratelimit.New(st, cfg.KeyPrefix, map[ratelimit.Kind]ratelimit.Policy{
		ratelimit.KindRead:   {MaxAttempts: cfg.ReadMaxAttempts, Window: cfg.ReadWindow, PurgeOnExceed: true},
		ratelimit.KindDelete: {MaxAttempts: cfg.DeleteMaxAttempts, Window: cfg.DeleteWindow},
	})
	svc := service.New(st, limiter, ids, service.Options{
		KeyPrefix:        cfg.KeyPrefix,
		MaxExpireSeconds: cfg.MaxExpireSeconds,
	})

	handler := app.NewHandler(svc, st, cfg.PublicURL, cfg.MaxPayloadBytes)
	router := app.NewRouter(handler, app.RouterConfig{
		RequestTimeout:  cfg.RequestTimeout,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		CORSOrigins:     cfg.CORSOrigins,
		SubmitLimiter:   app.NewRequestLimiter(st, cfg.RequestLimitPost, cfg.RequestLimitWindow),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; records are lost on restart")
		return store.NewMemoryStore(store.DefaultCleanupInterval), nil
	case config.DriverValkey:
		opt, err := valkey.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		if cfg.RedisPassword != "" {
			opt.Password = cfg.RedisPassword
		}
		opt.Dialer.Timeout = cfg.RedisDialTimeout
		opt.ConnWriteTimeout = cfg.RedisWriteTimeout
		return store.NewValkeyStore(ctx, opt)
	default:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		if cfg.RedisPassword != "" {
			opt.Password = cfg.RedisPassword
		}
		opt.PoolSize = cfg.RedisPoolSize
		opt.MinIdleConns = cfg.RedisMinIdle
		opt.DialTimeout = cfg.RedisDialTimeout
		opt.ReadTimeout = cfg.RedisReadTimeout
		opt.WriteTimeout = cfg.RedisWriteTimeout
		return store.NewRedisStore(ctx, opt)
	}
}
