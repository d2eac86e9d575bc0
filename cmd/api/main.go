package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendease/internal/attendance"
	"attendease/internal/auth"
	"attendease/internal/config"
	"attendease/internal/excuse"
	"attendease/internal/handler"
	"attendease/internal/httpmiddleware"
	"attendease/internal/logging"
	"attendease/internal/queue"
	"attendease/internal/store"
	"attendease/internal/tally"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Production(), cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var (
		db       *store.DB
		records  attendance.Store
		redisCli *store.Redis
	)
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		records = attendance.NewMemoryStore()
	} else {
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		records = attendance.NewRepository(db.Client)
	}

	if cfg.QueueBackend != "memory" || cfg.SessionBackend != "memory" {
		redisCli = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		defer redisCli.Close()
	}

	var revoker auth.Revoker
	if cfg.SessionBackend == "memory" {
		revoker = auth.NewMemoryRevoker()
	} else {
		revoker = auth.NewRedisRevoker(redisCli.Client)
	}

	var (
		q       queue.Queue
		counter tally.Counter
	)
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(64)
		memCounter := tally.NewMemoryCounter()
		q, counter = mem, memCounter
		go func() {
			if err := tally.Run(ctx, mem, memCounter, logger.With("component", "tally")); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("tally consumer stopped", "error", err)
			}
		}()
	} else {
		q = queue.NewRedisQueue(redisCli.Client, queue.DefaultKey)
		counter = tally.NewRedisCounter(redisCli.Client)
	}

	if cfg.GenAISkip {
		logger.Warn("absence reasons are accepted without model review", "genai_skip", true)
	}
	model := excuse.New(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.GenAIModel, cfg.GenAITimeout, cfg.GenAISkip)
	validator := excuse.NewValidator(model, logger.With("component", "excuse"))

	svc := attendance.NewService(records, validator, q, loc, logger.With("component", "attendance"))
	h := handler.New(svc, counter, handler.Sessions{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.SessionTTL,
		Revoker:    revoker,
	}, logger.With("component", "http"))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket("global", cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware(nil))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		if db != nil {
			ok := db.Healthy(c.Request.Context())
			body["db"] = ok
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		if redisCli != nil {
			ok := redisCli.Healthy(c.Request.Context())
			body["redis"] = ok
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	})

	loginLimit := httpmiddleware.NewSimpleTokenBucket("login", cfg.LoginRateLimitPerMin, cfg.LoginRateLimitPerMin)
	h.Register(r, loginLimit.GinMiddleware(nil))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}
