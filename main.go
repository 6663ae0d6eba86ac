package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/natours/natours-backend/internal/auth"
	"github.com/natours/natours-backend/internal/config"
	"github.com/natours/natours-backend/internal/db"
	"github.com/natours/natours-backend/internal/logging"
	"github.com/natours/natours-backend/internal/mailer"
	"github.com/natours/natours-backend/internal/metrics"
	"github.com/natours/natours-backend/internal/middleware"
	"github.com/natours/natours-backend/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func newLimiter(cfg *config.Config, log *logrus.Logger) (ratelimit.Limiter, func()) {
	lc := ratelimit.Config{Requests: cfg.Limit.Requests, Window: cfg.Limit.Window}
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemoryLimiter(lc, nil), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unreachable, rate limiting in process")
		rdb.Close()
		return ratelimit.NewMemoryLimiter(lc, nil), func() {}
	}
	log.WithField("addr", cfg.Redis.Addr).Info("Rate limiting through redis")
	return ratelimit.NewRedisLimiter(rdb, lc, nil), func() { rdb.Close() }
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json", os.Stderr).WithError(err).Fatal("Invalid configuration")
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	gdb, err := db.Connect(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}

	m := metrics.New()
	module, err := auth.Init(gdb, auth.Options{
		Auth:    cfg.Auth,
		Mailer:  mailer.New(cfg.Email, log),
		Metrics: m,
		Log:     log,
	})
	if err != nil {
		log.WithError(err).Fatal("Auth setup failed")
	}

	limiter, closeLimiter := newLimiter(cfg, log)
	defer closeLimiter()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(cfg.TrustProxy))
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORS.Origins))
	r.Use(m.Middleware)

	r.Get("/", RootHandler)
	r.Handle("/metrics", m.Handler())
	r.With(middleware.RateLimit(limiter, m, log)).Mount(auth.BasePath, module.Routes())

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
}
