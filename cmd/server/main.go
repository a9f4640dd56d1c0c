package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/baraholka/storefront/internal/admin"
	"github.com/baraholka/storefront/internal/audit"
	"github.com/baraholka/storefront/internal/config"
	"github.com/baraholka/storefront/internal/entitlement"
	"github.com/baraholka/storefront/internal/httpserver"
	"github.com/baraholka/storefront/internal/identity"
	"github.com/baraholka/storefront/internal/localstore"
	"github.com/baraholka/storefront/internal/logging"
	"github.com/baraholka/storefront/internal/ratelimit"
	"github.com/baraholka/storefront/internal/remote"
	"github.com/baraholka/storefront/internal/search"
	"github.com/baraholka/storefront/internal/session"
	"github.com/baraholka/storefront/internal/state"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	store, err := localstore.Open(cfg.StorePath, logger)
	if err != nil {
		log.Fatalf("local store init error: %v", err)
	}
	saver := localstore.NewDebouncedSaver(store, cfg.SaveSettle)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	svc, err := remote.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("data service init error: %v", err)
	}
	svc.DefaultLimit = cfg.PostLimit

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	oracle := ratelimit.New(rdb, cfg.RateLimitWindow, cfg.RateLimitMax)

	producer := audit.NewProducer(cfg.KafkaBrokers, cfg.AuditTopic)

	ident := identity.NewManager(cfg.JWTSecret)
	gate := admin.NewGate(cfg.AdminSecretHash, oracle, producer, logger)

	sessions := session.NewSupervisor(cfg.IdleTimeout, func() {
		if err := ident.SignOut(context.Background()); err != nil {
			logger.Error("idle signout", "error", err)
		}
		gate.Lock()
	}, logger)

	go func() {
		for ev := range ident.Changes() {
			switch ev.Type {
			case identity.SignedIn:
				sessions.OnSignIn()
			case identity.SignedOut:
				sessions.OnSignOut()
			}
		}
	}()

	coordinator := state.New(svc, store, saver, ident.Current, logger)
	index := search.New(cfg.DebounceWindow)

	e := echo.New()
	e.HideBanner = true

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	httpserver.Register(e, &httpserver.Deps{
		Coordinator: coordinator,
		Index:       index,
		Entitlement: &entitlement.Gate{Remote: svc, Limit: cfg.PostLimit},
		Admin:       gate,
		Sessions:    sessions,
		Identity:    ident,
		Remote:      svc,
		Log:         logger,
	})

	go func() {
		logger.Info("starting storefront server", "port", cfg.ServerPort)
		if err := e.Start(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}

	index.Close()
	sessions.Close()
	saver.Close()
	store.Close()

	if err := producer.Close(); err != nil {
		logger.Error("audit producer close", "error", err)
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close", "error", err)
	}
	if sqlDB, err := svc.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("server stopped")
}
