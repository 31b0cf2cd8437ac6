package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"

	"github.com/Tomlord1122/family-todo/internal/assets"
	"github.com/Tomlord1122/family-todo/internal/config"
	"github.com/Tomlord1122/family-todo/internal/database"
	"github.com/Tomlord1122/family-todo/internal/domain"
	"github.com/Tomlord1122/family-todo/internal/repository"
	"github.com/Tomlord1122/family-todo/internal/server"
	"github.com/Tomlord1122/family-todo/internal/service"
	"github.com/Tomlord1122/family-todo/internal/session"
	"github.com/Tomlord1122/family-todo/internal/telemetry"
)

func gracefulShutdown(apiServer *http.Server, stopMaintenance func(), dbService database.Service, flush func(context.Context) error, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The server has 5 seconds to finish the requests it is currently handling.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error("server forced to shutdown", "err", err)
	}

	// Waits for a maintenance pass in flight before the pool goes away.
	stopMaintenance()

	if err := dbService.Close(); err != nil {
		log.Error("closing database", "err", err)
	}

	if err := flush(ctxTimeout); err != nil {
		log.Error("flushing telemetry", "err", err)
	}

	log.Info("server exiting")
	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warn("unknown LOG_LEVEL, using info", "value", cfg.LogLevel)
	}
	log.SetReportTimestamp(true)
	log.SetOutput(os.Stderr)

	ctx := context.Background()

	flush, err := telemetry.Setup(ctx, "family-todo", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("telemetry setup", "err", err)
	}

	// 1. Initialize Database
	dbService, err := database.New(ctx, cfg.DB)
	if err != nil {
		log.Fatal("connect database", "err", err)
	}

	log.Info("running database auto-migration")
	if err := dbService.Migrate(domain.Models()...); err != nil {
		log.Fatal("auto-migrate database", "err", err)
	}

	// 2. Initialize Repositories
	gormDB := dbService.GetDB()
	accountRepo := repository.NewGormAccountRepository(gormDB)
	todoRepo := repository.NewGormTodoRepository(gormDB)
	childRepo := repository.NewGormChildRepository(gormDB)
	assetStore := assets.NewStore(dbService.Pool())

	// 3. Initialize Services
	assetService := service.NewAssetService(assetStore, cfg.DefaultImageURL, cfg.AssetSweepGrace)
	todoService := service.NewTodoService(accountRepo, todoRepo)
	accountService := service.NewAccountService(accountRepo, childRepo, assetService)
	childService := service.NewChildService(accountRepo, childRepo, assetService)
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.CookieName,
		session.WithSecureCookie(cfg.Session.Secure))

	// 4. Background maintenance
	stopMaintenance := func() {}
	if cfg.AssetSweepInterval > 0 {
		maintenance := service.NewMaintenance(assetService, accountRepo, todoRepo)
		stopMaintenance = maintenance.Start(ctx, cfg.AssetSweepInterval)
	}

	// 5. Initialize Server/Router
	apiServer := server.NewServer(cfg, server.Deps{
		Health:   dbService,
		Todos:    todoService,
		Accounts: accountService,
		Children: childService,
		Assets:   assetService,
		Sessions: sessions,
		OAuth:    server.NewGoogleProvider(cfg.Google),
	})

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, stopMaintenance, dbService, flush, done)

	log.Info("starting server", "addr", apiServer.Addr)
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("HTTP server ListenAndServe", "err", err)
	}

	<-done
	log.Info("graceful shutdown complete")
}
