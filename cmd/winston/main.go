package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/winston-domains/winston/internal/api"
	"github.com/winston-domains/winston/internal/buildinfo"
	"github.com/winston-domains/winston/internal/config"
	"github.com/winston-domains/winston/internal/gateway"
	"github.com/winston-domains/winston/internal/keymutex"
	"github.com/winston-domains/winston/internal/metrics"
	"github.com/winston-domains/winston/internal/ratelimit"
	"github.com/winston-domains/winston/internal/registrar"
	"github.com/winston-domains/winston/internal/store"
	"github.com/winston-domains/winston/internal/sweeper"
)

func main() {
	// 1. Load and validate environment config
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// 2. Open durable state
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create state dir: %v\n", err)
		os.Exit(1)
	}
	db, err := store.OpenDB(filepath.Join(cfg.StateDir, "winston.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: migrate database: %v\n", err)
		os.Exit(1)
	}
	st := store.New(db)

	// 3. Select the registrar driver
	var driver registrar.Driver
	switch cfg.DefaultProvider {
	case config.ProviderNamecheap:
		driver = registrar.NewNamecheap(cfg.NamecheapAPIUser, cfg.NamecheapAPIKey, cfg.NamecheapUsername, cfg.NamecheapClientIP, cfg.DryRun)
	default:
		driver = registrar.NewPorkbun(cfg.PorkbunAPIKey, cfg.PorkbunSecretKey, cfg.DryRun)
	}
	if cfg.DryRun {
		log.Printf("dry-run is ON: registrar calls are simulated (set DRY_RUN=false for real purchases)")
	}

	// 4. Wire the pipelines
	m := metrics.New()
	gw := gateway.New(cfg, st, driver, keymutex.New(), m)

	limiter := ratelimit.New(cfg.RateLimitRPM, cfg.RateLimitBurst)
	limiter.Start()
	defer limiter.Stop()

	sw, err := sweeper.New(st, cfg.SweepSchedule, cfg.SpendRetentionDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: sweeper schedule: %v\n", err)
		os.Exit(1)
	}
	sw.Start()
	defer sw.Stop()

	// 5. Create and start the API server
	srv := api.NewServer(cfg, st, gw, limiter, m)
	go func() {
		log.Printf("winston %s starting on :%d (provider=%s)", buildinfo.Version, cfg.Port, driver.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %s, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
