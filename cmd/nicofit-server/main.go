package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tailscale.com/tsnet"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/config"
	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/logging"
	"github.com/nicoschmidtj/nicofit2/internal/metrics"
	"github.com/nicoschmidtj/nicofit2/internal/server"
	"github.com/nicoschmidtj/nicofit2/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "directory holding the postgres migrations")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Stderr("info").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, closer := logging.New(cfg.Log)
	defer closer.Close()
	log.Info("nicofit-server starting", "version", Version)

	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Storage == storage.BackendPostgres {
		if err := storage.RunMigrations(cfg.Database.DSN(), *migrationsPath); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}
	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Server.Storage, storage.Options{
		Path:   cfg.Remote.Path,
		URL:    storageURL(cfg),
		Logger: log,
	})
	if err != nil {
		log.Error("failed to open storage", "backend", cfg.Server.Storage, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("storage ready", "backend", cfg.Server.Storage)

	cat := catalog.Empty()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			log.Error("failed to load catalog", "error", err)
			os.Exit(1)
		}
		for _, w := range cat.Warnings() {
			log.Warn("catalog", "warning", w)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewManager("nicofit", reg)
	cache := history.NewCache(history.DefaultCacheSize, log).OnLookup(m.ObserveHistoryLookup)

	srv := server.New(server.Config{
		Store:       store,
		Catalog:     cat,
		Cache:       cache,
		Metrics:     m,
		Gatherer:    reg,
		APIKey:      cfg.Auth.APIKey,
		Profile:     cfg.Progression.Profile,
		Weeks:       cfg.Progression.Weeks,
		MinWeightKg: cfg.Progression.MinWeightKg,
		Logger:      log,
	})

	// Listen on tsnet or plain TCP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			Logf:     func(format string, args ...any) { log.Debug(fmt.Sprintf(format, args...)) },
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "plain http (no tailscale)")
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// storageURL returns the connection string of the mirror's backend.
func storageURL(cfg *config.Config) string {
	switch cfg.Server.Storage {
	case storage.BackendPostgres:
		return cfg.Database.DSN()
	case storage.BackendRedis:
		return cfg.Redis.URL
	}
	return ""
}
