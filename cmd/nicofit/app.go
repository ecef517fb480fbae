package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/config"
	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/logging"
	"github.com/nicoschmidtj/nicofit2/internal/metrics"
	"github.com/nicoschmidtj/nicofit2/internal/storage"
	"github.com/nicoschmidtj/nicofit2/internal/syncstore"
	"github.com/nicoschmidtj/nicofit2/internal/workout"
)

const defaultConfigPath = "nicofit.yaml"

// app is everything a command needs, opened from one config file.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	catalog *catalog.Catalog
	store   *syncstore.Service
	advisor *workout.Advisor
	metrics *metrics.Manager

	closers []io.Closer
}

// loadApp opens the local and remote slots named by the config at path.
// Logs go to logOut so stdout stays free for command output.
func loadApp(ctx context.Context, path string, logOut io.Writer) (*app, error) {
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, err
	}

	log, logCloser := logging.NewWithWriter(cfg.Log, logOut)
	a := &app{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	a.catalog = catalog.Empty()
	if cfg.Catalog.Path != "" {
		a.catalog, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		for _, w := range a.catalog.Warnings() {
			log.Warn("catalog", "warning", w)
		}
	}

	local, err := storage.Open(ctx, cfg.Local.Backend, storage.Options{Path: cfg.Local.Path, Logger: log})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening local %s storage: %w", cfg.Local.Backend, err)
	}
	a.closers = append(a.closers, local)

	remote, err := storage.Open(ctx, cfg.Remote.Backend, storage.Options{
		Path:   cfg.Remote.Path,
		URL:    cfg.RemoteURL(),
		APIKey: cfg.Remote.APIKey,
		Logger: log,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening remote %s storage: %w", cfg.Remote.Backend, err)
	}
	a.closers = append(a.closers, remote)

	// Commands are short-lived; the registry only backs the in-process counters.
	a.metrics = metrics.NewManager("nicofit", prometheus.NewRegistry())

	a.store, err = syncstore.New(syncstore.Config{
		Local:   local,
		Remote:  remote,
		Catalog: a.catalog,
		Logger:  log,
		Metrics: a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.advisor = &workout.Advisor{
		Catalog:     a.catalog,
		Cache:       history.NewCache(history.DefaultCacheSize, log).OnLookup(a.metrics.ObserveHistoryLookup),
		Profile:     cfg.Progression.Profile,
		Weeks:       cfg.Progression.Weeks,
		MinWeightKg: cfg.Progression.MinWeightKg,
		Metrics:     a.metrics,
	}
	return a, nil
}

// Close releases the slots and the log file, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("closing", "error", err)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
