package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendHTTP     = "http"
)

// Options configures Open. Only the fields of the chosen backend are read.
type Options struct {
	Path           string // sqlite, badger
	URL            string // redis, http, postgres DSN
	APIKey         string // http
	MigrationsPath string // postgres
	Logger         *slog.Logger
}

// Open creates the KV for a backend name.
func Open(ctx context.Context, backend string, opts Options) (KV, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryKV(), nil
	case BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendBadger:
		return OpenBadger(opts.Path, opts.Logger)
	case BackendRedis:
		return OpenRedis(ctx, opts.URL)
	case BackendHTTP:
		if opts.URL == "" {
			return nil, fmt.Errorf("http backend requires a url")
		}
		return NewHTTPKV(opts.URL, opts.APIKey), nil
	case BackendPostgres:
		if opts.MigrationsPath != "" {
			if err := RunMigrations(opts.URL, opts.MigrationsPath); err != nil {
				return nil, err
			}
		}
		return New(ctx, opts.URL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
