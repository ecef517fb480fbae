// Package syncstore persists user state to a local slot and reconciles it
// with a per-user remote mirror on every save.
package syncstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/merge"
	"github.com/nicoschmidtj/nicofit2/internal/metrics"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/schema"
	"github.com/nicoschmidtj/nicofit2/internal/storage"
)

// Config wires a Service. Local and Remote are required.
type Config struct {
	Local   storage.KV
	Remote  storage.KV
	Catalog *catalog.Catalog
	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Manager
}

// Service owns the local and remote slots of one client.
type Service struct {
	local   storage.KV
	remote  storage.KV
	catalog *catalog.Catalog
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Manager

	mu     sync.Mutex
	status *broadcaster
}

// Loaded is the result of LoadState.
type Loaded struct {
	State    models.State
	Metadata models.Metadata
	UserID   string
	Warnings []string
}

// SaveRequest carries the state to persist and the state it was derived from.
type SaveRequest struct {
	State         models.State
	PreviousState models.State
	Metadata      models.Metadata
}

// SaveResult is the reconciled state. On failure State and Metadata are the
// request's own values and Err is set.
type SaveResult struct {
	State    models.State
	Metadata models.Metadata
	Phase    Phase
	Err      error
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Local == nil || cfg.Remote == nil {
		return nil, errors.New("syncstore: local and remote storage are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		local:   cfg.Local,
		remote:  cfg.Remote,
		catalog: cfg.Catalog,
		now:     cfg.Now,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		status:  newBroadcaster(),
	}, nil
}

// storedEnvelope keeps the state raw so it can go through schema.Migrate.
type storedEnvelope struct {
	UserID   string          `json:"userId,omitempty"`
	State    json.RawMessage `json:"state"`
	Metadata models.Metadata `json:"metadata"`
}

// LoadState reads the local slot. It never touches the remote slot and
// never fails: unreadable or corrupt data yields the default state.
func (s *Service) LoadState(ctx context.Context) Loaded {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Loaded{UserID: s.userID(ctx)}
	env, warn := s.readEnvelope(ctx, s.local, storage.LocalDataKey)
	if warn != "" {
		out.Warnings = append(out.Warnings, warn)
	}

	res := schema.Migrate(env.State, s.catalog)
	out.State = res.State
	out.Metadata = env.Metadata
	out.Warnings = append(out.Warnings, res.Warnings...)

	for _, w := range out.Warnings {
		s.logger.Warn("load state", "user", out.UserID, "warning", w)
	}
	return out
}

// SaveState persists req locally, merges it with the remote mirror and
// writes the merged envelope back to both slots. Status listeners never run
// while the save holds the service lock, so they may call back into s.
func (s *Service) SaveState(ctx context.Context, req SaveRequest) SaveResult {
	s.status.emit(func(st *Status) {
		st.Phase = PhaseSyncing
		st.Error = ""
	})

	var pending []func()
	defer func() {
		for _, notify := range pending {
			notify()
		}
	}()
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res := s.save(ctx, req, func(patch func(*Status)) {
		pending = append(pending, s.status.update(patch))
	})
	s.metrics.ObserveSave(string(res.Phase), time.Since(start).Seconds())
	return res
}

// save runs one round trip under s.mu. Status transitions go through
// transition and are delivered once the lock is released.
func (s *Service) save(ctx context.Context, req SaveRequest, transition func(func(*Status))) SaveResult {
	fail := func(err error) SaveResult {
		s.logger.Error("save state", "phase", PhaseError, "error", err)
		transition(func(st *Status) {
			st.Phase = PhaseError
			st.Error = err.Error()
		})
		return SaveResult{State: req.State, Metadata: req.Metadata, Phase: PhaseError, Err: err}
	}

	userID, err := s.currentUser(ctx)
	if err != nil {
		return fail(err)
	}

	localUpdatedAt := merge.NextUpdatedAt(req.Metadata.UpdatedAt, req.State, req.PreviousState, s.now())
	localMeta := models.Metadata{UpdatedAt: localUpdatedAt, LastSyncedAt: req.Metadata.LastSyncedAt}
	if err := s.write(ctx, s.local, storage.LocalDataKey, userID, req.State, localMeta); err != nil {
		return fail(fmt.Errorf("writing local slot: %w", err))
	}

	remoteKey := storage.RemoteKey(userID)
	remoteEnv, warn, err := s.fetchEnvelope(ctx, s.remote, remoteKey)
	if err != nil {
		return fail(fmt.Errorf("reading remote slot: %w", err))
	}
	if warn != "" {
		s.logger.Warn("remote slot unreadable, treating as empty", "user", userID, "warning", warn)
	}
	remote := schema.Migrate(remoteEnv.State, s.catalog)

	merged, decisions := merge.MergeWithDecisions(req.State, remote.State, merge.Timestamps{
		Local:  localUpdatedAt,
		Remote: remoteEnv.Metadata.UpdatedAt,
	})
	for _, d := range decisions {
		s.metrics.ObserveMerge(d.Key, string(d.Side))
	}

	synced := s.now().UTC()
	meta := models.Metadata{
		UpdatedAt:    merge.MaxTimestamps(localUpdatedAt, remoteEnv.Metadata.UpdatedAt),
		LastSyncedAt: &synced,
	}
	if err := s.write(ctx, s.remote, remoteKey, userID, merged, meta); err != nil {
		return fail(fmt.Errorf("writing remote slot: %w", err))
	}
	if err := s.write(ctx, s.local, storage.LocalDataKey, userID, merged, meta); err != nil {
		return fail(fmt.Errorf("writing local slot: %w", err))
	}

	phase := PhaseIdle
	if !merge.Equal(merged, req.State) {
		phase = PhaseConflict
	}
	transition(func(st *Status) {
		st.Phase = phase
		st.LastSyncedAt = &synced
	})
	s.logger.Info("state synced", "user", userID, "phase", phase, "sessions", len(merged.Sessions))
	return SaveResult{State: merged, Metadata: meta, Phase: phase}
}

// SubscribeSyncStatus calls fn with the current status right away and then
// on every transition until the returned func is called.
func (s *Service) SubscribeSyncStatus(fn func(Status)) func() {
	return s.status.subscribe(fn)
}

// Status returns the current sync status.
func (s *Service) Status() Status {
	return s.status.current()
}

// UserID returns the signed-in user, or storage.DefaultUserID.
func (s *Service) UserID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID(ctx)
}

// SetUser records the signed-in user. An empty id signs out.
func (s *Service) SetUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		if err := s.local.Delete(ctx, storage.AuthUserKey); err != nil {
			return fmt.Errorf("clearing user: %w", err)
		}
		return nil
	}
	if err := s.local.Set(ctx, storage.AuthUserKey, []byte(userID)); err != nil {
		return fmt.Errorf("storing user: %w", err)
	}
	return nil
}

func (s *Service) userID(ctx context.Context) string {
	id, err := s.currentUser(ctx)
	if err != nil {
		s.logger.Warn("reading signed-in user", "error", err)
		return storage.DefaultUserID
	}
	return id
}

func (s *Service) currentUser(ctx context.Context) (string, error) {
	raw, ok, err := s.local.Get(ctx, storage.AuthUserKey)
	if err != nil {
		return "", fmt.Errorf("reading user slot: %w", err)
	}
	id := strings.TrimSpace(string(raw))
	if !ok || id == "" {
		return storage.DefaultUserID, nil
	}
	return id, nil
}

// readEnvelope is fetchEnvelope for the load path, where I/O errors only
// degrade to defaults.
func (s *Service) readEnvelope(ctx context.Context, kv storage.KV, key string) (storedEnvelope, string) {
	env, warn, err := s.fetchEnvelope(ctx, kv, key)
	if err != nil {
		return storedEnvelope{}, fmt.Sprintf("reading %s: %v", key, err)
	}
	return env, warn
}

// fetchEnvelope returns the envelope in key. An absent or malformed value
// is an empty envelope; the warning says why.
func (s *Service) fetchEnvelope(ctx context.Context, kv storage.KV, key string) (storedEnvelope, string, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return storedEnvelope{}, "", err
	}
	if !ok || len(raw) == 0 {
		return storedEnvelope{}, "", nil
	}
	var env storedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return storedEnvelope{}, fmt.Sprintf("malformed envelope in %s: %v", key, err), nil
	}
	if string(env.State) == "null" {
		env.State = nil
	}
	return env, "", nil
}

func (s *Service) write(ctx context.Context, kv storage.KV, key, userID string, st models.State, meta models.Metadata) error {
	body, err := json.Marshal(models.Envelope{UserID: userID, State: st, Metadata: meta})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return kv.Set(ctx, key, body)
}
