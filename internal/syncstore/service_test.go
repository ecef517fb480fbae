package syncstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/metrics"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/storage"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Exercise{
		{ID: "press-banca", Name: "Press banca", Muscles: []string{"pecho"}},
		{ID: "sentadilla", Name: "Sentadilla", Muscles: []string{"pierna"}},
	}, map[string][]string{
		"a": {"press-banca"},
		"b": {"sentadilla"},
	})
}

func newService(t *testing.T, local, remote storage.KV) (*Service, *metrics.Manager) {
	t.Helper()
	m := metrics.NewTestManager()
	svc, err := New(Config{
		Local:   local,
		Remote:  remote,
		Catalog: testCatalog(),
		Now:     func() time.Time { return fixedNow },
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: m,
	})
	require.NoError(t, err)
	return svc, m
}

func session(id, date string) models.Session {
	return models.Session{ID: id, Type: models.SessionStrength, DateISO: date}
}

func baseState() models.State {
	return models.DefaultState()
}

func putEnvelope(t *testing.T, kv storage.KV, key string, env models.Envelope) {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), key, body))
}

func getEnvelope(t *testing.T, kv storage.KV, key string) models.Envelope {
	t.Helper()
	raw, ok, err := kv.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "slot %s is empty", key)
	var env models.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func sessionIDs(st models.State) []string {
	ids := make([]string, 0, len(st.Sessions))
	for _, s := range st.Sessions {
		ids = append(ids, s.ID)
	}
	return ids
}

// failingKV wraps a MemoryKV and fails writes to one key.
type failingKV struct {
	*storage.MemoryKV
	failKey string
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

// TestNew_RequiresStorage verifies both slots must be provided.
func TestNew_RequiresStorage(t *testing.T) {
	_, err := New(Config{Local: storage.NewMemoryKV()})
	assert.Error(t, err)
}

// TestLoadState_Empty verifies an empty local slot yields defaults for the guest user.
func TestLoadState_Empty(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryKV(), storage.NewMemoryKV())
	got := svc.LoadState(context.Background())

	assert.Equal(t, storage.DefaultUserID, got.UserID)
	assert.Equal(t, models.CurrentVersion, got.State.Version)
	assert.Empty(t, got.State.Sessions)
	assert.Nil(t, got.Metadata.LastSyncedAt)
	assert.Empty(t, got.Warnings)
}

// TestLoadState_MigratesV4 verifies a v4 blob is upgraded to the routine index on load.
func TestLoadState_MigratesV4(t *testing.T) {
	local := storage.NewMemoryKV()
	raw := `{"userId":"guest","state":{"version":4,"sessions":[],
		"routines":[{"name":"A","exercises":[{"name":"Press banca","mode":"reps","targetSets":3,"targetReps":8}]}]},
		"metadata":{"updatedAt":{}}}`
	require.NoError(t, local.Set(context.Background(), storage.LocalDataKey, []byte(raw)))

	svc, _ := newService(t, local, storage.NewMemoryKV())
	got := svc.LoadState(context.Background())

	assert.Equal(t, 5, got.State.Version)
	require.NotEmpty(t, got.State.UserRoutinesIndex)
	assert.Empty(t, got.State.Routines)
	assert.Contains(t, got.State.UserRoutinesIndex["a"], "press-banca")
}

// TestLoadState_CorruptEnvelope verifies a malformed slot is treated as absent.
func TestLoadState_CorruptEnvelope(t *testing.T) {
	local := storage.NewMemoryKV()
	require.NoError(t, local.Set(context.Background(), storage.LocalDataKey, []byte("{{{")))

	svc, _ := newService(t, local, storage.NewMemoryKV())
	got := svc.LoadState(context.Background())

	assert.Equal(t, models.CurrentVersion, got.State.Version)
	assert.Empty(t, got.State.Sessions)
	assert.NotEmpty(t, got.Warnings)
}

// TestLoadState_SignedInUser verifies the user id comes from the auth slot.
func TestLoadState_SignedInUser(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryKV(), storage.NewMemoryKV())
	require.NoError(t, svc.SetUser(context.Background(), " nico "))
	assert.Equal(t, "nico", svc.LoadState(context.Background()).UserID)

	require.NoError(t, svc.SetUser(context.Background(), ""))
	assert.Equal(t, storage.DefaultUserID, svc.UserID(context.Background()))
}

// TestSaveState_FirstSave verifies a save with no remote copy mirrors the
// local state, advances changed clocks and reports idle.
func TestSaveState_FirstSave(t *testing.T) {
	local, remote := storage.NewMemoryKV(), storage.NewMemoryKV()
	svc, m := newService(t, local, remote)

	prev := baseState()
	next := baseState()
	next.Sessions = []models.Session{session("s1", "2026-03-10T10:00:00Z")}

	res := svc.SaveState(context.Background(), SaveRequest{State: next, PreviousState: prev})
	require.NoError(t, res.Err)
	assert.Equal(t, PhaseIdle, res.Phase)
	assert.Equal(t, []string{"s1"}, sessionIDs(res.State))
	assert.Equal(t, fixedNow.UnixMilli(), res.Metadata.UpdatedAt.Sessions)
	assert.Zero(t, res.Metadata.UpdatedAt.ProfileByExerciseID)
	require.NotNil(t, res.Metadata.LastSyncedAt)
	assert.True(t, res.Metadata.LastSyncedAt.Equal(fixedNow))

	localEnv := getEnvelope(t, local, storage.LocalDataKey)
	remoteEnv := getEnvelope(t, remote, storage.RemoteKey(storage.DefaultUserID))
	assert.Equal(t, storage.DefaultUserID, remoteEnv.UserID)
	assert.Equal(t, sessionIDs(localEnv.State), sessionIDs(remoteEnv.State))
	assert.True(t, localEnv.Metadata.LastSyncedAt.Equal(*remoteEnv.Metadata.LastSyncedAt))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterSyncSaves.WithLabelValues("idle")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterMergeSides.WithLabelValues(models.KeySessions, "local")))
}

// TestSaveState_NewerRemoteEntitiesWin replays a two-device conflict: this
// device logged a session while the other edited profile and routines later.
func TestSaveState_NewerRemoteEntitiesWin(t *testing.T) {
	local, remote := storage.NewMemoryKV(), storage.NewMemoryKV()
	svc, _ := newService(t, local, remote)

	remoteState := baseState()
	remoteState.Sessions = []models.Session{session("s-remote", "2026-03-01T10:00:00Z")}
	remoteState.ProfileByExerciseID = models.ExerciseProfile{"ex1": {Last: &models.LastSet{WeightKg: 60, Reps: 8}}}
	remoteState.UserRoutinesIndex = models.RoutineIndex{"a": {"press-banca"}}
	putEnvelope(t, remote, storage.RemoteKey(storage.DefaultUserID), models.Envelope{
		State:    remoteState,
		Metadata: models.Metadata{UpdatedAt: models.UpdateTimestamps{Sessions: 50, ProfileByExerciseID: 100, UserRoutinesIndex: 100}},
	})

	prev := baseState()
	prev.ProfileByExerciseID = models.ExerciseProfile{"ex2": {Last: &models.LastSet{WeightKg: 40, Reps: 10}}}
	prev.UserRoutinesIndex = models.RoutineIndex{"b": {"sentadilla"}}
	next := prev
	next.Sessions = []models.Session{session("s-local", "2026-03-10T10:00:00Z")}

	res := svc.SaveState(context.Background(), SaveRequest{
		State:         next,
		PreviousState: prev,
		Metadata:      models.Metadata{UpdatedAt: models.UpdateTimestamps{Sessions: 200, ProfileByExerciseID: 10, UserRoutinesIndex: 10}},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, PhaseConflict, res.Phase)

	assert.Equal(t, []string{"s-local"}, sessionIDs(res.State))
	assert.Contains(t, res.State.ProfileByExerciseID, "ex1")
	assert.NotContains(t, res.State.ProfileByExerciseID, "ex2")
	assert.Equal(t, models.RoutineIndex{"a": {"press-banca"}}, res.State.UserRoutinesIndex)

	assert.Equal(t, models.UpdateTimestamps{
		Sessions:            fixedNow.UnixMilli(),
		ProfileByExerciseID: 100,
		UserRoutinesIndex:   100,
	}, res.Metadata.UpdatedAt)
	assert.Equal(t, PhaseConflict, svc.Status().Phase)
}

// TestSaveState_EqualClocksUnion verifies equal clocks keep entries from both copies.
func TestSaveState_EqualClocksUnion(t *testing.T) {
	local, remote := storage.NewMemoryKV(), storage.NewMemoryKV()
	svc, _ := newService(t, local, remote)
	clocks := models.UpdateTimestamps{Sessions: 5, ProfileByExerciseID: 5, UserRoutinesIndex: 5}

	remoteState := baseState()
	remoteState.Sessions = []models.Session{session("s-remote", "2026-03-01T10:00:00Z")}
	remoteState.ProfileByExerciseID = models.ExerciseProfile{"ex1": {Last: &models.LastSet{WeightKg: 60, Reps: 8}}}
	remoteState.UserRoutinesIndex = models.RoutineIndex{"a": {"press-banca"}}
	putEnvelope(t, remote, storage.RemoteKey(storage.DefaultUserID), models.Envelope{
		State:    remoteState,
		Metadata: models.Metadata{UpdatedAt: clocks},
	})

	st := baseState()
	st.Sessions = []models.Session{session("s-local", "2026-03-02T10:00:00Z")}
	st.ProfileByExerciseID = models.ExerciseProfile{"ex2": {Last: &models.LastSet{WeightKg: 40, Reps: 10}}}
	st.UserRoutinesIndex = models.RoutineIndex{"b": {"sentadilla"}}

	res := svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: st, Metadata: models.Metadata{UpdatedAt: clocks}})
	require.NoError(t, res.Err)
	assert.Equal(t, PhaseConflict, res.Phase)
	assert.Equal(t, []string{"s-local", "s-remote"}, sessionIDs(res.State))
	assert.Contains(t, res.State.ProfileByExerciseID, "ex1")
	assert.Contains(t, res.State.ProfileByExerciseID, "ex2")
	assert.Contains(t, res.State.UserRoutinesIndex, "a")
	assert.Contains(t, res.State.UserRoutinesIndex, "b")
	assert.Equal(t, clocks, res.Metadata.UpdatedAt)

	// A second save of the merged state is a no-op merge.
	again := svc.SaveState(context.Background(), SaveRequest{State: res.State, PreviousState: res.State, Metadata: res.Metadata})
	require.NoError(t, again.Err)
	assert.Equal(t, PhaseIdle, again.Phase)
	assert.Equal(t, sessionIDs(res.State), sessionIDs(again.State))
}

// TestSaveState_CorruptRemote verifies a malformed remote slot is overwritten.
func TestSaveState_CorruptRemote(t *testing.T) {
	local, remote := storage.NewMemoryKV(), storage.NewMemoryKV()
	require.NoError(t, remote.Set(context.Background(), storage.RemoteKey(storage.DefaultUserID), []byte("nope")))
	svc, _ := newService(t, local, remote)

	st := baseState()
	st.Sessions = []models.Session{session("s1", "2026-03-10T10:00:00Z")}
	res := svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: baseState()})
	require.NoError(t, res.Err)
	assert.Equal(t, PhaseIdle, res.Phase)
	assert.Equal(t, []string{"s1"}, sessionIDs(getEnvelope(t, remote, storage.RemoteKey(storage.DefaultUserID)).State))
}

// TestSaveState_RemoteWriteFails verifies a failed save reports an error,
// returns the request unchanged and keeps the local write.
func TestSaveState_RemoteWriteFails(t *testing.T) {
	local := storage.NewMemoryKV()
	remote := &failingKV{MemoryKV: storage.NewMemoryKV(), failKey: storage.RemoteKey(storage.DefaultUserID)}
	svc, m := newService(t, local, remote)

	st := baseState()
	st.Sessions = []models.Session{session("s1", "2026-03-10T10:00:00Z")}
	meta := models.Metadata{UpdatedAt: models.UpdateTimestamps{Sessions: 7}}

	res := svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: baseState(), Metadata: meta})
	require.Error(t, res.Err)
	assert.Equal(t, PhaseError, res.Phase)
	assert.Equal(t, meta, res.Metadata)
	assert.Equal(t, []string{"s1"}, sessionIDs(res.State))

	status := svc.Status()
	assert.Equal(t, PhaseError, status.Phase)
	assert.Contains(t, status.Error, "disk full")

	localEnv := getEnvelope(t, local, storage.LocalDataKey)
	assert.Equal(t, []string{"s1"}, sessionIDs(localEnv.State))
	assert.Nil(t, localEnv.Metadata.LastSyncedAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterSyncSaves.WithLabelValues("error")))
}

// TestSaveState_ClearsError verifies a successful save clears a previous error.
func TestSaveState_ClearsError(t *testing.T) {
	remote := &failingKV{MemoryKV: storage.NewMemoryKV(), failKey: storage.RemoteKey(storage.DefaultUserID)}
	svc, _ := newService(t, storage.NewMemoryKV(), remote)

	st := baseState()
	svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: st})
	require.Equal(t, PhaseError, svc.Status().Phase)

	remote.failKey = ""
	res := svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: st})
	require.NoError(t, res.Err)
	assert.Equal(t, PhaseIdle, svc.Status().Phase)
	assert.Empty(t, svc.Status().Error)
}

// TestSubscribeSyncStatus verifies the immediate callback, the transitions of
// a save, and that unsubscribing stops delivery.
func TestSubscribeSyncStatus(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryKV(), storage.NewMemoryKV())

	var mu sync.Mutex
	var phases []Phase
	unsubscribe := svc.SubscribeSyncStatus(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})
	require.Equal(t, []Phase{PhaseIdle}, phases)

	st := baseState()
	svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: st})
	assert.Equal(t, []Phase{PhaseIdle, PhaseSyncing, PhaseIdle}, phases)

	unsubscribe()
	unsubscribe()
	svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: st})
	assert.Len(t, phases, 3)
}

// TestSubscribeSyncStatus_ReentrantListener verifies a listener may call back
// into the service during a save without deadlocking.
func TestSubscribeSyncStatus_ReentrantListener(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryKV(), storage.NewMemoryKV())
	ctx := context.Background()
	var seen []Phase
	var users []string
	svc.SubscribeSyncStatus(func(st Status) {
		seen = append(seen, st.Phase)
		users = append(users, svc.UserID(ctx))
		_ = svc.LoadState(ctx)
	})

	done := make(chan SaveResult, 1)
	go func() {
		st := baseState()
		done <- svc.SaveState(ctx, SaveRequest{State: st, PreviousState: st})
	}()

	select {
	case res := <-done:
		require.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("SaveState did not return while a listener called back into the service")
	}
	assert.Equal(t, []Phase{PhaseIdle, PhaseSyncing, PhaseIdle}, seen)
	assert.Equal(t, []string{storage.DefaultUserID, storage.DefaultUserID, storage.DefaultUserID}, users)
	assert.Equal(t, PhaseIdle, svc.Status().Phase)
}

// TestSaveState_PerUserRemote verifies each user has its own mirror slot.
func TestSaveState_PerUserRemote(t *testing.T) {
	local, remote := storage.NewMemoryKV(), storage.NewMemoryKV()
	svc, _ := newService(t, local, remote)
	require.NoError(t, svc.SetUser(context.Background(), "ana"))

	st := baseState()
	st.Sessions = []models.Session{session("s1", "2026-03-10T10:00:00Z")}
	res := svc.SaveState(context.Background(), SaveRequest{State: st, PreviousState: baseState()})
	require.NoError(t, res.Err)

	_, ok, err := remote.Get(context.Background(), storage.RemoteKey("ana"))
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = remote.Get(context.Background(), storage.RemoteKey(storage.DefaultUserID))
	assert.False(t, ok)
	assert.Equal(t, "ana", getEnvelope(t, local, storage.LocalDataKey).UserID)
}
