package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the behavior every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok, "absent key reported present")

	require.NoError(t, kv.Set(ctx, LocalDataKey, []byte(`{"a":1}`)))
	got, ok, err := kv.Get(ctx, LocalDataKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(got))

	require.NoError(t, kv.Set(ctx, LocalDataKey, []byte(`{"a":2}`)))
	got, _, err = kv.Get(ctx, LocalDataKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	require.NoError(t, kv.Delete(ctx, LocalDataKey))
	_, ok, err = kv.Get(ctx, LocalDataKey)
	require.NoError(t, err)
	assert.False(t, ok, "deleted key still present")

	require.NoError(t, kv.Delete(ctx, "never-set"))
}

// TestMemoryKV covers the in-memory backend and that stored bytes are copied.
func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	exerciseKV(t, kv)

	buf := []byte(`"x"`)
	require.NoError(t, kv.Set(context.Background(), "k", buf))
	buf[1] = 'y'
	got, _, _ := kv.Get(context.Background(), "k")
	assert.Equal(t, `"x"`, string(got))
}

// TestSQLiteKV covers the SQLite backend and persistence across reopen.
func TestSQLiteKV(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenSQLite(dir)
	require.NoError(t, err)
	exerciseKV(t, kv)

	require.NoError(t, kv.Set(context.Background(), AuthUserKey, []byte("nico")))
	require.NoError(t, kv.Close())

	reopened, err := OpenSQLite(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, ok, err := reopened.Get(context.Background(), AuthUserKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nico", string(got))
}

// TestBadgerKV covers the Badger backend in memory.
func TestBadgerKV(t *testing.T) {
	kv, err := OpenBadger("", nil)
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}

// TestRemoteKey verifies the mirror key round-trip.
func TestRemoteKey(t *testing.T) {
	key := RemoteKey("nico")
	assert.Equal(t, "nicofit_remote_v1:nico", key)

	user, ok := UserFromRemoteKey(key)
	assert.True(t, ok)
	assert.Equal(t, "nico", user)

	_, ok = UserFromRemoteKey(LocalDataKey)
	assert.False(t, ok)
	_, ok = UserFromRemoteKey(RemoteKeyPrefix)
	assert.False(t, ok)
}

// TestOpen_UnknownBackend verifies backend names are checked.
func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "dynamo", Options{})
	assert.Error(t, err)

	kv, err := Open(context.Background(), BackendSQLite, Options{Path: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, kv.Close())
}

// mirrorStub is a minimal mirror endpoint backed by MemoryKV.
func mirrorStub(t *testing.T, apiKey string, failures *atomic.Int32) *httptest.Server {
	t.Helper()
	mem := NewMemoryKV()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if failures != nil && failures.Load() > 0 {
			failures.Add(-1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		key := r.URL.Path[len("/api/v1/mirror/"):]
		switch r.Method {
		case http.MethodGet:
			v, ok, _ := mem.Get(r.Context(), key)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(v)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			_ = mem.Set(r.Context(), key, body)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			_ = mem.Delete(r.Context(), key)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
}

// TestHTTPKV covers the mirror client against a stub server.
func TestHTTPKV(t *testing.T) {
	srv := mirrorStub(t, "secret", nil)
	defer srv.Close()

	kv := NewHTTPKV(srv.URL+"/", "secret").WithBackoff(time.Millisecond)
	exerciseKV(t, kv)
}

// TestHTTPKV_RetriesServerErrors verifies 5xx responses are retried.
func TestHTTPKV_RetriesServerErrors(t *testing.T) {
	var failures atomic.Int32
	failures.Store(2)
	srv := mirrorStub(t, "", &failures)
	defer srv.Close()

	kv := NewHTTPKV(srv.URL, "").WithBackoff(time.Millisecond)
	require.NoError(t, kv.Set(context.Background(), RemoteKey("u"), []byte(`{}`)))

	failures.Store(3)
	err := kv.Set(context.Background(), RemoteKey("u"), []byte(`{}`))
	assert.ErrorContains(t, err, "after 3 attempts")
}

// TestHTTPKV_Unauthorized verifies 4xx responses fail without retry.
func TestHTTPKV_Unauthorized(t *testing.T) {
	srv := mirrorStub(t, "secret", nil)
	defer srv.Close()

	kv := NewHTTPKV(srv.URL, "wrong").WithBackoff(time.Hour)
	_, _, err := kv.Get(context.Background(), RemoteKey("u"))
	assert.ErrorContains(t, err, "401")
}

// TestRedisKV runs against a live server when NICOFIT_TEST_REDIS_URL is set.
func TestRedisKV(t *testing.T) {
	url := os.Getenv("NICOFIT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("NICOFIT_TEST_REDIS_URL not set")
	}
	kv, err := OpenRedis(context.Background(), url)
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}

// TestPostgresKV runs against a live database when NICOFIT_TEST_DATABASE_URL is set.
func TestPostgresKV(t *testing.T) {
	dsn := os.Getenv("NICOFIT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NICOFIT_TEST_DATABASE_URL not set")
	}
	require.NoError(t, RunMigrations(dsn, "../../migrations"))
	db, err := New(context.Background(), dsn)
	require.NoError(t, err)
	defer db.Close()
	exerciseKV(t, db)

	require.NoError(t, db.Set(context.Background(), RemoteKey("stats-user"), []byte(`{}`)))
	stats, err := db.GetMirrorStats(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalUsers, int64(1))
}
