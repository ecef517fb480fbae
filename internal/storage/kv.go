// Package storage holds the key/value slot backends the sync service reads
// and writes: an in-memory map, SQLite and Badger for the local slot, and
// PostgreSQL, Redis or the mirror HTTP API for the remote one.
package storage

import (
	"context"
	"strings"
	"sync"
)

// Slot keys.
const (
	LocalDataKey     = "nicofit_data_v5"
	AuthUserKey      = "nicofit_auth_user"
	RemoteKeyPrefix  = "nicofit_remote_v1:"
	DefaultUserID    = "guest"
	remoteKeyMaxUser = 256
)

// RemoteKey returns the mirror slot key of a user.
func RemoteKey(userID string) string {
	return RemoteKeyPrefix + userID
}

// UserFromRemoteKey extracts the user id from a mirror slot key.
func UserFromRemoteKey(key string) (string, bool) {
	user, ok := strings.CutPrefix(key, RemoteKeyPrefix)
	if !ok || user == "" || len(user) > remoteKeyMaxUser {
		return "", false
	}
	return user, true
}

// KV is a byte-slot store. Get reports absent keys with ok=false and a nil
// error; only I/O failures are errors.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryKV is a KV held in process memory.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ KV = (*MemoryKV)(nil)

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string][]byte{}}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
