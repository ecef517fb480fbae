package history

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/coocood/freecache"

	"github.com/nicoschmidtj/nicofit2/internal/models"
)

const (
	megabyte = 1024 * 1024
	// DefaultCacheSize is used when NewCache is given a non-positive size.
	DefaultCacheSize = 8 * megabyte
	cacheExpireSec   = 60 * 60
)

// Cache memoizes Build results. Entries are keyed by RevisionKey, so one
// cache can serve many users and any change to a log misses the old entries.
type Cache struct {
	fc       *freecache.Cache
	logger   *slog.Logger
	onLookup func(hit bool)
}

// NewCache creates a cache of roughly sizeBytes. freecache enforces a 512KB minimum.
func NewCache(sizeBytes int, logger *slog.Logger) *Cache {
	if sizeBytes <= 0 {
		sizeBytes = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{fc: freecache.NewCache(sizeBytes), logger: logger}
}

// OnLookup registers a callback invoked with the outcome of every lookup.
func (c *Cache) OnLookup(fn func(hit bool)) *Cache {
	c.onLookup = fn
	return c
}

func (c *Cache) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

// Build returns the memoized history for q, computing it on a miss.
func (c *Cache) Build(q Query) []models.HistoryPoint {
	q = q.normalized()
	rev := RevisionKey(q.Sessions)
	if rev == "" {
		c.observe(false)
		return Build(q)
	}
	key := []byte(c.key(rev, q))

	if data, err := c.fc.Get(key); err == nil {
		var points []models.HistoryPoint
		if err := json.Unmarshal(data, &points); err == nil {
			c.observe(true)
			return points
		}
		c.logger.Warn("discarding unreadable history cache entry", "exercise", q.ExerciseID)
	}

	c.observe(false)
	points := Build(q)
	data, err := json.Marshal(points)
	if err != nil {
		return points
	}
	if err := c.fc.Set(key, data, cacheExpireSec); err != nil {
		c.logger.Debug("history cache set failed", "exercise", q.ExerciseID, "error", err)
	}
	return points
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	return c.fc.HitCount(), c.fc.MissCount()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.fc.Clear()
}

func (c *Cache) key(rev string, q Query) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s",
		rev, q.ExerciseID, q.TargetSets, q.Weeks, q.Now.UTC().Format(models.DateLayout))
}

// RevisionKey identifies a session log by content: the session count and
// an xxhash of the encoded sessions. Logs that differ in any set get
// different keys. It returns "" when the log cannot be encoded, e.g. a
// NaN weight.
func RevisionKey(sessions []models.Session) string {
	d := xxhash.New()
	if err := json.NewEncoder(d).Encode(sessions); err != nil {
		return ""
	}
	return fmt.Sprintf("%d:%016x", len(sessions), d.Sum64())
}
