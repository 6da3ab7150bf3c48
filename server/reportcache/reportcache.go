// Package reportcache reuses analytics reports of identical snapshots.
package reportcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/analytics"
)

// CacheType is the metrics label of the report cache.
const CacheType = "report"

// Analyzer computes a report from a snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, snap analytics.Snapshot) (*analytics.Report, error)
}

// Observer counts cache hits and misses.
type Observer interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// Cache wraps an Analyzer and memoizes reports by user and snapshot fingerprint.
type Cache struct {
	analyzer Analyzer
	lru      *LRUCache[*analytics.Report]
	observer Observer
	logger   *slog.Logger
}

// New creates a report cache in front of analyzer. observer may be nil.
func New(analyzer Analyzer, capacity int, ttl time.Duration, observer Observer, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		analyzer: analyzer,
		lru:      NewLRUCache[*analytics.Report](capacity, ttl),
		observer: observer,
		logger:   logger,
	}
}

// Fingerprint is the hex SHA-256 of the JSON encoding of the snapshot.
// Snapshots with equal content share a fingerprint.
func Fingerprint(snap analytics.Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode snapshot")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Analyze returns the cached report of an identical snapshot of the same user,
// or computes and caches a new one. Failed analyses are not cached.
func (c *Cache) Analyze(ctx context.Context, userID string, snap analytics.Snapshot) (*analytics.Report, error) {
	fp, err := Fingerprint(snap)
	if err != nil {
		return nil, err
	}
	key := userID + ":" + fp

	if report, ok := c.lru.Get(key); ok {
		c.record(true)
		return report, nil
	}
	c.record(false)

	report, err := c.analyzer.Analyze(ctx, snap)
	if err != nil {
		return nil, err
	}
	c.lru.Set(key, report, 0)
	return report, nil
}

// InvalidateUser drops every cached report of the user.
func (c *Cache) InvalidateUser(userID string) {
	if n := c.lru.Invalidate(userID + ":*"); n > 0 {
		c.logger.Debug("ReportCache: invalidated", "user", userID, "entries", n)
	}
}

// Size returns the number of cached reports.
func (c *Cache) Size() int {
	return c.lru.Size()
}

func (c *Cache) record(hit bool) {
	if c.observer == nil {
		return
	}
	if hit {
		c.observer.RecordCacheHit(CacheType)
	} else {
		c.observer.RecordCacheMiss(CacheType)
	}
}
