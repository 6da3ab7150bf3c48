package reportcache

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/analytics/model"
)

type countingAnalyzer struct {
	calls int
	err   error
}

func (a *countingAnalyzer) Analyze(_ context.Context, snap analytics.Snapshot) (*analytics.Report, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &analytics.Report{Now: snap.Now}, nil
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) RecordCacheHit(string)  { o.hits++ }
func (o *countingObserver) RecordCacheMiss(string) { o.misses++ }

func snapshot(now time.Time) analytics.Snapshot {
	return analytics.Snapshot{
		Habits: []model.Habit{{ID: "run", Name: "Run", Polarity: model.PolarityGood, Mode: model.ModeBinary}},
		Logs:   []model.LogEntry{{HabitID: "run", Date: "2024-06-14"}},
		Now:    now,
	}
}

func TestFingerprint(t *testing.T) {
	now := time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)

	a, err := Fingerprint(snapshot(now))
	require.NoError(t, err)
	b, err := Fingerprint(snapshot(now))
	require.NoError(t, err)
	c, err := Fingerprint(snapshot(now.Add(time.Hour)))
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCache_Analyze(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)
	analyzer := &countingAnalyzer{}
	observer := &countingObserver{}
	cache := New(analyzer, 8, time.Minute, observer, nil)

	first, err := cache.Analyze(ctx, "alice", snapshot(now))
	require.NoError(t, err)
	second, err := cache.Analyze(ctx, "alice", snapshot(now))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, analyzer.calls)

	// Same snapshot content under another user is computed separately.
	_, err = cache.Analyze(ctx, "bob", snapshot(now))
	require.NoError(t, err)
	assert.Equal(t, 2, analyzer.calls)
	assert.Equal(t, 1, observer.hits)
	assert.Equal(t, 2, observer.misses)

	cache.InvalidateUser("alice")
	assert.Equal(t, 1, cache.Size())
	_, err = cache.Analyze(ctx, "alice", snapshot(now))
	require.NoError(t, err)
	assert.Equal(t, 3, analyzer.calls)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	analyzer := &countingAnalyzer{err: errors.Wrap(analytics.ErrInvalidSnapshot, "reference time is not set")}
	cache := New(analyzer, 8, time.Minute, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := cache.Analyze(context.Background(), "alice", analytics.Snapshot{})
		assert.True(t, analytics.IsInvalidSnapshot(err))
	}
	assert.Equal(t, 2, analyzer.calls)
	assert.Zero(t, cache.Size())
}
