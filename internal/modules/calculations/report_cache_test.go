package calculations

import (
	"database/sql"
	"math"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/rebalancer/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) *ReportCache {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// each pool connection would get its own empty in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE report_cache (
			cache_key  TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return NewReportCache(db, ttl, zerolog.Nop())
}

func sampleReport() *domain.Report {
	record := domain.UnavailableMetrics()
	record.TotalReturn = 0.42
	return &domain.Report{
		Scope: domain.MutualRange,
		Entries: []domain.ReportEntry{
			{Key: domain.ReportKey{Kind: domain.KindPortfolio, Frequency: domain.Monthly}, Metrics: record},
		},
		Warnings: []string{"BBB: 5 valid observations, need at least 20"},
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key(domain.Weights{"AAA": 0.5, "BBB": 0.5}, []string{"SPY", "QQQ"}, domain.MutualRange)
	b := Key(domain.Weights{"BBB": 0.5, "AAA": 0.5}, []string{"QQQ", "SPY"}, domain.MutualRange)
	assert.Equal(t, a, b, "key is independent of map and slice order")

	c := Key(domain.Weights{"AAA": 0.5, "BBB": 0.5}, []string{"SPY", "QQQ"}, domain.MaxRange)
	assert.NotEqual(t, a, c, "scope is part of the key")

	d := Key(domain.Weights{"AAA": 0.6, "BBB": 0.4}, []string{"SPY", "QQQ"}, domain.MutualRange)
	assert.NotEqual(t, a, d, "weights are part of the key")
}

func TestCache_RoundTripPreservesNaN(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	key := Key(domain.Weights{"AAA": 1.0}, nil, domain.MutualRange)

	require.NoError(t, cache.Put(key, sampleReport()))

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, domain.MutualRange, got.Scope)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, 0.42, got.Entries[0].Metrics.TotalReturn)
	// NaN must survive the codec; this is why the payload is not JSON.
	assert.True(t, math.IsNaN(got.Entries[0].Metrics.Sharpe))
	assert.Equal(t, []string{"BBB: 5 valid observations, need at least 20"}, got.Warnings)
}

func TestCache_MissAndExpiry(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	_, ok := cache.Get("no-such-key")
	assert.False(t, ok)

	key := Key(domain.Weights{"AAA": 1.0}, nil, domain.MaxRange)
	require.NoError(t, cache.Put(key, sampleReport()))

	// Backdate the entry past the freshness window.
	_, err := cache.db.Exec("UPDATE report_cache SET created_at = ?", time.Now().Add(-2*time.Hour).Unix())
	require.NoError(t, err)

	_, ok = cache.Get(key)
	assert.False(t, ok)

	deleted, err := cache.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestCache_ReplacesExistingEntry(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	key := Key(domain.Weights{"AAA": 1.0}, nil, domain.MutualRange)

	require.NoError(t, cache.Put(key, sampleReport()))
	updated := sampleReport()
	updated.Entries[0].Metrics.TotalReturn = 0.99
	require.NoError(t, cache.Put(key, updated))

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, 0.99, got.Entries[0].Metrics.TotalReturn)
}
