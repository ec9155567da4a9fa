// Package calculations caches computed analysis reports so repeated requests
// for an unchanged portfolio do not rerun the full pipeline.
package calculations

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mkarlis/rebalancer/internal/domain"
)

// ReportCache stores serialized reports in the cache database with a
// freshness window. Reports carry NaN sentinels, so the payload is msgpack
// rather than JSON.
type ReportCache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewReportCache creates a report cache with the given freshness window.
func NewReportCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *ReportCache {
	return &ReportCache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "report_cache").Logger(),
	}
}

// Key derives the cache key for a portfolio/scope combination. Tickers are
// sorted so map iteration order cannot produce distinct keys for the same
// portfolio.
func Key(weights domain.Weights, benchmarks []string, scope domain.Scope) string {
	h := sha256.New()
	for _, ticker := range weights.Tickers() {
		fmt.Fprintf(h, "%s:%.9f;", ticker, weights[ticker])
	}
	sorted := append([]string(nil), benchmarks...)
	sort.Strings(sorted)
	for _, b := range sorted {
		fmt.Fprintf(h, "b=%s;", b)
	}
	fmt.Fprintf(h, "scope=%s", scope)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached report for a key, or (nil, false) when the entry is
// missing, stale, or unreadable. Cache failures are never fatal; the caller
// recomputes.
func (c *ReportCache) Get(key string) (*domain.Report, bool) {
	var payload []byte
	var createdAt int64
	err := c.db.QueryRow(
		"SELECT payload, created_at FROM report_cache WHERE cache_key = ?", key,
	).Scan(&payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("Report cache read failed")
		return nil, false
	}

	if time.Since(time.Unix(createdAt, 0)) > c.ttl {
		return nil, false
	}

	var report domain.Report
	if err := msgpack.Unmarshal(payload, &report); err != nil {
		c.log.Warn().Err(err).Msg("Report cache entry is unreadable, dropping it")
		_, _ = c.db.Exec("DELETE FROM report_cache WHERE cache_key = ?", key)
		return nil, false
	}

	return &report, true
}

// Put stores a report under a key, replacing any previous entry.
func (c *ReportCache) Put(key string, report *domain.Report) error {
	payload, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO report_cache (cache_key, payload, created_at)
		VALUES (?, ?, ?)
	`, key, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	c.log.Debug().Str("key", key[:12]).Int("bytes", len(payload)).Msg("Cached report")
	return nil
}

// Prune deletes entries older than the freshness window.
func (c *ReportCache) Prune() (int64, error) {
	cutoff := time.Now().Add(-c.ttl).Unix()
	res, err := c.db.Exec("DELETE FROM report_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune report cache: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		c.log.Info().Int64("deleted", deleted).Msg("Pruned stale report cache entries")
	}
	return deleted, nil
}
