package database

// schemas maps database names to their full schema definition. Every
// statement is idempotent so Migrate can run at every startup.
var schemas = map[string]string{
	"history": `
CREATE TABLE IF NOT EXISTS daily_prices (
    ticker    TEXT NOT NULL,
    date      TEXT NOT NULL,          -- YYYY-MM-DD
    adj_close REAL NOT NULL,
    PRIMARY KEY (ticker, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);

CREATE TABLE IF NOT EXISTS assets (
    ticker      TEXT PRIMARY KEY,
    market      TEXT NOT NULL DEFAULT 'Other',
    last_synced INTEGER                -- unix seconds, NULL = never
);
`,

	"cache": `
CREATE TABLE IF NOT EXISTS report_cache (
    cache_key  TEXT PRIMARY KEY,       -- sha256 of tickers+weights+scope
    payload    BLOB NOT NULL,          -- msgpack-encoded report
    created_at INTEGER NOT NULL        -- unix seconds
);
`,
}
