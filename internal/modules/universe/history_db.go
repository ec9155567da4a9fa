// Package universe provides access to the tracked asset set and its
// historical price data.
package universe

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/database"
	"github.com/mkarlis/rebalancer/internal/domain"
)

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// DailyPrice is one adjusted-close observation.
type DailyPrice struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	AdjClose float64 `json:"adj_close"`
}

// Asset describes one tracked instrument.
type Asset struct {
	Ticker       string        `json:"ticker"`
	Market       domain.Market `json:"market"`
	LastSynced   *int64        `json:"last_synced,omitempty"`
	Observations int           `json:"observations"`
	FirstDate    string        `json:"first_date,omitempty"`
	LastDate     string        `json:"last_date,omitempty"`
}

// LoadPriceTable materializes a date-indexed price table for the given
// tickers. The date index is the union of all tickers' trading dates, sorted
// ascending; cells where a ticker has no observation are NaN.
func (h *HistoryDB) LoadPriceTable(tickers []string) (domain.PriceTable, error) {
	table := domain.PriceTable{
		Tickers: append([]string(nil), tickers...),
		Data:    make(map[string][]float64, len(tickers)),
	}
	if len(tickers) == 0 {
		return table, nil
	}

	perTicker := make(map[string]map[string]float64, len(tickers))
	dateSet := make(map[string]struct{})

	for _, ticker := range tickers {
		prices, err := h.GetDailyPrices(ticker, 0)
		if err != nil {
			return domain.PriceTable{}, fmt.Errorf("failed to load prices for %s: %w", ticker, err)
		}
		byDate := make(map[string]float64, len(prices))
		for _, p := range prices {
			byDate[p.Date] = p.AdjClose
			dateSet[p.Date] = struct{}{}
		}
		perTicker[ticker] = byDate
	}

	table.Dates = make([]string, 0, len(dateSet))
	for date := range dateSet {
		table.Dates = append(table.Dates, date)
	}
	sort.Strings(table.Dates)

	for _, ticker := range tickers {
		byDate := perTicker[ticker]
		col := make([]float64, len(table.Dates))
		for i, date := range table.Dates {
			if price, ok := byDate[date]; ok {
				col[i] = price
			} else {
				col[i] = math.NaN()
			}
		}
		table.Data[ticker] = col
	}

	h.log.Debug().
		Int("tickers", len(tickers)).
		Int("dates", len(table.Dates)).
		Msg("Loaded price table")

	return table, nil
}

// GetDailyPrices fetches daily price data for a ticker, oldest first.
// limit 0 means no limit.
func (h *HistoryDB) GetDailyPrices(ticker string, limit int) ([]DailyPrice, error) {
	query := `
		SELECT date, adj_close
		FROM daily_prices
		WHERE ticker = ?
		ORDER BY date ASC
	`
	args := []interface{}{ticker}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Date, &p.AdjClose); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// UpsertDailyPrices writes price observations for a ticker in a single
// transaction, replacing any existing rows for the same dates, and stamps
// the asset's last_synced time.
func (h *HistoryDB) UpsertDailyPrices(ticker string, prices []DailyPrice) error {
	written := 0
	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO daily_prices (ticker, date, adj_close)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if math.IsNaN(p.AdjClose) || math.IsInf(p.AdjClose, 0) {
				continue
			}
			if _, err := stmt.Exec(ticker, p.Date, p.AdjClose); err != nil {
				return fmt.Errorf("failed to insert price for %s %s: %w", ticker, p.Date, err)
			}
			written++
		}

		now := time.Now().Unix()
		if _, err := tx.Exec(`
			INSERT INTO assets (ticker, market, last_synced)
			VALUES (?, ?, ?)
			ON CONFLICT(ticker) DO UPDATE SET last_synced = excluded.last_synced
		`, ticker, string(domain.Classify(ticker)), now); err != nil {
			return fmt.Errorf("failed to stamp asset sync time: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert prices for %s: %w", ticker, err)
	}

	h.log.Debug().Str("ticker", ticker).Int("rows", written).Msg("Upserted daily prices")
	return nil
}

// ListAssets returns every tracked asset with its observation summary,
// ordered by ticker.
func (h *HistoryDB) ListAssets() ([]Asset, error) {
	rows, err := h.db.Query(`
		SELECT a.ticker, a.market, a.last_synced,
		       COUNT(p.date), COALESCE(MIN(p.date), ''), COALESCE(MAX(p.date), '')
		FROM assets a
		LEFT JOIN daily_prices p ON p.ticker = a.ticker
		GROUP BY a.ticker
		ORDER BY a.ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		var market string
		var lastSynced sql.NullInt64
		if err := rows.Scan(&a.Ticker, &market, &lastSynced, &a.Observations, &a.FirstDate, &a.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Market = domain.Market(market)
		if lastSynced.Valid {
			a.LastSynced = &lastSynced.Int64
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// RegisterAsset ensures a ticker exists in the assets table with its
// classified market. Existing rows keep their sync timestamp.
func (h *HistoryDB) RegisterAsset(ticker string) error {
	_, err := h.db.Exec(`
		INSERT INTO assets (ticker, market) VALUES (?, ?)
		ON CONFLICT(ticker) DO NOTHING
	`, ticker, string(domain.Classify(ticker)))
	if err != nil {
		return fmt.Errorf("failed to register asset %s: %w", ticker, err)
	}
	return nil
}
