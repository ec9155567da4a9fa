package universe

import (
	"database/sql"
	"math"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/rebalancer/internal/domain"
)

func newTestHistoryDB(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// each pool connection would get its own empty in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			ticker    TEXT NOT NULL,
			date      TEXT NOT NULL,
			adj_close REAL NOT NULL,
			PRIMARY KEY (ticker, date)
		);
		CREATE TABLE assets (
			ticker      TEXT PRIMARY KEY,
			market      TEXT NOT NULL DEFAULT 'Other',
			last_synced INTEGER
		);
	`)
	require.NoError(t, err)

	return NewHistoryDB(db, zerolog.Nop())
}

func TestUpsertAndGetDailyPrices(t *testing.T) {
	h := newTestHistoryDB(t)

	err := h.UpsertDailyPrices("VAS.AX", []DailyPrice{
		{Date: "2024-01-03", AdjClose: 101.5},
		{Date: "2024-01-02", AdjClose: 100.0},
		{Date: "2024-01-04", AdjClose: math.NaN()}, // dropped
	})
	require.NoError(t, err)

	prices, err := h.GetDailyPrices("VAS.AX", 0)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "2024-01-02", prices[0].Date, "oldest first")
	assert.Equal(t, 100.0, prices[0].AdjClose)
	assert.Equal(t, "2024-01-03", prices[1].Date)

	// Re-upserting the same date replaces the value.
	err = h.UpsertDailyPrices("VAS.AX", []DailyPrice{{Date: "2024-01-02", AdjClose: 99.0}})
	require.NoError(t, err)
	prices, err = h.GetDailyPrices("VAS.AX", 0)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 99.0, prices[0].AdjClose)
}

func TestLoadPriceTable_UnionIndexWithNaNGaps(t *testing.T) {
	h := newTestHistoryDB(t)

	require.NoError(t, h.UpsertDailyPrices("AAA", []DailyPrice{
		{Date: "2024-01-02", AdjClose: 10},
		{Date: "2024-01-03", AdjClose: 11},
		{Date: "2024-01-04", AdjClose: 12},
	}))
	require.NoError(t, h.UpsertDailyPrices("BBB", []DailyPrice{
		{Date: "2024-01-03", AdjClose: 20},
		{Date: "2024-01-05", AdjClose: 21},
	}))

	table, err := h.LoadPriceTable([]string{"AAA", "BBB"})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, table.Dates)
	assert.Equal(t, []string{"AAA", "BBB"}, table.Tickers)

	assert.Equal(t, 10.0, table.Data["AAA"][0])
	assert.True(t, math.IsNaN(table.Data["AAA"][3]), "AAA has no 01-05 observation")
	assert.True(t, math.IsNaN(table.Data["BBB"][0]), "BBB starts later")
	assert.Equal(t, 20.0, table.Data["BBB"][1])
	assert.True(t, math.IsNaN(table.Data["BBB"][2]))
	assert.Equal(t, 21.0, table.Data["BBB"][3])
}

func TestLoadPriceTable_Empty(t *testing.T) {
	h := newTestHistoryDB(t)

	table, err := h.LoadPriceTable(nil)
	require.NoError(t, err)
	assert.True(t, table.Empty())

	table, err = h.LoadPriceTable([]string{"GHOST"})
	require.NoError(t, err)
	assert.Empty(t, table.Dates)
}

func TestListAssets(t *testing.T) {
	h := newTestHistoryDB(t)

	require.NoError(t, h.RegisterAsset("BTC-USD"))
	require.NoError(t, h.UpsertDailyPrices("VAS.AX", []DailyPrice{
		{Date: "2024-01-02", AdjClose: 100},
		{Date: "2024-01-03", AdjClose: 101},
	}))

	assets, err := h.ListAssets()
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "BTC-USD", assets[0].Ticker)
	assert.Equal(t, domain.MarketCrypto, assets[0].Market)
	assert.Equal(t, 0, assets[0].Observations)
	assert.Nil(t, assets[0].LastSynced)

	assert.Equal(t, "VAS.AX", assets[1].Ticker)
	assert.Equal(t, domain.MarketASX, assets[1].Market)
	assert.Equal(t, 2, assets[1].Observations)
	assert.Equal(t, "2024-01-02", assets[1].FirstDate)
	assert.Equal(t, "2024-01-03", assets[1].LastDate)
	assert.NotNil(t, assets[1].LastSynced)
}
