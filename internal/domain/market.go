package domain

import "strings"

// Market classifies where an asset trades. The set is closed; anything the
// classifier cannot place lands in MarketOther.
type Market string

const (
	MarketASX    Market = "ASX"
	MarketCrypto Market = "Crypto"
	MarketUS     Market = "US"
	MarketOther  Market = "Other"
)

// knownCoins covers bare crypto symbols that appear without a currency-pair
// suffix in weights configurations.
var knownCoins = map[string]bool{
	"BTC": true,
	"ETH": true,
	"SOL": true,
	"ADA": true,
	"XRP": true,
	"DOT": true,
}

// Classify maps a ticker symbol to its market.
func Classify(ticker string) Market {
	upper := strings.ToUpper(strings.TrimSpace(ticker))
	switch {
	case upper == "":
		return MarketOther
	case strings.HasSuffix(upper, ".AX"):
		return MarketASX
	case strings.HasSuffix(upper, "-USD") || strings.HasSuffix(upper, "USDT") || knownCoins[upper]:
		return MarketCrypto
	case isPlainSymbol(upper):
		return MarketUS
	}
	return MarketOther
}

// isPlainSymbol reports whether the ticker is a bare US-style symbol:
// 1-5 letters with no exchange suffix.
func isPlainSymbol(ticker string) bool {
	if len(ticker) == 0 || len(ticker) > 5 {
		return false
	}
	for _, r := range ticker {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
