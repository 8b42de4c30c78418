package model

import "strings"

type InstrumentKind string

const (
	Market   InstrumentKind = "MARKET"
	Accruing InstrumentKind = "ACCRUING"
)

// AssetClass selects the quote source for MARKET instruments.
type AssetClass string

const (
	Crypto       AssetClass = "crypto"
	Equity       AssetClass = "equity"
	UnknownClass AssetClass = "unknown"
)

var (
	_cryptoMarkers = []string{"crypto", "krypto"}
	_equityMarkers = []string{"stock", "share", "equit", "akci"}
)

// ClassifyCategory resolves an asset class from a free-text category name.
func ClassifyCategory(category string) AssetClass {
	c := strings.ToLower(strings.TrimSpace(category))
	for _, m := range _cryptoMarkers {
		if strings.Contains(c, m) {
			return Crypto
		}
	}
	for _, m := range _equityMarkers {
		if strings.Contains(c, m) {
			return Equity
		}
	}
	return UnknownClass
}

// NormalizeCategory makes category names comparable: lower case, trimmed and
// singular ("Stocks" and "stock" are the same category).
func NormalizeCategory(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(n, "ies") && len(n) > 3:
		return strings.TrimSuffix(n, "ies") + "y"
	case strings.HasSuffix(n, "s") && !strings.HasSuffix(n, "ss"):
		return strings.TrimSuffix(n, "s")
	}
	return n
}
