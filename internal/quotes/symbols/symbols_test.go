package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Apple Inc. Common Stock":                  "apple",
		"Alphabet Inc. Class A Common Stock":       "alphabet",
		"Procter & Gamble Company (The)":           "procter & gamble",
		"Coca-Cola Company (The) Common Stock":     "coca-cola",
		"Mastercard Incorporated":                  "mastercard",
		"  Microsoft   Corporation ":               "microsoft",
		"Spotify Technology S.A. Ordinary Shares":  "spotify technology s.a.",
		"Merck & Company, Inc. Common Stock (new)": "merck &",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestLookup(t *testing.T) {
	idx := New([]Stock{
		{Name: "Apple Inc. Common Stock", Display: "AAPL"},
		{Name: "Apple Hospitality REIT, Inc. Common Stock", Display: "APLE"},
		{Name: "Ford Motor Company Common Stock", Display: "F"},
		{Name: "Broken entry"},
	})
	assert.Equal(t, 3, idx.Len())

	sym, err := idx.Lookup("Apple")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", sym)

	sym, err = idx.Lookup("apple inc.")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", sym)

	// no exact match, first partial wins
	sym, err = idx.Lookup("Ford")
	require.NoError(t, err)
	assert.Equal(t, "F", sym)

	sym, err = idx.Lookup("hospitality")
	require.NoError(t, err)
	assert.Equal(t, "APLE", sym)

	_, err = idx.Lookup("Nonexistent Holdings")
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	_, err = idx.Lookup("Inc.")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestDefault(t *testing.T) {
	idx, err := Default()
	require.NoError(t, err)
	assert.Greater(t, idx.Len(), 50)

	for name, want := range map[string]string{
		"Apple":     "AAPL",
		"Microsoft": "MSFT",
		"Tesla":     "TSLA",
		"Amazon":    "AMZN",
	} {
		sym, err := idx.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, sym, name)
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stocks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Nvidia Corporation","display":"NVDA"}]`), 0o600))

	idx, err := FromFile(path)
	require.NoError(t, err)
	sym, err := idx.Lookup("NVIDIA")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", sym)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = FromFile(path)
	assert.Error(t, err)
}
