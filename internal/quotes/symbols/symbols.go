// Package symbols maps free-text company names to exchange tickers using a
// static list of listed stocks.
package symbols

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

var ErrSymbolNotFound = errors.New("symbol not found")

//go:embed stocks.json
var _defaultStocks []byte

type Stock struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

type entry struct {
	normalized string
	symbol     string
}

type Index struct {
	entries []entry
}

var (
	_noise  = regexp.MustCompile(`(?i)\b(?:inc|corporation|common stock|incorporated|company|corp|co|class [abc]|ads|ordinary shares)\b\.?|\(.*?\)|,`)
	_spaces = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases a company name and strips legal suffixes, share
// classes and parenthesized notes.
func Normalize(name string) string {
	name = _noise.ReplaceAllString(strings.ToLower(name), "")
	return strings.TrimSpace(_spaces.ReplaceAllString(name, " "))
}

func New(stocks []Stock) *Index {
	idx := &Index{entries: make([]entry, 0, len(stocks))}
	for _, s := range stocks {
		if s.Display == "" {
			continue
		}
		idx.entries = append(idx.entries, entry{normalized: Normalize(s.Name), symbol: s.Display})
	}
	return idx
}

func Parse(data []byte) (*Index, error) {
	var stocks []Stock
	if err := sonic.Unmarshal(data, &stocks); err != nil {
		return nil, fmt.Errorf("%w: can't unmarshal stocks", err)
	}
	return New(stocks), nil
}

// Default is the index built from the embedded stock list.
func Default() (*Index, error) {
	return Parse(_defaultStocks)
}

func FromFile(filename string) (*Index, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: can't read file", err)
	}
	return Parse(data)
}

// Lookup tries an exact match of the normalized name first and falls back to
// the first listed name containing it. The match is a heuristic and may pick
// the wrong company for short or generic names.
func (idx *Index) Lookup(name string) (string, error) {
	target := Normalize(name)
	if target == "" {
		return "", fmt.Errorf("%w: %q", ErrSymbolNotFound, name)
	}
	for _, e := range idx.entries {
		if e.normalized == target {
			return e.symbol, nil
		}
	}
	for _, e := range idx.entries {
		if strings.Contains(e.normalized, target) {
			return e.symbol, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSymbolNotFound, name)
}

func (idx *Index) Len() int {
	return len(idx.entries)
}
