package model

import (
	"fmt"
	"time"
)

type Window string

const (
	Day               Window = "1D"
	Week              Window = "1W"
	Month             Window = "1M"
	Year              Window = "1Y"
	CurrentMonthStart Window = "CURRENT_MONTH_START"
)

// FixedWindows are backfilled once per asset and never refreshed.
var FixedWindows = []Window{Day, Week, Month, Year}

func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case Day, Week, Month, Year, CurrentMonthStart:
		return w, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", ErrInvalidInput, s)
}

// Since returns the reference date of the window relative to now, using
// calendar arithmetic.
func (w Window) Since(now time.Time) time.Time {
	switch w {
	case Day:
		return now.AddDate(0, 0, -1)
	case Week:
		return now.AddDate(0, 0, -7)
	case Month:
		return now.AddDate(0, -1, 0)
	case Year:
		return now.AddDate(-1, 0, 0)
	case CurrentMonthStart:
		return MonthStart(now)
	}
	return now
}

func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type ReferencePrice struct {
	AssetName string    `json:"assetName" db:"asset_name"`
	Window    Window    `json:"period" db:"window_label"`
	Price     float64   `json:"price" db:"price"`
	AsOfDate  time.Time `json:"date" db:"as_of_date"`
	FetchedAt time.Time `json:"fetchedAt" db:"fetched_at"`
}
