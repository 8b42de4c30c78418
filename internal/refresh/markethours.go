package refresh

import (
	"fmt"
	"time"

	"github.com/STTM-NSU/fintrack/internal/config"
)

// MarketHours is a weekday trading window in UTC. Both ends are inclusive.
type MarketHours struct {
	open, close time.Duration // offsets from midnight
}

func NewMarketHours(cfg config.MarketHoursConfig) (MarketHours, error) {
	open, err := clock(cfg.Open)
	if err != nil {
		return MarketHours{}, err
	}
	closing, err := clock(cfg.Close)
	if err != nil {
		return MarketHours{}, err
	}
	if closing <= open {
		return MarketHours{}, fmt.Errorf("market closes at %s before it opens at %s", cfg.Close, cfg.Open)
	}
	return MarketHours{open: open, close: closing}, nil
}

func clock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock time %q", err, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (m MarketHours) IsOpen(now time.Time) bool {
	now = now.UTC()
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	since := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute
	return since >= m.open && since <= m.close
}
