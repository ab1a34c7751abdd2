package feed

import (
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Tracker follows the series market currently in play. Each cycle it is
// handed the open markets and picks the next one to expire; when the pick
// changes, the old market becomes the "previous" market that the
// previous-result strategies key off.
type Tracker struct {
	current  string
	previous string
	logger   *slog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		logger: logger.With(slog.String("component", "tracker")),
	}
}

// Current returns the ticker of the market in play, or "" before the first
// observation.
func (t *Tracker) Current() string {
	return t.current
}

// Previous returns the ticker of the market that most recently rolled out of
// play, or "" when no rollover has happened yet.
func (t *Tracker) Previous() string {
	return t.previous
}

// Observe selects the next-expiring market among the open ones and records a
// rollover when the selection changes. It returns the selected market and
// whether a rollover happened. When no open market closes after now it
// returns domain.ErrNoOpenMarket.
func (t *Tracker) Observe(open []domain.Market, now time.Time) (domain.Market, bool, error) {
	candidates := make([]domain.Market, 0, len(open))
	for _, m := range open {
		if m.CloseTime.After(now) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return domain.Market{}, false, domain.ErrNoOpenMarket
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CloseTime.Before(candidates[j].CloseTime)
	})
	next := candidates[0]

	rolled := false
	if next.Ticker != t.current {
		if t.current != "" {
			t.previous = t.current
			rolled = true
			t.logger.Info("market rollover",
				slog.String("previous", t.previous),
				slog.String("current", next.Ticker),
			)
		}
		t.current = next.Ticker
	}

	return next, rolled, nil
}
