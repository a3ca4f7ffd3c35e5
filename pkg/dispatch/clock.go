package dispatch

import (
	"context"
	"math/rand/v2"
	"time"

	"atg_dispatch/internal/common"
)

// Clock отдаёт текущее время.
type Clock interface {
	Now() time.Time
}

// Rand выбирает случайные задержки.
type Rand interface {
	// IntN возвращает число в [0, n).
	IntN(n int) int
}

// Sleeper ожидает d или отмену контекста.
type Sleeper func(ctx context.Context, d time.Duration) error

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) } //nolint:gosec // задержки не требуют криптостойкости

// randomBetween возвращает целое в [lo, hi] включительно.
func randomBetween(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

var defaultSleeper Sleeper = common.Wait
