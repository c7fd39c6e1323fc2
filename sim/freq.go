// Package sim holds the units of simulated time shared by the cache models:
// virtual time, clock frequencies, latencies and bandwidths.
package sim

import (
	"log"
	"math"
)

// VTimeInSec is a point or a span of simulated time, in seconds.
type VTimeInSec = float64

// Freq is a clock frequency in Hz.
type Freq float64

// Frequency units.
const (
	Hz  Freq = 1
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the length of one cycle. A zero frequency has no period.
func (f Freq) Period() VTimeInSec {
	if f <= 0 {
		log.Panicf("frequency must be positive, got %g", float64(f))
	}

	return 1 / float64(f)
}

// CyclesToTime returns the duration of n cycles.
func (f Freq) CyclesToTime(n uint64) VTimeInSec {
	if f <= 0 {
		log.Panicf("frequency must be positive, got %g", float64(f))
	}

	return float64(n) / float64(f)
}

// Cycles converts a duration to a number of cycles, rounded to the nearest
// cycle.
func (f Freq) Cycles(t VTimeInSec) uint64 {
	return uint64(math.Round(t * float64(f)))
}
