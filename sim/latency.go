package sim

import (
	"log"
	"math"
)

// Latency is a fixed delay expressed in cycles of a clock domain.
type Latency struct {
	Cycles uint64
	Freq   Freq
}

// NewLatency creates a latency of n cycles at frequency f.
func NewLatency(n uint64, f Freq) Latency {
	return Latency{Cycles: n, Freq: f}
}

// Time returns the latency as a duration.
func (l Latency) Time() VTimeInSec {
	if l.Cycles == 0 {
		return 0
	}

	return l.Freq.CyclesToTime(l.Cycles)
}

// Bandwidth is a transfer rate in bits per second, bound to the clock domain
// that rounds transfer times to whole cycles.
type Bandwidth struct {
	BitsPerSec float64
	Freq       Freq
}

// GBps is a helper that converts a bandwidth in gigabytes per second to a
// Bandwidth in bits per second.
func GBps(gb float64, f Freq) Bandwidth {
	return Bandwidth{BitsPerSec: gb * 8 * 1e9, Freq: f}
}

// IsZero tells if no bandwidth is configured.
func (b Bandwidth) IsZero() bool {
	return b.BitsPerSec <= 0
}

// RoundedLatency returns the time needed to move the given number of bits,
// rounded up to a whole number of cycles.
func (b Bandwidth) RoundedLatency(bits uint64) VTimeInSec {
	if b.IsZero() {
		log.Panic("bandwidth cannot be 0")
	}

	bitsPerCycle := b.BitsPerSec / float64(b.Freq)
	cycles := uint64(math.Ceil(float64(bits) / bitsPerCycle))

	return b.Freq.CyclesToTime(cycles)
}
