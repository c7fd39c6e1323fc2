package queueing

import "github.com/sarchlab/nucasim/sim"

// Contention models a resource with several identical channels. Each request
// is served by the channel that becomes free first.
type Contention struct {
	modelStats

	freeAt []sim.VTimeInSec
}

// NewContention creates a model with n channels.
func NewContention(n int) *Contention {
	return &Contention{
		freeAt: make([]sim.VTimeInSec, n),
	}
}

// NumChannels returns the number of channels.
func (m *Contention) NumChannels() int {
	return len(m.freeAt)
}

// ComputeQueueDelay picks the earliest free channel and books it.
func (m *Contention) ComputeQueueDelay(
	start, processing sim.VTimeInSec,
	_ int,
) sim.VTimeInSec {
	earliest := 0
	for i, t := range m.freeAt {
		if t < m.freeAt[earliest] {
			earliest = i
		}
	}

	var delay sim.VTimeInSec
	if m.freeAt[earliest] > start {
		delay = m.freeAt[earliest] - start
	}

	m.freeAt[earliest] = start + delay + processing
	m.record(delay)

	return delay
}
