package queueing

import "github.com/sarchlab/nucasim/sim"

// Basic models a single server that serves requests in arrival order. A
// request waits until all the work queued before it has been served.
type Basic struct {
	modelStats

	busyUntil sim.VTimeInSec
}

// NewBasic creates a single-server queue model.
func NewBasic() *Basic {
	return &Basic{}
}

// ComputeQueueDelay returns the time left until the server is free and books
// the server for the processing time.
func (m *Basic) ComputeQueueDelay(
	start, processing sim.VTimeInSec,
	_ int,
) sim.VTimeInSec {
	var delay sim.VTimeInSec
	if m.busyUntil > start {
		delay = m.busyUntil - start
	}

	m.busyUntil = start + delay + processing
	m.record(delay)

	return delay
}
