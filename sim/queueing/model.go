// Package queueing provides queueing-delay models for shared resources such as
// a cache data array.
package queueing

import (
	"fmt"

	"github.com/sarchlab/nucasim/sim"
)

// A Model computes how long a request waits for a shared resource before it
// can be served.
type Model interface {
	// ComputeQueueDelay returns the time a request that arrives at start and
	// occupies the resource for processing has to wait before it is served.
	ComputeQueueDelay(
		start, processing sim.VTimeInSec,
		requester int,
	) sim.VTimeInSec

	// NumRequests returns the number of requests the model has seen.
	NumRequests() uint64

	// TotalQueueDelay returns the sum of all the delays the model has
	// returned.
	TotalQueueDelay() sim.VTimeInSec
}

// Kind names a queueing model variant.
type Kind string

// Supported model kinds.
const (
	KindBasic      Kind = "basic"
	KindContention Kind = "contention"
)

// New creates a model of the given kind. Channels is only used by the
// contention model.
func New(kind Kind, channels int) (Model, error) {
	switch kind {
	case KindBasic:
		return NewBasic(), nil
	case KindContention:
		if channels <= 0 {
			return nil, fmt.Errorf(
				"contention queue model needs at least one channel, got %d",
				channels)
		}

		return NewContention(channels), nil
	default:
		return nil, fmt.Errorf("unknown queue model type %q", kind)
	}
}

type modelStats struct {
	numRequests uint64
	totalDelay  sim.VTimeInSec
}

func (s *modelStats) record(delay sim.VTimeInSec) {
	s.numRequests++
	s.totalDelay += delay
}

// NumRequests returns the number of requests the model has seen.
func (s *modelStats) NumRequests() uint64 {
	return s.numRequests
}

// TotalQueueDelay returns the accumulated queueing delay.
func (s *modelStats) TotalQueueDelay() sim.VTimeInSec {
	return s.totalDelay
}
