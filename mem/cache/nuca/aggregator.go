package nuca

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/sarchlab/nucasim/sim/hooking"
	"github.com/sarchlab/nucasim/stats"
	"github.com/sirupsen/logrus"
)

// FlushScope selects which caches the end-of-ROI flush drains.
type FlushScope int

// Flush scopes.
const (
	// FlushPrimary drains only the primary cache, the attached cache with the
	// lowest core ID.
	FlushPrimary FlushScope = iota

	// FlushAll drains every attached cache in core ID order.
	FlushAll
)

// ParseFlushScope converts a configuration string into a FlushScope.
func ParseFlushScope(s string) (FlushScope, error) {
	switch s {
	case "", "primary":
		return FlushPrimary, nil
	case "all":
		return FlushAll, nil
	default:
		return 0, fmt.Errorf("unknown flush scope %q", s)
	}
}

// Aggregator owns the statistics shared by all the NUCA cache instances of a
// simulation: the write-to-read ratio histogram and the transition counters.
// Caches forward their drain and transition events to it. The aggregator is
// safe to share between caches driven from different goroutines.
type Aggregator struct {
	lock        sync.Mutex
	histogram   [NumBuckets]uint64
	transitions [numTransitions]uint64

	caches          []*Comp
	flushScope      FlushScope
	owner           int
	flushed         bool
	statsRegistered bool
	hookDomains     []hooking.Hookable
	logger          logrus.FieldLogger
}

// NewAggregator creates an aggregator that flushes the primary cache only.
func NewAggregator() *Aggregator {
	return &Aggregator{
		flushScope: FlushPrimary,
		logger:     logrus.StandardLogger(),
	}
}

// WithFlushScope sets which caches the end-of-ROI flush drains.
func (a *Aggregator) WithFlushScope(scope FlushScope) *Aggregator {
	a.flushScope = scope
	return a
}

// WithOwner sets the core whose statistics instance carries the aggregate
// statistics. It defaults to core 0, in whatever order the caches are built.
func (a *Aggregator) WithOwner(coreID int) *Aggregator {
	a.owner = coreID
	return a
}

// Owner returns the core that carries the aggregate statistics.
func (a *Aggregator) Owner() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.owner
}

// WithLogger sets the logger used to report the flush.
func (a *Aggregator) WithLogger(logger logrus.FieldLogger) *Aggregator {
	a.logger = logger
	return a
}

func (a *Aggregator) attach(c *Comp) {
	a.lock.Lock()
	defer a.lock.Unlock()

	for _, other := range a.caches {
		if other.coreID == c.coreID {
			log.Panicf("core %d already has a NUCA cache attached", c.coreID)
		}
	}

	a.caches = append(a.caches, c)
	sort.Slice(a.caches, func(i, j int) bool {
		return a.caches[i].coreID < a.caches[j].coreID
	})
}

// Caches returns the attached caches in core ID order.
func (a *Aggregator) Caches() []*Comp {
	a.lock.Lock()
	defer a.lock.Unlock()

	return append([]*Comp(nil), a.caches...)
}

// Primary returns the cache that owns the aggregate statistics, or nil if no
// cache is attached.
func (a *Aggregator) Primary() *Comp {
	a.lock.Lock()
	defer a.lock.Unlock()

	if len(a.caches) == 0 {
		return nil
	}

	return a.caches[0]
}

// RecordDrain counts one drained address in a histogram bucket.
func (a *Aggregator) RecordDrain(b Bucket) {
	a.lock.Lock()
	a.histogram[b]++
	a.lock.Unlock()
}

// CountTransition increments the counter of a transition. TransitionNone is
// ignored.
func (a *Aggregator) CountTransition(t Transition) {
	if t == TransitionNone {
		return
	}

	a.lock.Lock()
	a.transitions[t]++
	a.lock.Unlock()
}

// BucketCount returns the count of a histogram bucket.
func (a *Aggregator) BucketCount(b Bucket) uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.histogram[b]
}

// Histogram returns a copy of all bucket counts.
func (a *Aggregator) Histogram() [NumBuckets]uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.histogram
}

// TransitionCount returns the counter of a transition.
func (a *Aggregator) TransitionCount(t Transition) uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.transitions[t]
}

// RegisterStats exposes the histogram and the transition counters under the
// owner's instance. Only the first call registers anything.
func (a *Aggregator) RegisterStats(reg *stats.Registry) {
	a.lock.Lock()
	if a.statsRegistered {
		a.lock.Unlock()
		return
	}
	a.statsRegistered = true
	owner := a.owner
	a.lock.Unlock()

	for b := Bucket0; b < NumBuckets; b++ {
		bucket := b
		reg.Register(statsObject, owner,
			fmt.Sprintf("rw_service_count[%s]", bucket),
			func() uint64 { return a.BucketCount(bucket) })
	}

	for _, t := range CountedTransitions() {
		transition := t
		reg.Register(statsObject, owner, transition.String(),
			func() uint64 { return a.TransitionCount(transition) })
	}
}

// ListenTo registers the aggregator as the end-of-ROI hook of a domain. A
// domain is only hooked once.
func (a *Aggregator) ListenTo(domain hooking.Hookable) {
	a.lock.Lock()
	defer a.lock.Unlock()

	for _, d := range a.hookDomains {
		if d == domain {
			return
		}
	}

	a.hookDomains = append(a.hookDomains, domain)
	domain.AcceptHook(a)
}

// Func reacts to the end of the region of interest by flushing.
func (a *Aggregator) Func(ctx hooking.HookCtx) {
	if ctx.Pos != hooking.HookPosROIEnd {
		return
	}

	a.Flush()
}

// Flush drains the resident lines of the caches in scope as if they were
// evicted. It runs at most once; later calls do nothing.
func (a *Aggregator) Flush() {
	a.lock.Lock()
	if a.flushed || len(a.caches) == 0 {
		a.lock.Unlock()
		return
	}

	a.flushed = true

	caches := a.caches[:1]
	if a.flushScope == FlushAll {
		caches = a.caches
	}

	caches = append([]*Comp(nil), caches...)
	a.lock.Unlock()

	a.logger.Info("Dumping remaining valid entries in NUCA at the end of ROI")

	for _, c := range caches {
		n := c.FlushResident()
		a.logger.WithFields(logrus.Fields{
			"cache": c.Name(),
			"lines": n,
		}).Debug("NUCA cache flushed")
	}
}

// Flushed tells if the flush has run.
func (a *Aggregator) Flushed() bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.flushed
}

// Transitions is a snapshot of the transition counters.
type Transitions struct {
	ReadAfterRead   uint64
	ReadAfterWrite  uint64
	WriteAfterRead  uint64
	WriteAfterWrite uint64
	EvictAfterRead  uint64
	EvictAfterWrite uint64
}

// Transitions returns a snapshot of all transition counters.
func (a *Aggregator) Transitions() Transitions {
	a.lock.Lock()
	defer a.lock.Unlock()

	return Transitions{
		ReadAfterRead:   a.transitions[ReadAfterRead],
		ReadAfterWrite:  a.transitions[ReadAfterWrite],
		WriteAfterRead:  a.transitions[WriteAfterRead],
		WriteAfterWrite: a.transitions[WriteAfterWrite],
		EvictAfterRead:  a.transitions[EvictAfterRead],
		EvictAfterWrite: a.transitions[EvictAfterWrite],
	}
}
