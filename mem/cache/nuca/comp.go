// Package nuca models the timing and the access-pattern statistics of a
// non-uniform cache access (NUCA) cache slice.
//
// Each simulated core owns one Comp. A Comp charges tag and data-array
// latency to every access, keeps per-address read and write counts while a
// line is resident, and, when a line leaves the cache, classifies its
// write-to-read ratio into a histogram held by a shared Aggregator.
package nuca

import (
	"fmt"
	"log"

	"github.com/sarchlab/nucasim/mem/cache/tagging"
	"github.com/sarchlab/nucasim/mem/perf"
	"github.com/sarchlab/nucasim/sim"
	"github.com/sarchlab/nucasim/sim/queueing"
	"github.com/sarchlab/nucasim/stats"
	"github.com/sirupsen/logrus"
)

const (
	statsObject      = "nuca-cache"
	queueStatsObject = "nuca-cache-queue"
)

// A Store is the tag and data array a NUCA cache keeps its lines in.
type Store interface {
	// Peek finds the resident block of addr without side effects.
	Peek(addr uint64) (*tagging.Block, bool)

	// Access reads or writes a resident line.
	Access(
		addr uint64,
		kind tagging.AccessKind,
		buf []byte,
		now sim.VTimeInSec,
		updateReplacement bool,
	)

	// Insert places a new line and reports the line it displaced.
	Insert(addr uint64, buf []byte, now sim.VTimeInSec) tagging.Eviction

	NumSets() int
	NumWays() int
	BlockSize() int
	PeekBlock(setID, wayID int) *tagging.Block
	TagToAddress(tag uint64) uint64
}

// HitWhere tells which component satisfied an access.
type HitWhere int

// Hit locations reported by a NUCA cache.
const (
	Miss HitWhere = iota
	HitNucaCache
)

func (h HitWhere) String() string {
	switch h {
	case Miss:
		return "miss"
	case HitNucaCache:
		return "nuca-cache"
	default:
		return "unknown"
	}
}

// ReadCountSource selects which read count enters the ratio of an evicted
// address.
type ReadCountSource int

const (
	// ReadCountEvicted uses the evicted address's own read count.
	ReadCountEvicted ReadCountSource = iota

	// ReadCountInserted uses the read count of the address whose insertion
	// caused the eviction, whenever the evicted address has a read record.
	// This reproduces the statistics of the Sniper NUCA model.
	ReadCountInserted
)

// ParseReadCountSource converts a configuration string into a
// ReadCountSource.
func ParseReadCountSource(s string) (ReadCountSource, error) {
	switch s {
	case "", "evicted":
		return ReadCountEvicted, nil
	case "inserted":
		return ReadCountInserted, nil
	default:
		return 0, fmt.Errorf("unknown read count source %q", s)
	}
}

// LatencyParams are the fixed timing parameters of a NUCA cache.
type LatencyParams struct {
	TagsAccess         sim.Latency
	DataAccess         sim.Latency
	PCMWrite           sim.Latency
	DataArrayBandwidth sim.Bandwidth
}

// WriteResult is the outcome of a write.
type WriteResult struct {
	Latency  sim.VTimeInSec
	HitWhere HitWhere

	// Replaced tells that the write displaced a resident line.
	Replaced bool

	// Eviction tells that the displaced line is dirty and must be written
	// back. Clean lines are dropped silently.
	Eviction bool

	// EvictAddress is the line address of the displaced line.
	EvictAddress uint64
}

// Counters is a snapshot of the access counters of one cache.
type Counters struct {
	Reads       uint64
	Writes      uint64
	ReadMisses  uint64
	WriteMisses uint64
}

// Comp is a NUCA cache slice owned by one core.
type Comp struct {
	name   string
	coreID int

	params          LatencyParams
	blockSize       int
	store           Store
	queueModel      queueing.Model
	aggregator      *Aggregator
	readCountSource ReadCountSource
	strictAlignment bool
	logger          logrus.FieldLogger

	ledger    *Ledger
	lastOps   *LastOpTracker
	dummyPerf *perf.Breakdown

	reads       uint64
	writes      uint64
	readMisses  uint64
	writeMisses uint64
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// CoreID returns the ID of the core that owns the cache.
func (c *Comp) CoreID() int {
	return c.coreID
}

// Store returns the tag and data array of the cache.
func (c *Comp) Store() Store {
	return c.store
}

// Aggregator returns the aggregator the cache reports to.
func (c *Comp) Aggregator() *Aggregator {
	return c.aggregator
}

// Ledger returns the per-address read and write counts.
func (c *Comp) Ledger() *Ledger {
	return c.ledger
}

// LastOps returns the per-address last-operation state.
func (c *Comp) LastOps() *LastOpTracker {
	return c.lastOps
}

// DummyPerf returns the tracker that writes are charged to.
func (c *Comp) DummyPerf() *perf.Breakdown {
	return c.dummyPerf
}

// Params returns the latency parameters.
func (c *Comp) Params() LatencyParams {
	return c.params
}

// Counters returns a snapshot of the access counters.
func (c *Comp) Counters() Counters {
	return Counters{
		Reads:       c.reads,
		Writes:      c.writes,
		ReadMisses:  c.readMisses,
		WriteMisses: c.writeMisses,
	}
}

// Read looks up addr and returns the latency of the access and where it hit.
// A read miss is only charged the tag lookup; fetching the line is left to
// the level below. Count tells if the access is counted in the read total.
func (c *Comp) Read(
	addr uint64,
	buf []byte,
	now sim.VTimeInSec,
	tracker perf.Tracker,
	count bool,
) (sim.VTimeInSec, HitWhere) {
	c.mustBeAligned(addr)
	line := c.lineAddress(addr)

	if tracker == nil {
		tracker = perf.Discard
	}

	hitWhere := Miss
	tracker.UpdateTime(now, perf.StageUnknown)

	_, found := c.store.Peek(addr)
	latency := c.params.TagsAccess.Time()
	tracker.UpdateTime(now+latency, perf.StageNucaTags)

	if found {
		c.store.Access(addr, tagging.Load, buf, now+latency, true)

		latency += c.accessDataArray(tagging.Load, now+latency, tracker)
		hitWhere = HitNucaCache

		c.ledger.RecordRead(line)
	} else {
		c.readMisses++
	}

	if count {
		c.reads++
	}

	c.updateLastOp(line, OpRead)

	return latency, hitWhere
}

// Write stores buf into the line of addr. A write miss allocates the line,
// possibly displacing another one whose data is copied into evictBuf. Count
// tells if the access is counted in the write total.
func (c *Comp) Write(
	addr uint64,
	buf []byte,
	evictBuf []byte,
	now sim.VTimeInSec,
	count bool,
) WriteResult {
	c.mustBeAligned(addr)
	line := c.lineAddress(addr)

	result := WriteResult{HitWhere: Miss}

	block, found := c.store.Peek(addr)
	latency := c.params.TagsAccess.Time()

	if found {
		block.State = tagging.Modified
		c.store.Access(addr, tagging.Store, buf, now+latency, true)

		latency += c.accessDataArray(tagging.Store, now+latency, c.dummyPerf)
		result.HitWhere = HitNucaCache

		c.ledger.RecordWrite(line)
	} else {
		eviction := c.store.Insert(addr, buf, now+latency)

		if eviction.Evicted {
			c.updateLastOp(eviction.Address, OpInvalid)

			result.Replaced = true
			result.EvictAddress = eviction.Address
			result.Eviction = eviction.Block.State.IsDirty()

			if evictBuf != nil {
				copy(evictBuf, eviction.Data)
			}
		}

		c.writeMisses++
		c.ledger.RecordWrite(line)

		if eviction.Evicted && !eviction.Block.IsWarmup {
			c.drain(eviction.Address, line)
		}
	}

	if count {
		c.writes++
	}

	c.updateLastOp(line, OpWrite)
	result.Latency = latency

	return result
}

// accessDataArray returns the time the data array takes to serve an access
// that starts at start, including the wait for the shared array. The PCM
// write latency is not charged here.
func (c *Comp) accessDataArray(
	_ tagging.AccessKind,
	start sim.VTimeInSec,
	tracker perf.Tracker,
) sim.VTimeInSec {
	tracker.UpdateTime(start, perf.StageUnknown)

	var queueDelay sim.VTimeInSec

	if c.queueModel != nil {
		processing := c.params.DataArrayBandwidth.RoundedLatency(
			8 * uint64(c.blockSize))

		queueDelay = processing + c.queueModel.ComputeQueueDelay(
			start, processing, c.coreID)

		tracker.UpdateTime(start+processing, perf.StageNucaBus)
		tracker.UpdateTime(start+queueDelay, perf.StageNucaQueue)
	}

	dataLatency := c.params.DataAccess.Time()
	tracker.UpdateTime(start+queueDelay+dataLatency, perf.StageNucaData)

	return queueDelay + dataLatency
}

// drain classifies the ratio of addr into the histogram and forgets its
// counts. Addresses that were never written are forgotten without being
// counted. readsOf is the address whose read count is used when the source
// is ReadCountInserted.
func (c *Comp) drain(addr, readsOf uint64) {
	writes, written := c.ledger.Writes(addr)

	if written {
		reads, hasReads := c.ledger.Reads(addr)
		if hasReads && c.readCountSource == ReadCountInserted {
			reads, _ = c.ledger.Reads(readsOf)
		}

		ratio := WriteReadRatio(writes, reads)
		c.aggregator.RecordDrain(BucketOf(GetNearestPower(ratio)))
	}

	c.ledger.Erase(addr)
}

// FlushResident drains every valid line that was not brought in during
// warm-up, as if it were evicted, and returns the number of lines visited.
// The lines stay resident.
func (c *Comp) FlushResident() int {
	n := 0

	for setID := 0; setID < c.store.NumSets(); setID++ {
		for wayID := 0; wayID < c.store.NumWays(); wayID++ {
			block := c.store.PeekBlock(setID, wayID)
			if !block.IsValid || block.IsWarmup {
				continue
			}

			addr := c.store.TagToAddress(block.Tag)
			c.drain(addr, addr)
			n++
		}
	}

	return n
}

func (c *Comp) updateLastOp(addr uint64, op LastOp) {
	c.aggregator.CountTransition(c.lastOps.Update(addr, op))
}

// lineAddress clears the offset bits of addr. The ledger and the last-op
// tracker are keyed by line, the same key eviction and flush drain by.
func (c *Comp) lineAddress(addr uint64) uint64 {
	return addr &^ uint64(c.blockSize-1)
}

func (c *Comp) mustBeAligned(addr uint64) {
	if !c.strictAlignment {
		return
	}

	if addr%uint64(c.blockSize) != 0 {
		log.Panicf("%s: address 0x%x is not aligned to %d bytes",
			c.name, addr, c.blockSize)
	}
}

// RegisterStats exposes the access counters of the cache, the counters of its
// queue model, and, once per aggregator, the aggregate statistics.
func (c *Comp) RegisterStats(reg *stats.Registry) {
	reg.RegisterCounter(statsObject, c.coreID, "reads", &c.reads)
	reg.RegisterCounter(statsObject, c.coreID, "writes", &c.writes)
	reg.RegisterCounter(statsObject, c.coreID, "read-misses", &c.readMisses)
	reg.RegisterCounter(statsObject, c.coreID, "write-misses", &c.writeMisses)

	if c.queueModel != nil {
		qm := c.queueModel
		reg.Register(queueStatsObject, c.coreID, "num-requests",
			qm.NumRequests)
		reg.Register(queueStatsObject, c.coreID, "total-queue-delay-ps",
			func() uint64 { return toPicoseconds(qm.TotalQueueDelay()) })
	}

	c.aggregator.RegisterStats(reg)
}

func toPicoseconds(t sim.VTimeInSec) uint64 {
	return uint64(t*1e12 + 0.5)
}
