package nuca

import (
	"log"

	"github.com/sarchlab/nucasim/mem/cache/tagging"
	"github.com/sarchlab/nucasim/mem/perf"
	"github.com/sarchlab/nucasim/sim"
	"github.com/sarchlab/nucasim/sim/hooking"
	"github.com/sarchlab/nucasim/sim/queueing"
	"github.com/sarchlab/nucasim/stats"
	"github.com/sirupsen/logrus"
)

// Builder can build NUCA caches.
type Builder struct {
	coreID           int
	freq             sim.Freq
	log2BlockSize    int
	numSets          int
	wayAssociativity int
	replacePolicy    string
	hash             tagging.AddressHash

	tagsAccessCycles uint64
	dataAccessCycles uint64
	pcmWriteCycles   uint64
	bandwidthGBps    float64

	queueEnabled  bool
	queueKind     queueing.Kind
	queueChannels int

	readCountSource ReadCountSource
	strictAlignment bool

	store         Store
	queueModel    queueing.Model
	aggregator    *Aggregator
	statsRegistry *stats.Registry
	hookDomain    hooking.Hookable
	logger        logrus.FieldLogger
}

// MakeBuilder creates a builder with default parameters: a 1 MB, 16-way cache
// of 64-byte lines at 2.66 GHz.
func MakeBuilder() Builder {
	return Builder{
		freq:             2.66 * sim.GHz,
		log2BlockSize:    6,
		numSets:          1024,
		wayAssociativity: 16,
		replacePolicy:    "lru",
		hash:             tagging.HashMask,
		tagsAccessCycles: 10,
		dataAccessCycles: 30,
		pcmWriteCycles:   0,
		bandwidthGBps:    0,
		queueKind:        queueing.KindBasic,
		queueChannels:    1,
		readCountSource:  ReadCountEvicted,
	}
}

// WithCoreID sets the ID of the core that owns the cache.
func (b Builder) WithCoreID(id int) Builder {
	b.coreID = id
	return b
}

// WithFreq sets the frequency that latencies are counted in.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLog2BlockSize sets the cache line size to 2^n bytes.
func (b Builder) WithLog2BlockSize(n int) Builder {
	b.log2BlockSize = n
	return b
}

// WithNumSets sets the number of sets.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithWayAssociativity sets the number of ways of each set.
func (b Builder) WithWayAssociativity(n int) Builder {
	b.wayAssociativity = n
	return b
}

// WithReplacePolicy sets the replacement policy, "lru" or "srrip".
func (b Builder) WithReplacePolicy(policy string) Builder {
	b.replacePolicy = policy
	return b
}

// WithAddressHash sets how addresses are mapped to sets.
func (b Builder) WithAddressHash(hash tagging.AddressHash) Builder {
	b.hash = hash
	return b
}

// WithTagsAccessLatency sets the tag lookup latency in cycles.
func (b Builder) WithTagsAccessLatency(cycles uint64) Builder {
	b.tagsAccessCycles = cycles
	return b
}

// WithDataAccessLatency sets the data array access latency in cycles.
func (b Builder) WithDataAccessLatency(cycles uint64) Builder {
	b.dataAccessCycles = cycles
	return b
}

// WithPCMWriteLatency sets the backing store write latency in cycles.
func (b Builder) WithPCMWriteLatency(cycles uint64) Builder {
	b.pcmWriteCycles = cycles
	return b
}

// WithBandwidth sets the data array bandwidth in GB/s.
func (b Builder) WithBandwidth(gbps float64) Builder {
	b.bandwidthGBps = gbps
	return b
}

// WithQueueModelEnabled turns on the data array contention model.
func (b Builder) WithQueueModelEnabled(enabled bool) Builder {
	b.queueEnabled = enabled
	return b
}

// WithQueueModelKind selects the contention model variant.
func (b Builder) WithQueueModelKind(kind queueing.Kind) Builder {
	b.queueKind = kind
	return b
}

// WithQueueChannels sets the number of channels of the contention model.
func (b Builder) WithQueueChannels(n int) Builder {
	b.queueChannels = n
	return b
}

// WithQueueModel sets the contention model directly. It implies that the
// contention model is enabled.
func (b Builder) WithQueueModel(m queueing.Model) Builder {
	b.queueModel = m
	b.queueEnabled = true

	return b
}

// WithStore sets the tag and data array. If not set, a tag array is created
// from the geometry.
func (b Builder) WithStore(s Store) Builder {
	b.store = s
	return b
}

// WithAggregator sets the aggregator shared with the other caches. If not
// set, the cache gets a private one.
func (b Builder) WithAggregator(a *Aggregator) Builder {
	b.aggregator = a
	return b
}

// WithStatsRegistry sets the registry the cache registers its statistics to.
func (b Builder) WithStatsRegistry(r *stats.Registry) Builder {
	b.statsRegistry = r
	return b
}

// WithHookDomain sets the domain whose end-of-ROI hook flushes the cache.
func (b Builder) WithHookDomain(d hooking.Hookable) Builder {
	b.hookDomain = d
	return b
}

// WithReadCountSource selects which read count enters the ratio of an
// evicted address.
func (b Builder) WithReadCountSource(s ReadCountSource) Builder {
	b.readCountSource = s
	return b
}

// WithStrictAlignment makes the cache panic on addresses that are not aligned
// to a cache line.
func (b Builder) WithStrictAlignment(strict bool) Builder {
	b.strictAlignment = strict
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// Build creates a NUCA cache.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid()

	c := &Comp{
		name:            name,
		coreID:          b.coreID,
		blockSize:       1 << b.log2BlockSize,
		readCountSource: b.readCountSource,
		strictAlignment: b.strictAlignment,
		logger:          b.logger,
		ledger:          NewLedger(),
		lastOps:         NewLastOpTracker(),
		dummyPerf:       perf.NewBreakdown(),
	}

	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}

	c.params = LatencyParams{
		TagsAccess:         sim.NewLatency(b.tagsAccessCycles, b.freq),
		DataAccess:         sim.NewLatency(b.dataAccessCycles, b.freq),
		PCMWrite:           sim.NewLatency(b.pcmWriteCycles, b.freq),
		DataArrayBandwidth: sim.GBps(b.bandwidthGBps, b.freq),
	}

	c.store = b.buildStore()
	c.queueModel = b.buildQueueModel()

	c.aggregator = b.aggregator
	if c.aggregator == nil {
		c.aggregator = NewAggregator().WithLogger(c.logger)
	}

	c.aggregator.attach(c)

	if b.statsRegistry != nil {
		c.RegisterStats(b.statsRegistry)
	}

	if b.hookDomain != nil {
		c.aggregator.ListenTo(b.hookDomain)
	}

	c.logger.WithFields(logrus.Fields{
		"cache":      name,
		"core":       b.coreID,
		"sets":       c.store.NumSets(),
		"ways":       c.store.NumWays(),
		"block_size": c.blockSize,
		"queue":      c.queueModel != nil,
	}).Debug("NUCA cache created")

	return c
}

func (b Builder) mustBeValid() {
	if b.log2BlockSize < 0 || b.log2BlockSize > 20 {
		log.Panicf("invalid log2 block size %d", b.log2BlockSize)
	}

	if b.freq <= 0 {
		log.Panic("frequency must be positive")
	}

	if b.queueEnabled && b.bandwidthGBps <= 0 {
		log.Panic("the queue model needs a positive data array bandwidth")
	}

	if b.store != nil && b.store.BlockSize() != 1<<b.log2BlockSize {
		log.Panicf("store block size %d does not match the cache line size %d",
			b.store.BlockSize(), 1<<b.log2BlockSize)
	}
}

func (b Builder) buildStore() Store {
	if b.store != nil {
		return b.store
	}

	victimFinder, err := tagging.NewVictimFinder(b.replacePolicy)
	if err != nil {
		log.Panic(err)
	}

	return tagging.NewTagArray(
		b.numSets,
		b.wayAssociativity,
		1<<b.log2BlockSize,
		b.hash,
		victimFinder,
	)
}

func (b Builder) buildQueueModel() queueing.Model {
	if !b.queueEnabled {
		return nil
	}

	if b.queueModel != nil {
		return b.queueModel
	}

	m, err := queueing.New(b.queueKind, b.queueChannels)
	if err != nil {
		log.Panic(err)
	}

	return m
}
