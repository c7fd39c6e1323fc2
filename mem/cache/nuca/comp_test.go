package nuca

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/nucasim/mem/cache/tagging"
	"github.com/sarchlab/nucasim/mem/perf"
	"github.com/sarchlab/nucasim/sim"
	"github.com/sarchlab/nucasim/stats"
)

const (
	tagsLatency = 10e-9
	dataLatency = 30e-9
)

func smallBuilder(sets, ways int) Builder {
	return MakeBuilder().
		WithFreq(1 * sim.GHz).
		WithLog2BlockSize(6).
		WithNumSets(sets).
		WithWayAssociativity(ways).
		WithTagsAccessLatency(10).
		WithDataAccessLatency(30)
}

var _ = Describe("Comp", func() {
	var (
		mockCtrl *gomock.Controller
		reg      *stats.Registry
		c        *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		reg = stats.NewRegistry()
		c = smallBuilder(1, 1).WithStatsRegistry(reg).Build("NUCA")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	lookup := func(name string) uint64 {
		v, found := reg.Lookup(statsObject, 0, name)
		Expect(found).To(BeTrue(), name)

		return v
	}

	Context("read", func() {
		It("should charge only the tag lookup on a miss", func() {
			latency, hitWhere := c.Read(0x1000, nil, 0, nil, true)

			Expect(latency).To(BeNumerically("~", tagsLatency, 1e-15))
			Expect(hitWhere).To(Equal(Miss))
			Expect(c.Counters()).To(Equal(Counters{Reads: 1, ReadMisses: 1}))
			Expect(c.Ledger().Tracked(0x1000)).To(BeFalse())
		})

		It("should count misses of uncounted reads", func() {
			c.Read(0x1000, nil, 0, nil, false)

			Expect(c.Counters().Reads).To(Equal(uint64(0)))
			Expect(c.Counters().ReadMisses).To(Equal(uint64(1)))
		})

		It("should charge the tag and data latency on a hit", func() {
			c.Write(0x1000, nil, nil, 0, true)

			latency, hitWhere := c.Read(0x1000, nil, 1e-6, nil, true)

			Expect(latency).To(BeNumerically("~", tagsLatency+dataLatency, 1e-15))
			Expect(hitWhere).To(Equal(HitNucaCache))

			reads, found := c.Ledger().Reads(0x1000)
			Expect(found).To(BeTrue())
			Expect(reads).To(Equal(uint64(1)))
		})

		It("should return the line data", func() {
			data := []byte{1, 2, 3, 4}
			c.Write(0x1000, data, nil, 0, true)

			buf := make([]byte, 4)
			c.Read(0x1000, buf, 0, nil, true)

			Expect(buf).To(Equal(data))
		})

		It("should report the stages to the tracker", func() {
			c.Write(0x1000, nil, nil, 0, true)
			tracker := perf.NewBreakdown()

			c.Read(0x1000, nil, 1e-6, tracker, true)

			Expect(tracker.Time(perf.StageNucaTags)).
				To(BeNumerically("~", tagsLatency, 1e-15))
			Expect(tracker.Time(perf.StageNucaData)).
				To(BeNumerically("~", dataLatency, 1e-15))
			Expect(tracker.Time(perf.StageNucaQueue)).To(BeZero())
		})
	})

	Context("write", func() {
		It("should charge only the tag lookup on a miss", func() {
			result := c.Write(0x1000, nil, nil, 0, true)

			Expect(result.Latency).To(BeNumerically("~", tagsLatency, 1e-15))
			Expect(result.HitWhere).To(Equal(Miss))
			Expect(result.Replaced).To(BeFalse())
			Expect(c.Counters()).To(Equal(Counters{Writes: 1, WriteMisses: 1}))

			writes, _ := c.Ledger().Writes(0x1000)
			Expect(writes).To(Equal(uint64(1)))
		})

		It("should install missed lines clean", func() {
			c.Write(0x1000, nil, nil, 0, true)

			block, found := c.Store().Peek(0x1000)
			Expect(found).To(BeTrue())
			Expect(block.State).To(Equal(tagging.Exclusive))
		})

		It("should dirty the line on a hit", func() {
			c.Write(0x1000, nil, nil, 0, true)
			result := c.Write(0x1000, nil, nil, 0, false)

			Expect(result.HitWhere).To(Equal(HitNucaCache))
			Expect(result.Latency).
				To(BeNumerically("~", tagsLatency+dataLatency, 1e-15))

			block, _ := c.Store().Peek(0x1000)
			Expect(block.State).To(Equal(tagging.Modified))
			Expect(c.Counters().Writes).To(Equal(uint64(1)))

			writes, _ := c.Ledger().Writes(0x1000)
			Expect(writes).To(Equal(uint64(2)))
		})

		It("should not request a write-back for a clean victim", func() {
			c.Write(0x1000, nil, nil, 0, true)
			result := c.Write(0x2000, nil, nil, 0, true)

			Expect(result.Replaced).To(BeTrue())
			Expect(result.Eviction).To(BeFalse())
			Expect(result.EvictAddress).To(Equal(uint64(0x1000)))
		})

		It("should hand out a dirty victim", func() {
			data := []byte{9, 8, 7}
			evictBuf := make([]byte, 64)

			c.Write(0x1000, nil, nil, 0, true)
			c.Write(0x1000, data, nil, 0, true)
			result := c.Write(0x2000, nil, evictBuf, 0, true)

			Expect(result.Eviction).To(BeTrue())
			Expect(result.EvictAddress).To(Equal(uint64(0x1000)))
			Expect(evictBuf[:3]).To(Equal(data))
		})

		It("should drain the victim into the histogram", func() {
			c.Write(0x1000, nil, nil, 0, true)
			c.Write(0x2000, nil, nil, 0, true)

			Expect(c.Aggregator().BucketCount(Bucket1Over2)).To(Equal(uint64(1)))
			Expect(c.Ledger().Tracked(0x1000)).To(BeFalse())
			Expect(c.LastOps().Get(0x1000)).To(Equal(OpInvalid))
		})

		It("should drain a line written at an offset", func() {
			c.Write(0x1008, nil, nil, 0, true)
			c.Write(0x2000, nil, nil, 0, true)

			Expect(c.Aggregator().BucketCount(Bucket1Over2)).To(Equal(uint64(1)))
			Expect(c.Aggregator().TransitionCount(EvictAfterWrite)).
				To(Equal(uint64(1)))
			Expect(c.Ledger().Tracked(0x1008)).To(BeFalse())
			Expect(c.Ledger().Tracked(0x1000)).To(BeFalse())
		})

		It("should not charge the write to a tracker", func() {
			c.Write(0x1000, nil, nil, 0, true)
			c.Write(0x1000, nil, nil, 1e-6, true)

			Expect(c.DummyPerf().Time(perf.StageNucaData)).
				To(BeNumerically("~", dataLatency, 1e-15))
		})
	})

	It("should count the eviction scenario", func() {
		c.Write(0xA000, nil, nil, 0, true)
		c.Write(0xB000, nil, nil, 1e-6, true)
		c.Read(0xB000, nil, 2e-6, nil, true)

		Expect(lookup("write-misses")).To(Equal(uint64(2)))
		Expect(lookup("reads")).To(Equal(uint64(1)))
		Expect(lookup("read-misses")).To(Equal(uint64(0)))
		Expect(lookup("rw_service_count[1/2]")).To(Equal(uint64(1)))
		Expect(lookup("evict-after-write")).To(Equal(uint64(1)))
		Expect(lookup("read-after-write")).To(Equal(uint64(1)))
	})

	It("should count accesses inside a line under the line address", func() {
		c.Write(0x1000, nil, nil, 0, true)
		_, hitWhere := c.Read(0x1010, nil, 0, nil, true)

		Expect(hitWhere).To(Equal(HitNucaCache))

		reads, found := c.Ledger().Reads(0x1000)
		Expect(found).To(BeTrue())
		Expect(reads).To(Equal(uint64(1)))
		Expect(c.Ledger().Tracked(0x1010)).To(BeFalse())
		Expect(c.LastOps().Get(0x1000)).To(Equal(OpRead))
		Expect(c.Aggregator().TransitionCount(ReadAfterWrite)).
			To(Equal(uint64(1)))
	})

	It("should count transitions", func() {
		c.Read(0x1000, nil, 0, nil, true)
		c.Read(0x1000, nil, 0, nil, true)
		c.Write(0x1000, nil, nil, 0, true)
		c.Write(0x1000, nil, nil, 0, true)

		t := c.Aggregator().Transitions()
		Expect(t).To(Equal(Transitions{
			ReadAfterRead:   1,
			WriteAfterRead:  1,
			WriteAfterWrite: 1,
		}))
	})

	It("should not drain lines inserted during warm-up", func() {
		store := c.Store().(*tagging.TagArray)

		store.SetWarmup(true)
		c.Write(0x1000, nil, nil, 0, false)
		store.SetWarmup(false)

		c.Write(0x2000, nil, nil, 0, true)

		Expect(c.Aggregator().Histogram()).To(Equal([NumBuckets]uint64{}))
		Expect(c.Aggregator().TransitionCount(EvictAfterWrite)).
			To(Equal(uint64(1)))
		Expect(c.Ledger().Tracked(0x1000)).To(BeTrue())
	})

	It("should skip drained addresses that were never written", func() {
		c.Write(0x1000, nil, nil, 0, true)
		c.Ledger().Erase(0x1000)
		c.Ledger().RecordRead(0x1000)

		c.Write(0x2000, nil, nil, 0, true)

		Expect(c.Aggregator().Histogram()).To(Equal([NumBuckets]uint64{}))
		Expect(c.Ledger().Tracked(0x1000)).To(BeFalse())
	})

	Context("read count source", func() {
		fill := func(c *Comp) {
			c.Write(0x1000, nil, nil, 0, true)
			for i := 0; i < 3; i++ {
				c.Read(0x1000, nil, 0, nil, true)
			}
			c.Write(0x2000, nil, nil, 0, true)
		}

		It("should use the evicted address's reads by default", func() {
			fill(c)

			Expect(c.Aggregator().BucketCount(Bucket1Over4)).To(Equal(uint64(1)))
		})

		It("should use the inserted address's reads if asked", func() {
			c = smallBuilder(1, 1).
				WithReadCountSource(ReadCountInserted).
				Build("NUCA")

			fill(c)

			Expect(c.Aggregator().BucketCount(Bucket1Over2)).To(Equal(uint64(1)))
		})
	})

	Context("with a queue model", func() {
		var queue *MockModel

		BeforeEach(func() {
			queue = NewMockModel(mockCtrl)
			c = smallBuilder(1, 1).
				WithBandwidth(64).
				WithQueueModel(queue).
				Build("NUCA")
		})

		It("should add the processing time and the queue delay", func() {
			queue.EXPECT().
				ComputeQueueDelay(gomock.Any(), gomock.Any(), 0).
				DoAndReturn(func(start, processing float64, _ int) float64 {
					Expect(processing).To(BeNumerically("~", 1e-9, 1e-15))
					return 2e-9
				})

			c.Write(0x1000, nil, nil, 0, true)
			tracker := perf.NewBreakdown()
			latency, _ := c.Read(0x1000, nil, 0, tracker, true)

			Expect(latency).To(BeNumerically("~",
				tagsLatency+1e-9+2e-9+dataLatency, 1e-15))
			Expect(tracker.Time(perf.StageNucaBus)).
				To(BeNumerically("~", 1e-9, 1e-15))
			Expect(tracker.Time(perf.StageNucaQueue)).
				To(BeNumerically("~", 2e-9, 1e-15))
		})

		It("should report stage boundaries in order", func() {
			tracker := NewMockTracker(mockCtrl)
			queue.EXPECT().
				ComputeQueueDelay(gomock.Any(), gomock.Any(), 0).
				Return(0.0)

			c.Write(0x1000, nil, nil, 0, true)

			gomock.InOrder(
				tracker.EXPECT().UpdateTime(gomock.Any(), perf.StageUnknown),
				tracker.EXPECT().UpdateTime(gomock.Any(), perf.StageNucaTags),
				tracker.EXPECT().UpdateTime(gomock.Any(), perf.StageUnknown),
				tracker.EXPECT().UpdateTime(gomock.Any(), perf.StageNucaBus),
				tracker.EXPECT().UpdateTime(gomock.Any(), perf.StageNucaQueue),
				tracker.EXPECT().UpdateTime(gomock.Any(), perf.StageNucaData),
			)

			c.Read(0x1000, nil, 0, tracker, true)
		})

		It("should register the queue statistics", func() {
			reg := stats.NewRegistry()
			queue.EXPECT().NumRequests().Return(uint64(5))
			queue.EXPECT().TotalQueueDelay().Return(3e-9)

			c.RegisterStats(reg)

			n, _ := reg.Lookup(queueStatsObject, 0, "num-requests")
			Expect(n).To(Equal(uint64(5)))

			d, _ := reg.Lookup(queueStatsObject, 0, "total-queue-delay-ps")
			Expect(d).To(Equal(uint64(3000)))
		})
	})

	Context("flush", func() {
		BeforeEach(func() {
			c = smallBuilder(4, 2).Build("NUCA")
		})

		It("should drain resident lines without evicting them", func() {
			c.Write(0x000, nil, nil, 0, true)
			c.Write(0x040, nil, nil, 0, true)
			c.Read(0x040, nil, 0, nil, true)
			c.Read(0x080, nil, 0, nil, true)

			n := c.FlushResident()

			Expect(n).To(Equal(2))
			Expect(c.Aggregator().BucketCount(Bucket1Over2)).To(Equal(uint64(2)))
			Expect(c.Ledger().Len()).To(Equal(0))

			_, found := c.Store().Peek(0x040)
			Expect(found).To(BeTrue())
		})

		It("should skip lines inserted during warm-up", func() {
			store := c.Store().(*tagging.TagArray)
			store.SetWarmup(true)
			c.Write(0x000, nil, nil, 0, false)
			store.SetWarmup(false)

			Expect(c.FlushResident()).To(Equal(0))
			Expect(c.Ledger().Tracked(0x000)).To(BeTrue())
		})
	})

	It("should panic on misaligned addresses in strict mode", func() {
		c = smallBuilder(1, 1).WithStrictAlignment(true).Build("NUCA")

		Expect(func() { c.Read(0x1001, nil, 0, nil, true) }).To(Panic())
		Expect(func() { c.Read(0x1000, nil, 0, nil, true) }).NotTo(Panic())
	})
})

var _ = Describe("Builder", func() {
	It("should reject a queue model without bandwidth", func() {
		Expect(func() {
			smallBuilder(1, 1).WithQueueModelEnabled(true).Build("NUCA")
		}).To(Panic())
	})

	It("should reject unknown policies", func() {
		Expect(func() {
			smallBuilder(1, 1).WithReplacePolicy("mru").Build("NUCA")
		}).To(Panic())
	})

	It("should build the configured queue model", func() {
		c := smallBuilder(1, 1).
			WithBandwidth(64).
			WithQueueModelEnabled(true).
			WithQueueModelKind("contention").
			WithQueueChannels(2).
			Build("NUCA")

		Expect(c.queueModel).NotTo(BeNil())
	})

	It("should derive the latency parameters", func() {
		c := smallBuilder(1, 1).WithPCMWriteLatency(100).Build("NUCA")

		Expect(c.Params().TagsAccess.Time()).To(BeNumerically("~", tagsLatency, 1e-15))
		Expect(c.Params().PCMWrite.Cycles).To(Equal(uint64(100)))
		Expect(c.Name()).To(Equal("NUCA"))
	})

	It("should parse read count sources", func() {
		s, err := ParseReadCountSource("inserted")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(ReadCountInserted))

		_, err = ParseReadCountSource("both")
		Expect(err).To(HaveOccurred())
	})
})
