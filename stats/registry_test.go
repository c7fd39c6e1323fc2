package stats

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Registry", func() {
	var (
		r     *Registry
		reads uint64
	)

	BeforeEach(func() {
		r = NewRegistry()
		reads = 0
		r.RegisterCounter("nuca-cache", 0, "reads", &reads)
		r.Register("nuca-cache", 0, "constant", func() uint64 { return 42 })
	})

	It("should read counters at snapshot time", func() {
		reads = 3

		Expect(r.Snapshot()).To(Equal([]Entry{
			{Object: "nuca-cache", Instance: 0, Metric: "reads", Value: 3},
			{Object: "nuca-cache", Instance: 0, Metric: "constant", Value: 42},
		}))
	})

	It("should look up a single metric", func() {
		reads = 5

		v, found := r.Lookup("nuca-cache", 0, "reads")
		Expect(found).To(BeTrue())
		Expect(v).To(Equal(uint64(5)))

		_, found = r.Lookup("nuca-cache", 1, "reads")
		Expect(found).To(BeFalse())
	})

	It("should panic on duplicated registration", func() {
		Expect(func() {
			r.RegisterCounter("nuca-cache", 0, "reads", &reads)
		}).To(Panic())
	})

	It("should allow the same metric on another instance", func() {
		other := uint64(0)
		r.RegisterCounter("nuca-cache", 1, "reads", &other)

		Expect(r.NumMetrics()).To(Equal(3))
	})

	It("should dump as text", func() {
		reads = 7
		buf := new(bytes.Buffer)

		err := Dump(buf, r.Snapshot())

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal(
			"nuca-cache[0].reads = 7\nnuca-cache[0].constant = 42\n"))
	})
})

var _ = Describe("Collector", func() {
	It("should expose every entry as a counter", func() {
		r := NewRegistry()
		hits := uint64(9)
		r.RegisterCounter("nuca-cache", 0, "reads", &hits)

		c := NewCollector(r)

		Expect(testutil.CollectAndCount(c)).To(Equal(1))
		Expect(testutil.CollectAndCompare(c, strings.NewReader(`
# HELP nucasim_stat NUCA cache simulation statistics
# TYPE nucasim_stat counter
nucasim_stat{instance="0",metric="reads",object="nuca-cache"} 9
`))).To(Succeed())
	})
})

var _ = Describe("SnapshotRecorder", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockDataRecorder
		sr       *SnapshotRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)
		sr = NewSnapshotRecorder(recorder)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should create the table once and insert every entry", func() {
		entries := []Entry{
			{Object: "nuca-cache", Instance: 0, Metric: "reads", Value: 1},
			{Object: "nuca-cache", Instance: 0, Metric: "writes", Value: 2},
		}

		recorder.EXPECT().CreateTable(TableName, statsRow{}).Times(1)
		recorder.EXPECT().InsertData(TableName, statsRow{
			Time: 1, Object: "nuca-cache", Metric: "reads", Value: 1,
		})
		recorder.EXPECT().InsertData(TableName, statsRow{
			Time: 1, Object: "nuca-cache", Metric: "writes", Value: 2,
		})
		recorder.EXPECT().InsertData(TableName, gomock.Any()).Times(2)
		recorder.EXPECT().Flush().Times(2)

		sr.Record(1, entries)
		sr.Record(2, entries)
	})
})
