package stats

import (
	"github.com/sarchlab/nucasim/datarecording"
	"github.com/sarchlab/nucasim/sim"
)

// TableName is the table that snapshots are recorded into.
const TableName = "nuca_stats"

type statsRow struct {
	Time     float64
	Object   string
	Instance int
	Metric   string
	Value    uint64
}

// SnapshotRecorder writes snapshots into a data recorder.
type SnapshotRecorder struct {
	recorder     datarecording.DataRecorder
	tableCreated bool
}

// NewSnapshotRecorder creates a SnapshotRecorder.
func NewSnapshotRecorder(
	recorder datarecording.DataRecorder,
) *SnapshotRecorder {
	return &SnapshotRecorder{recorder: recorder}
}

// Record stores every entry of a snapshot taken at the given time.
func (r *SnapshotRecorder) Record(now sim.VTimeInSec, entries []Entry) {
	if !r.tableCreated {
		r.recorder.CreateTable(TableName, statsRow{})
		r.tableCreated = true
	}

	for _, e := range entries {
		r.recorder.InsertData(TableName, statsRow{
			Time:     now,
			Object:   e.Object,
			Instance: e.Instance,
			Metric:   e.Metric,
			Value:    e.Value,
		})
	}

	r.recorder.Flush()
}
