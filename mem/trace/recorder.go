package trace

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/nucasim/datarecording"
	"github.com/sarchlab/nucasim/mem/cache/tagging"
	"github.com/sarchlab/nucasim/mem/perf"
	"github.com/sarchlab/nucasim/sim/id"
)

// AccessTableName is the table that per-access records are written to.
const AccessTableName = "nuca_accesses"

// AccessRecord is the outcome of one served access.
type AccessRecord struct {
	ID        string
	Location  string
	Core      int
	What      string
	Address   uint64
	StartTime float64
	EndTime   float64
	HitWhere  string
	Warmup    bool
	TagsTime  float64
	BusTime   float64
	QueueTime float64
	DataTime  float64
}

// MakeAccessRecord fills a record from an access and its outcome. The stage
// times are taken from the breakdown if it is not nil.
func MakeAccessRecord(
	location string,
	acc Access,
	latency float64,
	hitWhere string,
	breakdown *perf.Breakdown,
) AccessRecord {
	what := "read"
	if acc.Kind == tagging.Store {
		what = "write"
	}

	rec := AccessRecord{
		Location:  location,
		Core:      acc.Core,
		What:      what,
		Address:   acc.Address,
		StartTime: acc.Time,
		EndTime:   acc.Time + latency,
		HitWhere:  hitWhere,
	}

	if breakdown != nil {
		rec.TagsTime = breakdown.Time(perf.StageNucaTags)
		rec.BusTime = breakdown.Time(perf.StageNucaBus)
		rec.QueueTime = breakdown.Time(perf.StageNucaQueue)
		rec.DataTime = breakdown.Time(perf.StageNucaData)
	}

	return rec
}

// An AccessRecorder keeps the records of served accesses.
type AccessRecorder interface {
	RecordAccess(rec AccessRecord)
}

// A dbRecorder writes access records into a table of a data recorder.
type dbRecorder struct {
	dataRecorder datarecording.DataRecorder
	ids          id.Generator
}

// NewDBRecorder creates a recorder that writes into the nuca_accesses table.
// Records without an ID get one from ids.
func NewDBRecorder(
	dataRecorder datarecording.DataRecorder,
	ids id.Generator,
) AccessRecorder {
	r := &dbRecorder{
		dataRecorder: dataRecorder,
		ids:          ids,
	}

	r.dataRecorder.CreateTable(AccessTableName, AccessRecord{})

	return r
}

func (r *dbRecorder) RecordAccess(rec AccessRecord) {
	if rec.ID == "" {
		rec.ID = r.ids.Generate()
	}

	r.dataRecorder.InsertData(AccessTableName, rec)
}

// A logRecorder prints access records as debug messages.
type logRecorder struct {
	logger logrus.FieldLogger
}

// NewLogRecorder creates a recorder that logs every access.
func NewLogRecorder(logger logrus.FieldLogger) AccessRecorder {
	return &logRecorder{logger: logger}
}

func (r *logRecorder) RecordAccess(rec AccessRecord) {
	r.logger.WithFields(logrus.Fields{
		"location": rec.Location,
		"core":     rec.Core,
		"what":     rec.What,
		"address":  rec.Address,
		"start":    rec.StartTime,
		"end":      rec.EndTime,
		"hit":      rec.HitWhere,
	}).Debug("access")
}
