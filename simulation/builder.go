package simulation

import (
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/nucasim/config"
	"github.com/sarchlab/nucasim/datarecording"
	"github.com/sarchlab/nucasim/mem/cache/nuca"
	"github.com/sarchlab/nucasim/mem/trace"
	"github.com/sarchlab/nucasim/monitoring"
	"github.com/sarchlab/nucasim/sim/id"
	"github.com/sarchlab/nucasim/sim/naming"
	"github.com/sarchlab/nucasim/stats"
)

// Builder can be used to build a simulation.
type Builder struct {
	nucaBuilder    nuca.Builder
	aggregator     *nuca.Aggregator
	numCores       int
	warmupAccesses uint64
	recordOn       bool
	recordPath     string
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	logger         logrus.FieldLogger
}

// MakeBuilder creates a new builder of a single-core simulation.
func MakeBuilder() Builder {
	return Builder{
		nucaBuilder: nuca.MakeBuilder(),
		numCores:    1,
	}
}

// MakeBuilderFromConfig creates a builder that follows a configuration.
func MakeBuilderFromConfig(c *config.Config) (Builder, error) {
	if err := c.Validate(); err != nil {
		return Builder{}, err
	}

	nucaBuilder, err := c.NUCABuilder()
	if err != nil {
		return Builder{}, err
	}

	agg, err := c.NewAggregator()
	if err != nil {
		return Builder{}, err
	}

	b := MakeBuilder().
		WithNUCABuilder(nucaBuilder).
		WithAggregator(agg).
		WithNumCores(c.Simulation.NumCores).
		WithWarmupAccesses(c.Simulation.WarmupAccesses)

	if c.Simulation.RecordPath != "" {
		b = b.WithRecording(c.Simulation.RecordPath)
	}

	if c.Simulation.Monitor {
		b = b.WithMonitoring(c.Simulation.MonitorPort).
			WithOpenBrowser(c.Simulation.OpenBrowser)
	}

	return b, nil
}

// WithNUCABuilder sets the builder that creates the per-core caches.
func (b Builder) WithNUCABuilder(nb nuca.Builder) Builder {
	b.nucaBuilder = nb
	return b
}

// WithAggregator sets the aggregator shared by the caches.
func (b Builder) WithAggregator(a *nuca.Aggregator) Builder {
	b.aggregator = a
	return b
}

// WithNumCores sets the number of simulated cores.
func (b Builder) WithNumCores(n int) Builder {
	b.numCores = n
	return b
}

// WithWarmupAccesses sets how many leading accesses only warm the caches up.
func (b Builder) WithWarmupAccesses(n uint64) Builder {
	b.warmupAccesses = n
	return b
}

// WithRecording records statistics and accesses into <path>.sqlite3. An empty
// path selects a generated name.
func (b Builder) WithRecording(path string) Builder {
	b.recordOn = true
	b.recordPath = path

	return b
}

// WithMonitoring starts a monitoring server on the given port. Port 0 selects
// a random port.
func (b Builder) WithMonitoring(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithOpenBrowser opens the monitoring page when the server starts.
func (b Builder) WithOpenBrowser(open bool) Builder {
	b.openBrowser = open
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numCores <= 0 {
		panic("a simulation needs at least one core")
	}

	if !b.monitorOn && b.openBrowser {
		panic("cannot open a browser when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:             xid.New().String(),
		registry:       stats.NewRegistry(),
		warmupAccesses: b.warmupAccesses,
		logger:         b.logger,
		compNameIndex:  make(map[string]int),
	}

	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	s.aggregator = b.aggregator
	if s.aggregator == nil {
		s.aggregator = nuca.NewAggregator()
	}

	s.aggregator.WithLogger(s.logger)

	for core := 0; core < b.numCores; core++ {
		c := b.nucaBuilder.
			WithCoreID(core).
			WithAggregator(s.aggregator).
			WithStatsRegistry(s.registry).
			WithHookDomain(s).
			WithLogger(s.logger).
			Build(naming.BuildNameWithIndex("Sim", "NUCA", core))

		s.caches = append(s.caches, c)
		s.RegisterComponent(c)
	}

	if b.recordOn {
		s.buildRecorders(b.recordPath)
	}

	if b.monitorOn {
		s.buildMonitor(b.monitorPort, b.openBrowser)
	}

	s.logger.WithFields(logrus.Fields{
		"id":     s.id,
		"cores":  b.numCores,
		"warmup": b.warmupAccesses,
	}).Info("Simulation created")

	return s
}

func (s *Simulation) buildRecorders(path string) {
	if path == "" {
		path = "nucasim_" + s.id
	}

	s.dataRecorder = datarecording.New(path)
	s.accessRecorder = trace.NewDBRecorder(s.dataRecorder, id.NewSequential(""))
	s.snapshotRecorder = stats.NewSnapshotRecorder(s.dataRecorder)

	s.logger.WithField("file", path+".sqlite3").Info("Recording simulation")
}

func (s *Simulation) buildMonitor(port int, openBrowser bool) {
	s.monitor = monitoring.NewMonitor().
		WithLogger(s.logger).
		WithPortNumber(port).
		WithOpenBrowser(openBrowser).
		WithSimulationLock(&s.lock)

	for _, c := range s.components {
		s.monitor.RegisterComponent(c)
	}

	s.monitor.RegisterStats(s.registry)

	if _, err := s.monitor.StartServer(); err != nil {
		s.logger.WithError(err).Error("Cannot start the monitoring server")
	}
}
