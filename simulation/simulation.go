// Package simulation drives a set of per-core NUCA caches through a memory
// access trace.
package simulation

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/nucasim/datarecording"
	"github.com/sarchlab/nucasim/mem/cache/nuca"
	"github.com/sarchlab/nucasim/mem/cache/tagging"
	"github.com/sarchlab/nucasim/mem/perf"
	"github.com/sarchlab/nucasim/mem/trace"
	"github.com/sarchlab/nucasim/monitoring"
	"github.com/sarchlab/nucasim/sim"
	"github.com/sarchlab/nucasim/sim/hooking"
	"github.com/sarchlab/nucasim/sim/naming"
	"github.com/sarchlab/nucasim/stats"
)

// A Simulation owns the caches of every core and serves trace accesses to
// them. It is the hook domain of the region-of-interest boundaries. All
// methods are safe for concurrent use.
type Simulation struct {
	hooking.HookableBase

	lock sync.Mutex

	id         string
	caches     []*nuca.Comp
	aggregator *nuca.Aggregator
	registry   *stats.Registry
	logger     logrus.FieldLogger

	dataRecorder     datarecording.DataRecorder
	accessRecorder   trace.AccessRecorder
	snapshotRecorder *stats.SnapshotRecorder
	monitor          *monitoring.Monitor

	components    []naming.Named
	compNameIndex map[string]int

	warmupAccesses uint64
	served         uint64
	now            sim.VTimeInSec
	roiBegun       bool
	roiEnded       bool
	terminated     bool
}

type warmable interface {
	SetWarmup(warmup bool)
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Caches returns the cache of every core, indexed by core ID.
func (s *Simulation) Caches() []*nuca.Comp {
	return s.caches
}

// Aggregator returns the aggregator shared by the caches.
func (s *Simulation) Aggregator() *nuca.Aggregator {
	return s.aggregator
}

// Registry returns the statistics registry.
func (s *Simulation) Registry() *stats.Registry {
	return s.registry
}

// GetDataRecorder returns the data recorder, or nil if recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c naming.Named) {
	name := c.Name()
	if _, found := s.compNameIndex[name]; found {
		panic("component " + name + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[name] = len(s.components) - 1
}

// Components returns all the registered components.
func (s *Simulation) Components() []naming.Named {
	return s.components
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) naming.Named {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}

// Served returns the number of accesses served so far.
func (s *Simulation) Served() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.served
}

// InROI tells if the region of interest has begun and not yet ended.
func (s *Simulation) InROI() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.roiBegun && !s.roiEnded
}

// Access serves one trace access and returns its latency and where it hit.
// The first warm-up accesses fill the caches without being counted.
func (s *Simulation) Access(acc trace.Access) (sim.VTimeInSec, nuca.HitWhere, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.roiEnded {
		return 0, nuca.Miss, errors.New("the region of interest has ended")
	}

	if acc.Core < 0 || acc.Core >= len(s.caches) {
		return 0, nuca.Miss, errors.Errorf(
			"access to core %d, but only %d cores are simulated",
			acc.Core, len(s.caches))
	}

	warmup := s.served < s.warmupAccesses
	if !warmup && !s.roiBegun {
		s.beginROI()
	}

	c := s.caches[acc.Core]
	s.setWarmup(c, warmup)

	if acc.Time > s.now {
		s.now = acc.Time
	}

	var (
		latency   sim.VTimeInSec
		hitWhere  nuca.HitWhere
		breakdown *perf.Breakdown
	)

	switch acc.Kind {
	case tagging.Load:
		breakdown = perf.NewBreakdown()
		latency, hitWhere = c.Read(acc.Address, nil, acc.Time, breakdown, !warmup)
	case tagging.Store:
		result := c.Write(acc.Address, nil, nil, acc.Time, !warmup)
		latency, hitWhere = result.Latency, result.HitWhere
	default:
		return 0, nuca.Miss, errors.Errorf("unknown access kind %d", acc.Kind)
	}

	s.served++

	if s.accessRecorder != nil {
		rec := trace.MakeAccessRecord(
			c.Name(), acc, latency, hitWhere.String(), breakdown)
		rec.Warmup = warmup
		s.accessRecorder.RecordAccess(rec)
	}

	return latency, hitWhere, nil
}

func (s *Simulation) setWarmup(c *nuca.Comp, warmup bool) {
	if w, ok := c.Store().(warmable); ok {
		w.SetWarmup(warmup)
	}
}

func (s *Simulation) beginROI() {
	s.roiBegun = true

	s.logger.WithField("served", s.served).Info("Region of interest begins")

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    hooking.HookPosROIBegin,
		Now:    s.now,
	})
}

// Replay serves every access of a trace. It stops early if the context is
// cancelled.
func (s *Simulation) Replay(ctx context.Context, r *trace.Reader) error {
	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("Replay", 0)
		defer s.monitor.CompleteProgressBar(bar)
	}

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		acc, err := r.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return err
		}

		if _, _, err = s.Access(acc); err != nil {
			return err
		}

		if bar != nil {
			bar.IncrementFinished(1)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"served":  s.Served(),
		"elapsed": time.Since(start).String(),
	}).Info("Trace replayed")

	return nil
}

// EndROI marks the end of the region of interest. The hooks of the end
// position fire only once; later calls do nothing.
func (s *Simulation) EndROI() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.endROI()
}

func (s *Simulation) endROI() {
	if s.roiEnded {
		return
	}

	if !s.roiBegun {
		s.beginROI()
	}

	s.roiEnded = true

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    hooking.HookPosROIEnd,
		Now:    s.now,
	})
}

// Snapshot reads every statistic at a consistent point.
func (s *Simulation) Snapshot() []stats.Entry {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.registry.Snapshot()
}

// Report writes the statistics as text.
func (s *Simulation) Report(w io.Writer) error {
	return stats.Dump(w, s.Snapshot())
}

// Terminate ends the region of interest if needed, records the final
// statistics and releases the recorder and the monitor.
func (s *Simulation) Terminate() {
	if !s.terminate() || s.monitor == nil {
		return
	}

	// Handlers of the monitor take the simulation lock.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.monitor.StopServer(ctx); err != nil {
		s.logger.WithError(err).Warn("Cannot stop the monitoring server")
	}
}

func (s *Simulation) terminate() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.terminated {
		return false
	}

	s.terminated = true
	s.endROI()

	if s.snapshotRecorder != nil {
		s.snapshotRecorder.Record(s.now, s.registry.Snapshot())
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil {
			s.logger.WithError(err).Error("Cannot close the recorder")
		}
	}

	return true
}
