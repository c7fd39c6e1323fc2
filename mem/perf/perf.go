// Package perf records where the time of a memory access is spent.
package perf

import (
	"github.com/sarchlab/nucasim/sim"
)

// Stage names a step of a memory access.
type Stage int

// Stages of a NUCA access.
const (
	StageUnknown Stage = iota
	StageNucaTags
	StageNucaBus
	StageNucaQueue
	StageNucaData
	numStages
)

var stageNames = [numStages]string{
	"unknown",
	"nuca-tags",
	"nuca-bus",
	"nuca-queue",
	"nuca-data",
}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return "invalid"
	}

	return stageNames[s]
}

// AllStages returns every stage in order.
func AllStages() []Stage {
	stages := make([]Stage, 0, numStages)
	for s := StageUnknown; s < numStages; s++ {
		stages = append(stages, s)
	}

	return stages
}

// A Tracker receives the time at which an access crosses a stage boundary.
type Tracker interface {
	// UpdateTime tells that the access has progressed up to time t, and that
	// the time since the previous update was spent in stage.
	UpdateTime(t sim.VTimeInSec, stage Stage)
}

// Discard is a Tracker that ignores every update.
var Discard Tracker = discard{}

type discard struct{}

func (discard) UpdateTime(sim.VTimeInSec, Stage) {}

// Breakdown accumulates the time spent in each stage. Updates that do not
// move time forward are ignored.
type Breakdown struct {
	started  bool
	lastTime sim.VTimeInSec
	times    [numStages]sim.VTimeInSec
}

// NewBreakdown creates an empty breakdown.
func NewBreakdown() *Breakdown {
	return &Breakdown{}
}

// Reset clears the breakdown and starts it at time t.
func (b *Breakdown) Reset(t sim.VTimeInSec) {
	b.times = [numStages]sim.VTimeInSec{}
	b.lastTime = t
	b.started = true
}

// UpdateTime charges the time since the last update to stage.
func (b *Breakdown) UpdateTime(t sim.VTimeInSec, stage Stage) {
	if !b.started {
		b.Reset(t)
		return
	}

	if t <= b.lastTime {
		return
	}

	b.times[stage] += t - b.lastTime
	b.lastTime = t
}

// Time returns the time charged to a stage.
func (b *Breakdown) Time(stage Stage) sim.VTimeInSec {
	return b.times[stage]
}

// LastTime returns the latest time the breakdown has seen.
func (b *Breakdown) LastTime() sim.VTimeInSec {
	return b.lastTime
}

// Total returns the sum over all stages.
func (b *Breakdown) Total() sim.VTimeInSec {
	var total sim.VTimeInSec
	for _, t := range b.times {
		total += t
	}

	return total
}

// Add folds another breakdown into this one.
func (b *Breakdown) Add(other *Breakdown) {
	for s := range b.times {
		b.times[s] += other.times[s]
	}
}
