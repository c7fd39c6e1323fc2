package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	lock sync.Mutex

	id         string
	name       string
	startTime  time.Time
	total      uint64
	finished   uint64
	inProgress uint64
}

// Progress is a snapshot of a progress bar.
type Progress struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.inProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.inProgress -= amount
	b.finished += amount
}

// Progress returns the current state of the bar.
func (b *ProgressBar) Progress() Progress {
	b.lock.Lock()
	defer b.lock.Unlock()

	return Progress{
		ID:         b.id,
		Name:       b.name,
		StartTime:  b.startTime,
		Total:      b.total,
		Finished:   b.finished,
		InProgress: b.inProgress,
	}
}
