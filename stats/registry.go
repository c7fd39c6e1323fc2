// Package stats keeps the named counters that simulation components expose
// and turns them into snapshots for reporting.
package stats

import (
	"fmt"
	"io"
	"sync"
)

// Entry is the value of one metric at snapshot time.
type Entry struct {
	Object   string
	Instance int
	Metric   string
	Value    uint64
}

// FullName returns the name of the metric in the form object[instance].metric.
func (e Entry) FullName() string {
	return fmt.Sprintf("%s[%d].%s", e.Object, e.Instance, e.Metric)
}

// A Source can produce a snapshot of metrics.
type Source interface {
	Snapshot() []Entry
}

type metric struct {
	object   string
	instance int
	name     string
	value    func() uint64
}

func (m metric) key() string {
	return fmt.Sprintf("%s[%d].%s", m.object, m.instance, m.name)
}

// Registry holds the metrics that components register. Metric values are
// read when a snapshot is taken. The registry does not synchronize the
// reads; callers that update counters from another goroutine must take
// snapshots under their own lock.
type Registry struct {
	lock    sync.Mutex
	metrics []metric
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds a metric whose value is produced by fn. Registering the same
// object, instance, and metric twice panics.
func (r *Registry) Register(
	object string,
	instance int,
	name string,
	fn func() uint64,
) {
	r.lock.Lock()
	defer r.lock.Unlock()

	m := metric{
		object:   object,
		instance: instance,
		name:     name,
		value:    fn,
	}

	if _, found := r.index[m.key()]; found {
		panic(fmt.Sprintf("metric %s already registered", m.key()))
	}

	r.index[m.key()] = len(r.metrics)
	r.metrics = append(r.metrics, m)
}

// RegisterCounter adds a metric that reads a counter variable.
func (r *Registry) RegisterCounter(
	object string,
	instance int,
	name string,
	counter *uint64,
) {
	r.Register(object, instance, name, func() uint64 { return *counter })
}

// NumMetrics returns the number of registered metrics.
func (r *Registry) NumMetrics() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.metrics)
}

// Snapshot reads every metric, in registration order.
func (r *Registry) Snapshot() []Entry {
	r.lock.Lock()
	defer r.lock.Unlock()

	entries := make([]Entry, 0, len(r.metrics))
	for _, m := range r.metrics {
		entries = append(entries, Entry{
			Object:   m.object,
			Instance: m.instance,
			Metric:   m.name,
			Value:    m.value(),
		})
	}

	return entries
}

// Lookup reads a single metric.
func (r *Registry) Lookup(
	object string,
	instance int,
	name string,
) (uint64, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	i, found := r.index[metric{
		object:   object,
		instance: instance,
		name:     name,
	}.key()]
	if !found {
		return 0, false
	}

	return r.metrics[i].value(), true
}

// Dump writes a snapshot as text, one "name = value" line per metric.
func Dump(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		_, err := fmt.Fprintf(w, "%s = %d\n", e.FullName(), e.Value)
		if err != nil {
			return err
		}
	}

	return nil
}
