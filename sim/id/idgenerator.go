// Package id generates IDs for simulation records.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces IDs that are unique within one simulation.
type Generator interface {
	Generate() string
}

// NewSequential returns a generator that produces prefix1, prefix2, ...
// Sequential IDs make runs reproducible.
func NewSequential(prefix string) Generator {
	return &sequentialGenerator{prefix: prefix}
}

// NewUnique returns a generator of globally unique IDs.
func NewUnique() Generator {
	return uniqueGenerator{}
}

type sequentialGenerator struct {
	prefix string
	nextID uint64
}

func (g *sequentialGenerator) Generate() string {
	n := atomic.AddUint64(&g.nextID, 1)
	return g.prefix + strconv.FormatUint(n, 10)
}

type uniqueGenerator struct{}

func (uniqueGenerator) Generate() string {
	return xid.New().String()
}
