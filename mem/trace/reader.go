// Package trace reads memory access traces and records the accesses a
// simulation serves.
package trace

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/nucasim/mem/cache/tagging"
	"github.com/sarchlab/nucasim/sim"
)

// Access is one record of a trace.
type Access struct {
	Time    sim.VTimeInSec
	Core    int
	Kind    tagging.AccessKind
	Address uint64
}

// Reader parses a trace in CSV form. Each line holds the time in
// nanoseconds, the core ID, R or W, and the address, which may be written in
// hexadecimal with a 0x prefix. Lines starting with # are ignored.
type Reader struct {
	csv *csv.Reader
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	c := csv.NewReader(r)
	c.Comment = '#'
	c.FieldsPerRecord = 4
	c.TrimLeadingSpace = true
	c.ReuseRecord = true

	return &Reader{csv: c}
}

// Next returns the next access. It returns io.EOF after the last one.
func (r *Reader) Next() (Access, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return Access{}, io.EOF
	}

	if err != nil {
		return Access{}, errors.Wrap(err, "malformed trace")
	}

	line, _ := r.csv.FieldPos(0)

	acc, err := parseRecord(record)
	if err != nil {
		return Access{}, errors.Wrapf(err, "trace line %d", line)
	}

	return acc, nil
}

// ReadAll returns every remaining access.
func (r *Reader) ReadAll() ([]Access, error) {
	var accesses []Access

	for {
		acc, err := r.Next()
		if err == io.EOF {
			return accesses, nil
		}

		if err != nil {
			return nil, err
		}

		accesses = append(accesses, acc)
	}
}

func parseRecord(record []string) (Access, error) {
	var acc Access

	ns, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err != nil || ns < 0 {
		return acc, errors.Errorf("invalid time %q", record[0])
	}

	acc.Time = ns * 1e-9

	acc.Core, err = strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil || acc.Core < 0 {
		return acc, errors.Errorf("invalid core %q", record[1])
	}

	switch strings.ToUpper(strings.TrimSpace(record[2])) {
	case "R":
		acc.Kind = tagging.Load
	case "W":
		acc.Kind = tagging.Store
	default:
		return acc, errors.Errorf("invalid operation %q", record[2])
	}

	acc.Address, err = strconv.ParseUint(strings.TrimSpace(record[3]), 0, 64)
	if err != nil {
		return acc, errors.Errorf("invalid address %q", record[3])
	}

	return acc, nil
}
