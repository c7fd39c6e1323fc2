package nuca

// LastOp is the most recent operation seen on an address.
type LastOp int

// Operations tracked per address. OpInvalid stands for an eviction.
const (
	OpInvalid LastOp = iota
	OpRead
	OpWrite
)

func (o LastOp) String() string {
	switch o {
	case OpInvalid:
		return "invalid"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Transition is a pair of consecutive operations on one address.
type Transition int

// Counted transitions. TransitionNone is returned when the previous state was
// OpInvalid and nothing is counted.
const (
	TransitionNone Transition = iota
	ReadAfterRead
	ReadAfterWrite
	WriteAfterRead
	WriteAfterWrite
	EvictAfterRead
	EvictAfterWrite
	numTransitions
)

var transitionNames = [numTransitions]string{
	"none",
	"read-after-read",
	"read-after-write",
	"write-after-read",
	"write-after-write",
	"evict-after-read",
	"evict-after-write",
}

func (t Transition) String() string {
	if t < 0 || t >= numTransitions {
		return "invalid"
	}

	return transitionNames[t]
}

// CountedTransitions lists the transitions that have a counter.
func CountedTransitions() []Transition {
	return []Transition{
		ReadAfterRead,
		ReadAfterWrite,
		WriteAfterRead,
		WriteAfterWrite,
		EvictAfterRead,
		EvictAfterWrite,
	}
}

// transitionTable is indexed by [old][new].
var transitionTable = [3][3]Transition{
	OpInvalid: {TransitionNone, TransitionNone, TransitionNone},
	OpRead:    {EvictAfterRead, ReadAfterRead, WriteAfterRead},
	OpWrite:   {EvictAfterWrite, ReadAfterWrite, WriteAfterWrite},
}

// LastOpTracker remembers the last operation on every address it has seen.
// Entries survive evictions; an eviction is recorded as OpInvalid.
type LastOpTracker struct {
	lastOp map[uint64]LastOp
}

// NewLastOpTracker creates an empty tracker.
func NewLastOpTracker() *LastOpTracker {
	return &LastOpTracker{
		lastOp: make(map[uint64]LastOp),
	}
}

// Update records op on addr and returns the transition it forms with the
// previous operation.
func (t *LastOpTracker) Update(addr uint64, op LastOp) Transition {
	old := t.lastOp[addr]
	t.lastOp[addr] = op

	return transitionTable[old][op]
}

// Get returns the last operation on addr. Unseen addresses are OpInvalid.
func (t *LastOpTracker) Get(addr uint64) LastOp {
	return t.lastOp[addr]
}

// Len returns the number of addresses seen.
func (t *LastOpTracker) Len() int {
	return len(t.lastOp)
}
