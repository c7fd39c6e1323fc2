package tagging

// AccessKind tells if an access reads or writes the line.
type AccessKind int

// Access kinds.
const (
	Load AccessKind = iota
	Store
)

func (k AccessKind) String() string {
	switch k {
	case Load:
		return "load"
	case Store:
		return "store"
	default:
		return "unknown"
	}
}

// CoherenceState is the MOESI state a line is held in. The tag array only
// stores it; the coherence protocol that drives it lives elsewhere.
type CoherenceState int

// Coherence states.
const (
	Invalid CoherenceState = iota
	Shared
	Exclusive
	Owned
	Modified
)

func (s CoherenceState) String() string {
	switch s {
	case Invalid:
		return "I"
	case Shared:
		return "S"
	case Exclusive:
		return "E"
	case Owned:
		return "O"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

// IsDirty tells if a line in this state must be written back when evicted.
func (s CoherenceState) IsDirty() bool {
	return s == Modified
}
