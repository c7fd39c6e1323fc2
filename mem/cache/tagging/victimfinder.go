package tagging

import "fmt"

// A VictimFinder decides which block should be evicted and keeps the
// replacement metadata of each set up to date.
type VictimFinder interface {
	// FindVictim returns the way that a new line should be placed into.
	FindVictim(set *Set) int

	// Touch is called when a resident block is accessed.
	Touch(set *Set, wayID int)

	// Fill is called when a new line is placed into a way.
	Fill(set *Set, wayID int)
}

// NewVictimFinder creates a victim finder by its configuration name.
func NewVictimFinder(policy string) (VictimFinder, error) {
	switch policy {
	case "", "lru":
		return NewLRUVictimFinder(), nil
	case "srrip":
		return NewSRRIPVictimFinder(), nil
	default:
		return nil, fmt.Errorf("unknown replacement policy %q", policy)
	}
}

// LRUVictimFinder evicts the least recently used block to evict
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the least recently used block in a set
func (e *LRUVictimFinder) FindVictim(set *Set) int {
	// First try evicting an empty block
	for _, wayID := range set.LRUQueue {
		if !set.Blocks[wayID].IsValid {
			return wayID
		}
	}

	return set.LRUQueue[0]
}

// Touch moves the block to the end of the LRUQueue
func (e *LRUVictimFinder) Touch(set *Set, wayID int) {
	set.moveToMRU(wayID)
}

// Fill treats a newly filled block as the most recently used one.
func (e *LRUVictimFinder) Fill(set *Set, wayID int) {
	set.moveToMRU(wayID)
}

const (
	rrpvMax    = uint8(3)
	insertRRPV = uint8(2)
	hitRRPV    = uint8(0)
)

// SRRIPVictimFinder implements static re-reference interval prediction with a
// 2-bit counter per block. A block whose counter reaches rrpvMax is evicted;
// if none has, every counter in the set ages until one does.
type SRRIPVictimFinder struct {
}

// NewSRRIPVictimFinder returns a newly constructed SRRIP evictor.
func NewSRRIPVictimFinder() *SRRIPVictimFinder {
	return &SRRIPVictimFinder{}
}

// FindVictim returns the SRRIP-selected victim in the set.
func (e *SRRIPVictimFinder) FindVictim(set *Set) int {
	for wayID := range set.Blocks {
		if !set.Blocks[wayID].IsValid {
			return wayID
		}
	}

	for {
		for wayID := range set.Blocks {
			if set.RRPV[wayID] >= rrpvMax {
				return wayID
			}
		}

		for wayID := range set.RRPV {
			set.RRPV[wayID]++
		}
	}
}

// Touch protects a block that has just been hit.
func (e *SRRIPVictimFinder) Touch(set *Set, wayID int) {
	set.RRPV[wayID] = hitRRPV
}

// Fill inserts a block with a long re-reference prediction.
func (e *SRRIPVictimFinder) Fill(set *Set, wayID int) {
	set.RRPV[wayID] = insertRRPV
}
