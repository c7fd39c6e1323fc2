// Package tagging provides the set-associative tag and data array that backs a
// cache model.
package tagging

import (
	"fmt"
	"log"

	"github.com/sarchlab/nucasim/sim"
)

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	Tag            uint64
	WayID          int
	SetID          int
	IsValid        bool
	State          CoherenceState
	IsWarmup       bool
	LastAccessTime sim.VTimeInSec
	Data           []byte
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks   []Block
	LRUQueue []int
	RRPV     []uint8
}

func (s *Set) moveToMRU(wayID int) {
	newLRUQueue := make([]int, 0, len(s.LRUQueue))

	for _, w := range s.LRUQueue {
		if w != wayID {
			newLRUQueue = append(newLRUQueue, w)
		}
	}

	newLRUQueue = append(newLRUQueue, wayID)

	s.LRUQueue = newLRUQueue
}

// Eviction describes the line that an insertion displaced.
type Eviction struct {
	Evicted bool
	Address uint64
	Block   Block
	Data    []byte
}

// TagArray is a set-associative array of cache lines.
type TagArray struct {
	numSets      int
	numWays      int
	blockSize    int
	log2Block    uint
	hash         AddressHash
	victimFinder VictimFinder
	warmup       bool

	Sets []Set
}

// NewTagArray creates a tag array. It panics if the geometry cannot be
// addressed with the selected hash.
func NewTagArray(
	numSets, numWays, blockSize int,
	hash AddressHash,
	victimFinder VictimFinder,
) *TagArray {
	mustBeValidGeometry(numSets, numWays, blockSize, hash)

	if victimFinder == nil {
		victimFinder = NewLRUVictimFinder()
	}

	t := &TagArray{
		numSets:      numSets,
		numWays:      numWays,
		blockSize:    blockSize,
		hash:         hash,
		victimFinder: victimFinder,
	}

	for 1<<t.log2Block < blockSize {
		t.log2Block++
	}

	t.Reset()

	return t
}

func mustBeValidGeometry(numSets, numWays, blockSize int, hash AddressHash) {
	if numSets <= 0 || numWays <= 0 {
		log.Panicf("invalid cache geometry: %d sets, %d ways", numSets, numWays)
	}

	if !isPowerOfTwo(blockSize) {
		log.Panicf("block size %d is not a power of 2", blockSize)
	}

	if hash == HashMask && !isPowerOfTwo(numSets) {
		log.Panicf("mask hash needs a power-of-2 number of sets, got %d",
			numSets)
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NumSets returns the number of sets.
func (t *TagArray) NumSets() int {
	return t.numSets
}

// NumWays returns the associativity.
func (t *TagArray) NumWays() int {
	return t.numWays
}

// BlockSize returns the size of a line in bytes.
func (t *TagArray) BlockSize() int {
	return t.blockSize
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *TagArray) TotalSize() uint64 {
	return uint64(t.numSets) * uint64(t.numWays) * uint64(t.blockSize)
}

// SetWarmup switches warm-up mode. Lines inserted during warm-up are marked
// so that statistics can exclude them.
func (t *TagArray) SetWarmup(warmup bool) {
	t.warmup = warmup
}

// InWarmup tells if the array is in warm-up mode.
func (t *TagArray) InWarmup() bool {
	return t.warmup
}

// AddressToTag strips the offset bits from an address.
func (t *TagArray) AddressToTag(addr uint64) uint64 {
	return addr >> t.log2Block
}

// TagToAddress returns the line address of a tag.
func (t *TagArray) TagToAddress(tag uint64) uint64 {
	return tag << t.log2Block
}

// GetSet returns the set that a certain address should store at.
func (t *TagArray) GetSet(addr uint64) (set *Set, setID int) {
	setID = t.hash.setIndex(t.AddressToTag(addr), t.numSets)
	set = &t.Sets[setID]

	return set, setID
}

// Peek finds the block that holds addr without touching any replacement
// metadata.
func (t *TagArray) Peek(addr uint64) (*Block, bool) {
	tag := t.AddressToTag(addr)
	set, _ := t.GetSet(addr)

	for i := range set.Blocks {
		block := &set.Blocks[i]
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return nil, false
}

// PeekBlock returns the block at a set and way.
func (t *TagArray) PeekBlock(setID, wayID int) *Block {
	return &t.Sets[setID].Blocks[wayID]
}

// Access reads or writes the resident line holding addr. Loads copy the line
// into buf, stores copy buf into the line. The replacement metadata is updated
// only if updateReplacement is set. Accessing a line that is not resident is
// a caller error.
func (t *TagArray) Access(
	addr uint64,
	kind AccessKind,
	buf []byte,
	now sim.VTimeInSec,
	updateReplacement bool,
) {
	block, found := t.Peek(addr)
	if !found {
		log.Panicf("accessing line 0x%x that is not resident", addr)
	}

	offset := int(addr - t.TagToAddress(block.Tag))

	switch kind {
	case Load:
		if buf != nil && block.Data != nil {
			copy(buf, block.Data[offset:])
		}
	case Store:
		if buf != nil {
			if block.Data == nil {
				block.Data = make([]byte, t.blockSize)
			}

			copy(block.Data[offset:], buf)
		}
	}

	block.LastAccessTime = now

	if updateReplacement {
		t.victimFinder.Touch(&t.Sets[block.SetID], block.WayID)
	}
}

// Insert places the line holding addr into the array, filled with buf. If a
// valid line had to be displaced, it is reported in the returned Eviction.
func (t *TagArray) Insert(
	addr uint64,
	buf []byte,
	now sim.VTimeInSec,
) Eviction {
	if _, found := t.Peek(addr); found {
		panic(fmt.Sprintf("line 0x%x is already resident", addr))
	}

	set, _ := t.GetSet(addr)
	wayID := t.victimFinder.FindVictim(set)
	victim := &set.Blocks[wayID]

	eviction := Eviction{}
	if victim.IsValid {
		eviction.Evicted = true
		eviction.Address = t.TagToAddress(victim.Tag)
		eviction.Block = *victim
		eviction.Data = victim.Data
		eviction.Block.Data = nil
	}

	newBlock := Block{
		Tag:            t.AddressToTag(addr),
		SetID:          victim.SetID,
		WayID:          victim.WayID,
		IsValid:        true,
		State:          Exclusive,
		IsWarmup:       t.warmup,
		LastAccessTime: now,
	}

	if buf != nil {
		newBlock.Data = make([]byte, t.blockSize)
		copy(newBlock.Data, buf)
	}

	*victim = newBlock
	t.victimFinder.Fill(set, wayID)

	return eviction
}

// Reset will mark all the blocks in the directory invalid
func (t *TagArray) Reset() {
	t.Sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		for j := 0; j < t.numWays; j++ {
			block := Block{
				IsValid: false,
				SetID:   i,
				WayID:   j,
			}

			t.Sets[i].Blocks = append(t.Sets[i].Blocks, block)
			t.Sets[i].LRUQueue = append(t.Sets[i].LRUQueue, j)
			t.Sets[i].RRPV = append(t.Sets[i].RRPV, rrpvMax)
		}
	}
}
