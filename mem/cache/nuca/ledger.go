package nuca

// Ledger counts the reads and writes each address received since it last
// became resident.
type Ledger struct {
	reads  map[uint64]uint64
	writes map[uint64]uint64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		reads:  make(map[uint64]uint64),
		writes: make(map[uint64]uint64),
	}
}

// RecordRead counts a read to addr.
func (l *Ledger) RecordRead(addr uint64) {
	l.reads[addr]++
}

// RecordWrite counts a write to addr.
func (l *Ledger) RecordWrite(addr uint64) {
	l.writes[addr]++
}

// Reads returns the read count of addr and whether addr has a read record.
func (l *Ledger) Reads(addr uint64) (uint64, bool) {
	n, found := l.reads[addr]
	return n, found
}

// Writes returns the write count of addr and whether addr has a write record.
func (l *Ledger) Writes(addr uint64) (uint64, bool) {
	n, found := l.writes[addr]
	return n, found
}

// Tracked tells if addr has any record.
func (l *Ledger) Tracked(addr uint64) bool {
	_, r := l.reads[addr]
	_, w := l.writes[addr]

	return r || w
}

// Erase drops every record of addr.
func (l *Ledger) Erase(addr uint64) {
	delete(l.reads, addr)
	delete(l.writes, addr)
}

// Len returns the number of tracked addresses.
func (l *Ledger) Len() int {
	n := len(l.writes)
	for addr := range l.reads {
		if _, found := l.writes[addr]; !found {
			n++
		}
	}

	return n
}
