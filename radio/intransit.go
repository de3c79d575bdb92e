package radio

import (
	"errors"
	"sync"
)

// maxInTransit is the fixed capacity of the In-Transit Table: 5 indirect
// slots plus 2 margin, per spec.md §3.
const maxInTransit = 7

// ErrOverflow is returned by allocateHandle when the table is full.
var ErrOverflow = errors.New("radio: in-transit table overflow")

// ErrUnknownHandle is returned by take when no record matches the handle.
var ErrUnknownHandle = errors.New("radio: unknown handle")

// inTransitRecord is the snapshot kept per spec.md §3: the packet as
// submitted and the caller's context, so an asynchronous confirm can be
// routed back to its originating Transmit call.
type inTransitRecord struct {
	handle  uint8
	packet  *Packet
	context any
}

// inTransitTable is a fixed-size array of (handle, record) slots guarded by
// a mutex, per spec.md component B. An index-into-array design is used
// instead of a map deliberately — the upper bound is small and fixed, and
// this avoids allocation on the hot path (spec.md §9's design note).
type inTransitTable struct {
	mu      sync.Mutex
	records [maxInTransit]*inTransitRecord
	next    uint8 // next handle to try, wraps 1..255 skipping 0
}

func newInTransitTable() *inTransitTable {
	return &inTransitTable{next: 1}
}

// allocateHandle picks the first currently-unused non-zero handle at or after
// the rotating cursor t.next (wrapping at 255, never issuing 0), advances the
// cursor past it, stores the record, and returns the handle.
func (t *inTransitTable) allocateHandle(pkt *Packet, ctx any) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.full() {
		return 0, ErrOverflow
	}

	h := t.next
	for {
		if h == 0 {
			h = 1
		}
		if t.indexOf(h) < 0 {
			break
		}
		h++
	}
	t.next = h + 1
	if t.next == 0 {
		t.next = 1
	}

	slot := t.freeSlot()
	t.records[slot] = &inTransitRecord{handle: h, packet: pkt, context: ctx}
	return h, nil
}

// take atomically removes and returns the record for handle.
func (t *inTransitTable) take(handle uint8) (*Packet, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(handle)
	if i < 0 {
		return nil, nil, ErrUnknownHandle
	}
	rec := t.records[i]
	t.records[i] = nil
	return rec.packet, rec.context, nil
}

// peek reads without removing; used only for defensive assertions per
// spec.md §4.2.
func (t *inTransitTable) peek(handle uint8) (*Packet, any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(handle)
	if i < 0 {
		return nil, nil, false
	}
	rec := t.records[i]
	return rec.packet, rec.context, true
}

func (t *inTransitTable) indexOf(handle uint8) int {
	for i, r := range t.records {
		if r != nil && r.handle == handle {
			return i
		}
	}
	return -1
}

func (t *inTransitTable) freeSlot() int {
	for i, r := range t.records {
		if r == nil {
			return i
		}
	}
	return -1
}

func (t *inTransitTable) full() bool {
	return t.freeSlot() < 0
}

// len reports how many handles are currently live; used by tests.
func (t *inTransitTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.records {
		if r != nil {
			n++
		}
	}
	return n
}

// reset forgets every pending handle, used at MAC reset (spec.md §5,
// "Pending in-transit handles are forgotten at MAC reset").
func (t *inTransitTable) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.records {
		t.records[i] = nil
	}
	t.next = 1
}
