package root

import (
	"sync"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/format"
)

// Table is a fixed-capacity table of exact references.
type Table struct {
	slots []movingheap.Addr
	live  int // slots holding a reference
	free  int // no None slot below this index
	mu    sync.Mutex
}

// NewTable creates a table of capacity slots, all None.
func NewTable(capacity int) *Table {
	if capacity < 0 {
		capacity = 0
	}
	return &Table{
		slots: make([]movingheap.Addr, capacity),
	}
}

// Cap returns the fixed number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Len returns the number of slots holding a reference.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Insert stores addr in the lowest None slot and returns its index.
// A full table returns a capacity error and leaves every slot unchanged.
func (t *Table) Insert(addr movingheap.Addr) (int, error) {
	if addr.IsNone() {
		return -1, errors.InvalidInput(errors.PhaseRoot, "cannot insert None")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live == len(t.slots) {
		return -1, errors.Capacity(errors.PhaseRoot, len(t.slots))
	}
	i := t.free
	for !t.slots[i].IsNone() {
		i++
	}
	t.slots[i] = addr
	t.live++
	t.free = i + 1
	return i, nil
}

// Set replaces slot i. Setting None clears the slot, making it available
// to Insert again.
func (t *Table) Set(i int, addr movingheap.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.slots) {
		return errors.OutOfBounds(errors.PhaseRoot, i, len(t.slots))
	}
	was := t.slots[i]
	t.slots[i] = addr
	switch {
	case was.IsNone() && !addr.IsNone():
		t.live++
	case !was.IsNone() && addr.IsNone():
		t.live--
		t.free = min(t.free, i)
	}
	return nil
}

// Get returns slot i. ok is false when i is out of range.
func (t *Table) Get(i int) (addr movingheap.Addr, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.slots) {
		return movingheap.None, false
	}
	return t.slots[i], true
}

// Snapshot returns a copy of all slots.
func (t *Table) Snapshot() []movingheap.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]movingheap.Addr, len(t.slots))
	copy(out, t.slots)
	return out
}

// Each calls fn for every slot in order until fn returns false.
// fn must not call back into the table.
func (t *Table) Each(fn func(i int, addr movingheap.Addr) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, addr := range t.slots {
		if !fn(i, addr) {
			return
		}
	}
}

// Reset clears every slot back to None.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.slots)
	t.live = 0
	t.free = 0
}

// Scan fixes every slot through ss, in slot order. It stops at the first
// fixup failure; slots before it are fixed, the failed slot and those after
// it keep their previous value.
func (t *Table) Scan(ss format.ScanState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if err := format.Fix(ss, &t.slots[i]); err != nil {
			return err
		}
	}
	return nil
}

// Register registers the table as an exact root of r.
func (t *Table) Register(r Registrar) (Handle, error) {
	return r.RegisterExactRoot(scanTable, t)
}

func scanTable(ss format.ScanState, closure any) error {
	return closure.(*Table).Scan(ss)
}
