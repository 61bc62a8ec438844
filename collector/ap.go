package collector

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/alloc"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/object"
)

var _ alloc.Point = (*AllocationPoint)(nil)

func pack(epoch, frontier uint32) uint64 {
	return uint64(epoch)<<32 | uint64(frontier)
}

func unpack(s uint64) (epoch, frontier uint32) {
	return uint32(s >> 32), uint32(s)
}

// AllocationPoint is a bump allocator over a buffer region. It belongs to a
// single mutator goroutine; Reserve and Commit are lock-free until the buffer
// is exhausted.
type AllocationPoint struct {
	c *Collector

	// state packs the epoch in the high word and the committed frontier in
	// the low word. A flip bumps the epoch, invalidating any reservation made
	// under the previous one.
	state atomic.Uint64

	// Written by the owner under the collector lock, read by the owner
	// without it and by the collector with it.
	region int
	limit  uint32

	// Owner only.
	resEpoch uint32
	resAddr  movingheap.Addr
	resSize  uint32

	reservations atomic.Uint64
	commits      atomic.Uint64
	races        atomic.Uint64
	closed       bool
}

// Reserve claims size bytes at the committed frontier.
func (ap *AllocationPoint) Reserve(size uint32) (movingheap.Addr, error) {
	size = object.AlignWord(size)
	if size == 0 {
		return movingheap.None, errors.InvalidInput(errors.PhaseReserve, "zero-sized reservation")
	}
	ap.reservations.Add(1)
	if addr, ok := ap.reserveFast(size); ok {
		return addr, nil
	}
	return ap.reserveSlow(size)
}

func (ap *AllocationPoint) reserveFast(size uint32) (movingheap.Addr, bool) {
	epoch, frontier := unpack(ap.state.Load())
	if frontier == 0 || uint64(frontier)+uint64(size) > uint64(ap.limit) {
		return movingheap.None, false
	}
	ap.resEpoch = epoch
	ap.resAddr = movingheap.Addr(frontier)
	ap.resSize = size
	return ap.resAddr, true
}

func (ap *AllocationPoint) reserveSlow(size uint32) (movingheap.Addr, error) {
	c := ap.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || ap.closed {
		return movingheap.None, errors.Closed(errors.PhaseReserve, "allocation point")
	}
	ap.retireLocked()

	n := int((uint64(size) + uint64(c.segs.size) - 1) / uint64(c.segs.size))
	if c.parked == 0 && c.segs.free-n < c.reserve &&
		c.allocated.Load() >= uint64(c.reserve)*uint64(c.segs.size) {
		c.collectLocked(reasonLowSpace)
	}
	h, ok := c.segs.alloc(n, segBuffer)
	if !ok && c.parked == 0 {
		c.collectLocked(reasonEmergency)
		h, ok = c.segs.alloc(n, segBuffer)
	}
	if !ok {
		c.stats.OutOfMemory++
		err := errors.OutOfMemory(errors.PhaseReserve, size, c.segs.freeBytes())
		c.log.Warn("allocation failed", zap.Error(err))
		return movingheap.None, err
	}

	base := c.segs.base(h)
	ap.region = h
	ap.limit = uint32(base) + c.segs.extent(h)
	for {
		s := ap.state.Load()
		epoch, _ := unpack(s)
		if ap.state.CompareAndSwap(s, pack(epoch, uint32(base))) {
			break
		}
	}
	addr, _ := ap.reserveFast(size)
	return addr, nil
}

// retireLocked turns the attached buffer into a heap region, padding the
// unused tail.
func (ap *AllocationPoint) retireLocked() {
	if ap.region < 0 {
		return
	}
	c := ap.c
	h := ap.region
	base := c.segs.base(h)
	_, frontier := unpack(ap.state.Load())
	if tail := ap.limit - frontier; tail > 0 {
		c.format.Pad(movingheap.Addr(frontier), tail)
	}
	seg := &c.segs.table[h]
	seg.state = segHeap
	seg.used = ap.limit - uint32(base)
	for j := h + 1; j < h+seg.count; j++ {
		c.segs.table[j].state = segHeap
	}

	ap.region = -1
	ap.limit = 0
	for {
		s := ap.state.Load()
		epoch, _ := unpack(s)
		if ap.state.CompareAndSwap(s, pack(epoch, 0)) {
			break
		}
	}
}

// Commit publishes the most recent reservation. It returns false when a
// collection flipped since Reserve; the block must then be discarded.
func (ap *AllocationPoint) Commit(addr movingheap.Addr, size uint32) bool {
	size = object.AlignWord(size)
	if addr != ap.resAddr || size != ap.resSize {
		return false
	}
	old := pack(ap.resEpoch, uint32(addr))
	if !ap.state.CompareAndSwap(old, pack(ap.resEpoch, uint32(addr)+size)) {
		ap.races.Add(1)
		ap.c.log.Debug("commit discarded", zap.Error(errors.CommitRace(uint32(addr), size)))
		return false
	}
	ap.commits.Add(1)
	ap.c.noteAllocated(size)
	return true
}

// trap bumps the epoch so outstanding reservations fail to commit and returns
// the committed frontier at the flip.
func (ap *AllocationPoint) trap() uint32 {
	for {
		s := ap.state.Load()
		epoch, frontier := unpack(s)
		if ap.state.CompareAndSwap(s, pack(epoch+1, frontier)) {
			return frontier
		}
	}
}

// Close retires the buffer and detaches the allocation point.
func (ap *AllocationPoint) Close() error {
	c := ap.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if ap.closed {
		return nil
	}
	ap.retireLocked()
	ap.closed = true
	for i, p := range c.points {
		if p == ap {
			c.points = append(c.points[:i], c.points[i+1:]...)
			break
		}
	}
	c.stats.Reservations += ap.reservations.Load()
	c.stats.Commits += ap.commits.Load()
	c.stats.CommitRaces += ap.races.Load()
	return nil
}
