package collector

import (
	"github.com/wippyai/movingheap"
)

// DefaultSegmentSize is the segment size used when Config.SegmentSize is zero.
const DefaultSegmentSize = 64 << 10

type segState uint8

const (
	segReserved segState = iota // segment 0, never handed out
	segFree
	segBuffer  // attached to an allocation point
	segHeap    // committed objects in [base, base+used)
	segToSpace // copy target of the running collection
)

func (s segState) String() string {
	switch s {
	case segReserved:
		return "reserved"
	case segFree:
		return "free"
	case segBuffer:
		return "buffer"
	case segHeap:
		return "heap"
	case segToSpace:
		return "to-space"
	default:
		return "unknown"
	}
}

// segment describes one arena segment. A run of contiguous segments holding
// a large buffer forms a region; every field but head is meaningful only on
// the region's first segment.
type segment struct {
	state segState
	head  int    // index of the region's first segment
	count int    // segments in the region
	used  uint32 // bytes of committed objects from the region base

	condemned bool
	retained  bool // condemned but kept in place
	pinned    bool
	queued    bool   // already on the gray list
	scan      uint32 // trace cursor from the region base
	scanLimit uint32 // end of the area to trace, for gray regions
}

// segments is the segment table. It is guarded by the collector lock.
type segments struct {
	size  uint32
	table []segment
	free  int
}

func newSegments(arenaSize, segSize uint32) *segments {
	n := int(arenaSize / segSize)
	s := &segments{
		size:  segSize,
		table: make([]segment, n),
	}
	for i := range s.table {
		s.table[i] = segment{state: segFree, head: i, count: 1}
	}
	s.table[0].state = segReserved
	s.free = n - 1
	return s
}

func (s *segments) base(h int) movingheap.Addr {
	return movingheap.Addr(uint32(h) * s.size)
}

func (s *segments) extent(h int) uint32 {
	return uint32(s.table[h].count) * s.size
}

// regionOf returns the head of the region containing addr, or -1 when addr
// lies outside every allocated region.
func (s *segments) regionOf(addr movingheap.Addr) int {
	i := int(uint32(addr) / s.size)
	if i <= 0 || i >= len(s.table) {
		return -1
	}
	h := s.table[i].head
	switch s.table[h].state {
	case segBuffer, segHeap, segToSpace:
		return h
	default:
		return -1
	}
}

// alloc takes the first run of n free segments and makes it a region in
// state st.
func (s *segments) alloc(n int, st segState) (int, bool) {
	if n <= 0 || n > s.free {
		return -1, false
	}
	run := 0
	for i := 1; i < len(s.table); i++ {
		if s.table[i].state != segFree {
			run = 0
			continue
		}
		run++
		if run < n {
			continue
		}
		h := i - n + 1
		for j := h; j <= i; j++ {
			s.table[j] = segment{state: st, head: h, count: 1}
		}
		s.table[h].count = n
		s.free -= n
		return h, true
	}
	return -1, false
}

// release returns every segment of region h to the free pool.
func (s *segments) release(h int) int {
	n := s.table[h].count
	for j := h; j < h+n; j++ {
		s.table[j] = segment{state: segFree, head: j, count: 1}
	}
	s.free += n
	return n
}

// each calls fn with the head of every region in state st.
func (s *segments) each(st segState, fn func(h int, seg *segment)) {
	for i := 1; i < len(s.table); {
		seg := &s.table[i]
		n := seg.count
		if seg.head == i && seg.state == st {
			fn(i, seg)
		}
		if n < 1 || seg.head != i {
			n = 1
		}
		i += n
	}
}

func (s *segments) freeBytes() uint32 {
	return uint32(s.free) * s.size
}

func (seg *segment) resetTrace() {
	seg.condemned = false
	seg.retained = false
	seg.pinned = false
	seg.queued = false
	seg.scan = 0
	seg.scanLimit = 0
}
