package collector

// Stats is a snapshot of collector counters.
type Stats struct {
	Collections      uint64
	Steps            uint64
	FixupRetries     uint64 // scans aborted by an exhausted step budget
	BytesCopied      uint64
	ObjectsForwarded uint64
	SegmentsRetained uint64
	SegmentsFreed    uint64

	Reservations uint64
	Commits      uint64
	CommitRaces  uint64
	OutOfMemory  uint64

	SegmentSize  uint32
	Segments     int // excluding the reserved null segment
	FreeSegments int
	HeapBytes    uint64 // committed bytes in heap regions and buffers
}

// Stats returns current counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	for _, ap := range c.points {
		s.Reservations += ap.reservations.Load()
		s.Commits += ap.commits.Load()
		s.CommitRaces += ap.races.Load()
	}
	s.SegmentSize = c.segs.size
	s.Segments = len(c.segs.table) - 1
	s.FreeSegments = c.segs.free

	c.segs.each(segHeap, func(h int, seg *segment) {
		s.HeapBytes += uint64(seg.used)
	})
	for _, ap := range c.points {
		if ap.region < 0 {
			continue
		}
		_, frontier := unpack(ap.state.Load())
		s.HeapBytes += uint64(frontier - uint32(c.segs.base(ap.region)))
	}
	return s
}
