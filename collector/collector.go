package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/format"
	"github.com/wippyai/movingheap/object"
	"github.com/wippyai/movingheap/root"
)

// Memory is the arena view a collector manages.
type Memory interface {
	movingheap.Memory
	movingheap.MemorySizer
}

// Format is the set of object format callbacks the collector drives.
// *format.Format implements it.
type Format interface {
	Scan(ss format.ScanState, base, limit movingheap.Addr) error
	Skip(addr movingheap.Addr) movingheap.Addr
	Forward(old, to movingheap.Addr)
	IsForwarded(addr movingheap.Addr) movingheap.Addr
	Pad(addr movingheap.Addr, size uint32)
}

const (
	// DefaultStepBudget is the number of bytes one trace step may copy.
	DefaultStepBudget = 16 << 10

	minSegmentSize = 256
)

// Config holds collector configuration. Zero values select defaults.
type Config struct {
	// SegmentSize is the granule of allocation and reclamation in bytes.
	// It must be a multiple of object.WordSize. 0 means DefaultSegmentSize.
	SegmentSize uint32

	// StepBudget bounds the bytes copied by one trace step.
	// 0 means DefaultStepBudget.
	StepBudget uint32

	// Threshold is the number of bytes committed since the last collection
	// that wakes the background collector. 0 means a quarter of the arena.
	Threshold uint64

	// Format overrides the object format. nil means format.New(mem).
	Format Format

	// Logger overrides the package logger.
	Logger *zap.Logger
}

type reason string

const (
	reasonExplicit  reason = "explicit"
	reasonEmergency reason = "emergency"
	reasonPressure  reason = "pressure"
	reasonLowSpace  reason = "low-space"
)

// Collector manages one arena.
type Collector struct {
	mu     sync.Mutex
	mem    Memory
	format Format
	log    *zap.Logger
	cfg    Config
	segs   *segments

	// Collections start early once fewer than reserve segments would remain
	// free, leaving room to copy into.
	reserve int

	points     []*AllocationPoint
	roots      []*rootEntry
	nextRoot   root.Handle
	threads    map[uint32]*Thread
	nextThread uint32

	parked int
	closed bool
	stats  Stats

	allocated  atomic.Uint64
	background atomic.Bool
	kick       chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
}

var _ root.Registrar = (*Collector)(nil)

// New creates a collector over mem. The whole arena except its first segment
// is available for allocation.
func New(mem Memory, cfg Config) (*Collector, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "nil memory")
	}
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if cfg.SegmentSize < minSegmentSize || !object.IsAligned(cfg.SegmentSize) {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Size(cfg.SegmentSize).
			Detail("segment size must be a multiple of %d and at least %d", object.WordSize, minSegmentSize).Build()
	}
	if mem.Size()/cfg.SegmentSize < 2 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Size(mem.Size()).
			Detail("arena holds fewer than two %d byte segments", cfg.SegmentSize).Build()
	}
	if cfg.StepBudget == 0 {
		cfg.StepBudget = DefaultStepBudget
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = uint64(mem.Size()) / 4
	}
	if cfg.Format == nil {
		cfg.Format = format.New(mem)
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	segs := newSegments(mem.Size(), cfg.SegmentSize)
	return &Collector{
		mem:     mem,
		reserve: max(1, len(segs.table)/8),
		format:  cfg.Format,
		log:     log,
		cfg:     cfg,
		segs:    segs,
		threads: make(map[uint32]*Thread),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}, nil
}

// Memory returns the managed arena.
func (c *Collector) Memory() Memory {
	return c.mem
}

// SegmentSize returns the segment size in bytes.
func (c *Collector) SegmentSize() uint32 {
	return c.segs.size
}

// NewAllocationPoint creates an allocation point with no buffer attached.
func (c *Collector) NewAllocationPoint() *AllocationPoint {
	ap := &AllocationPoint{c: c, region: -1}
	c.mu.Lock()
	c.points = append(c.points, ap)
	c.mu.Unlock()
	return ap
}

// Collect runs a full collection to completion.
func (c *Collector) Collect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.Closed(errors.PhaseCollect, "collector")
	}
	c.collectLocked(reasonExplicit)
	return nil
}

// Park stops the collector from starting collections on its own until the
// matching Release. A collection in progress completes first. Explicit
// Collect calls still run.
func (c *Collector) Park() {
	c.mu.Lock()
	c.parked++
	c.mu.Unlock()
}

// Release undoes one Park.
func (c *Collector) Release() {
	c.mu.Lock()
	if c.parked > 0 {
		c.parked--
	}
	c.mu.Unlock()
}

// Parked reports whether the collector is parked.
func (c *Collector) Parked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parked > 0
}

// Start runs collections in the background whenever the bytes committed
// since the last collection reach Config.Threshold. It stops when ctx is done
// or the collector is closed.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.Closed(errors.PhaseCollect, "collector")
	}
	if c.background.Load() {
		return errors.InvalidInput(errors.PhaseCollect, "background collection already started")
	}
	c.background.Store(true)
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()
	defer c.background.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-c.kick:
			c.mu.Lock()
			if !c.closed && c.parked == 0 && c.allocated.Load() >= c.cfg.Threshold {
				c.collectLocked(reasonPressure)
			}
			c.mu.Unlock()
		}
	}
}

func (c *Collector) noteAllocated(size uint32) {
	n := c.allocated.Add(uint64(size))
	if n < c.cfg.Threshold || !c.background.Load() {
		return
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Close stops background collection. Allocation points can no longer refill
// their buffers and roots can no longer be registered.
func (c *Collector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Collector) corrupt(err *errors.Error) {
	c.log.Error("heap corruption", zap.Error(err))
	panic(err)
}

func (c *Collector) collectLocked(why reason) {
	start := time.Now()
	t := c.flip()

	steps := 1
	for {
		err := t.step()
		if err == nil {
			break
		}
		if !isStepBudget(err) {
			c.corrupt(errors.Wrap(errors.PhaseCollect, errors.KindHeapCorruption, err, "trace failed"))
		}
		c.stats.FixupRetries++
		steps++
	}
	freed := c.reclaim()

	c.allocated.Store(0)
	c.stats.Collections++
	c.stats.Steps += uint64(steps)
	c.stats.BytesCopied += t.copied
	c.stats.ObjectsForwarded += t.forwarded
	c.stats.SegmentsRetained += uint64(t.retained)
	c.stats.SegmentsFreed += uint64(freed)

	c.log.Debug("collection finished",
		zap.String("reason", string(why)),
		zap.Int("condemned", t.condemned),
		zap.Int("retained", t.retained),
		zap.Int("freed", freed),
		zap.Uint64("copied", t.copied),
		zap.Int("steps", steps),
		zap.Duration("elapsed", time.Since(start)))
}

// flip traps every allocation point, pins buffers and the regions named by
// ambiguous roots, and condemns every other heap region.
func (c *Collector) flip() *trace {
	t := newTrace(c)

	for _, ap := range c.points {
		frontier := ap.trap()
		if ap.region < 0 {
			continue
		}
		seg := &c.segs.table[ap.region]
		seg.pinned = true
		seg.used = frontier - uint32(c.segs.base(ap.region))
		t.enqueue(ap.region, seg.used)
	}

	for _, r := range c.roots {
		if r.thread == nil {
			continue
		}
		for _, word := range r.thread.words(r.depth) {
			h := c.segs.regionOf(word)
			if h < 0 {
				continue
			}
			seg := &c.segs.table[h]
			if seg.state == segHeap {
				seg.pinned = true
			}
		}
	}

	c.segs.each(segHeap, func(h int, seg *segment) {
		if seg.pinned {
			t.enqueue(h, seg.used)
			return
		}
		seg.condemned = true
		t.condemned++
	})

	for _, r := range c.roots {
		if r.scan != nil {
			t.exact = append(t.exact, r)
		}
	}
	return t
}

// reclaim frees condemned regions that were not retained and promotes
// to-space to heap.
func (c *Collector) reclaim() int {
	freed := 0
	c.segs.each(segHeap, func(h int, seg *segment) {
		if seg.condemned && !seg.retained {
			freed += c.segs.release(h)
			return
		}
		seg.resetTrace()
	})
	c.segs.each(segToSpace, func(h int, seg *segment) {
		seg.state = segHeap
		seg.resetTrace()
	})
	c.segs.each(segBuffer, func(h int, seg *segment) {
		seg.resetTrace()
	})
	return freed
}
