package collector

import (
	stderrors "errors"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/format"
)

// scanChunk bounds the area handed to one Format.Scan call, so a step that
// runs out of budget rescans at most this much.
const scanChunk = 4 << 10

var errStepBudget = stderrors.New("step budget exhausted")

func isStepBudget(err error) bool {
	return stderrors.Is(err, errStepBudget)
}

// trace is the state of one collection. It is the ScanState handed to every
// format and root scan.
type trace struct {
	c    *Collector
	f    Format
	mem  movingheap.Memory
	segs *segments

	exact    []*rootEntry
	rootNext int

	gray    []int
	toSpace []int
	toScan  int
	toCur   int

	budget     uint32
	stepCopied uint32

	condemned int
	retained  int
	copied    uint64
	forwarded uint64
}

var _ format.ScanState = (*trace)(nil)

func newTrace(c *Collector) *trace {
	return &trace{
		c:      c,
		f:      c.format,
		mem:    c.mem,
		segs:   c.segs,
		toCur:  -1,
		budget: c.cfg.StepBudget,
	}
}

// enqueue schedules [base, base+limit) of region h for scanning.
func (t *trace) enqueue(h int, limit uint32) {
	seg := &t.segs.table[h]
	if seg.queued {
		return
	}
	seg.queued = true
	seg.scan = 0
	seg.scanLimit = limit
	t.gray = append(t.gray, h)
}

// step advances the trace until it completes or a fix exceeds the step's
// copy budget. In the latter case the budget error is returned and the
// interrupted scan is repeated by the next step.
func (t *trace) step() error {
	t.stepCopied = 0

	for t.rootNext < len(t.exact) {
		r := t.exact[t.rootNext]
		if err := r.scan(t, r.closure); err != nil {
			return err
		}
		t.rootNext++
	}

	for {
		if len(t.gray) > 0 {
			if err := t.scanRegion(t.gray[0]); err != nil {
				return err
			}
			t.gray = t.gray[1:]
			continue
		}
		if t.toScan < len(t.toSpace) {
			h := t.toSpace[t.toScan]
			seg := &t.segs.table[h]
			if seg.scan < seg.scanLimit {
				if err := t.scanRegion(h); err != nil {
					return err
				}
				continue
			}
			if h != t.toCur {
				t.toScan++
				continue
			}
		}
		return nil
	}
}

// scanRegion scans region h from its cursor to its scan limit, one chunk at
// a time. The limit of a to-space region grows while it is scanned.
func (t *trace) scanRegion(h int) error {
	seg := &t.segs.table[h]
	base := t.segs.base(h)
	for seg.scan < seg.scanLimit {
		from := base.Add(seg.scan)
		to := t.chunkEnd(from, base.Add(seg.scanLimit))
		if err := t.f.Scan(t, from, to); err != nil {
			return err
		}
		seg.scan = uint32(to - base)
	}
	return nil
}

func (t *trace) chunkEnd(from, limit movingheap.Addr) movingheap.Addr {
	end := from
	for end < limit && uint32(end-from) < scanChunk {
		end = t.f.Skip(end)
	}
	if end > limit {
		t.c.corrupt(errors.Overrun(errors.PhaseCollect, uint32(from), uint32(end), uint32(limit)))
	}
	return end
}

// Fix implements format.ScanState. References outside condemned regions are
// returned unchanged; condemned objects are copied once and forwarded.
func (t *trace) Fix(ref movingheap.Addr) (movingheap.Addr, error) {
	h := t.segs.regionOf(ref)
	if h < 0 {
		return ref, nil
	}
	seg := &t.segs.table[h]
	if !seg.condemned {
		return ref, nil
	}
	if uint32(ref) >= uint32(t.segs.base(h))+seg.used {
		t.c.corrupt(errors.HeapCorruption(errors.PhaseCollect, uint32(ref), "reference past the end of its region"))
	}
	if to := t.f.IsForwarded(ref); !to.IsNone() {
		return to, nil
	}
	if seg.retained {
		return ref, nil
	}
	if seg.count > 1 {
		t.retain(h)
		return ref, nil
	}

	size := uint32(t.f.Skip(ref) - ref)
	if t.stepCopied > 0 && t.stepCopied+size > t.budget {
		return movingheap.None, errors.FixupFailure(errors.PhaseCollect, uint32(ref), errStepBudget)
	}
	dst, ok := t.reserve(size)
	if !ok {
		t.retain(h)
		return ref, nil
	}
	t.copyObject(ref, dst, size)
	t.f.Forward(ref, dst)

	t.stepCopied += size
	t.copied += uint64(size)
	t.forwarded++
	return dst, nil
}

func (t *trace) copyObject(from, to movingheap.Addr, size uint32) {
	data, err := t.mem.Read(uint32(from), size)
	if err == nil {
		err = t.mem.Write(uint32(to), data)
	}
	if err != nil {
		t.c.corrupt(errors.New(errors.PhaseCollect, errors.KindHeapCorruption).
			Addr(uint32(from)).Size(size).Cause(err).Detail("copy object").Build())
	}
}

// retain keeps condemned region h in place and schedules it for scanning.
func (t *trace) retain(h int) {
	seg := &t.segs.table[h]
	seg.retained = true
	t.retained++
	t.enqueue(h, seg.used)
}

// reserve allocates size bytes of to-space.
func (t *trace) reserve(size uint32) (movingheap.Addr, bool) {
	if size > t.segs.size {
		return movingheap.None, false
	}
	if t.toCur >= 0 {
		seg := &t.segs.table[t.toCur]
		if seg.used+size <= t.segs.size {
			addr := t.segs.base(t.toCur).Add(seg.used)
			seg.used += size
			seg.scanLimit = seg.used
			return addr, true
		}
	}
	h, ok := t.segs.alloc(1, segToSpace)
	if !ok {
		return movingheap.None, false
	}
	seg := &t.segs.table[h]
	seg.used = size
	seg.scanLimit = size
	t.toCur = h
	t.toSpace = append(t.toSpace, h)
	return t.segs.base(h), true
}
