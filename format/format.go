package format

import (
	"go.uber.org/zap"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/object"
)

// Format implements the collector callbacks over one arena.
type Format struct {
	mem movingheap.Memory
}

// New creates a format over mem.
func New(mem movingheap.Memory) *Format {
	return &Format{mem: mem}
}

// Memory returns the memory the format reads and writes.
func (f *Format) Memory() movingheap.Memory {
	return f.mem
}

// Align returns the alignment every object obeys.
func (f *Format) Align() uint32 {
	return object.WordSize
}

func (f *Format) corrupt(err *errors.Error) {
	Logger().Error("heap corruption", zap.Error(err))
	panic(err)
}

func (f *Format) tag(addr movingheap.Addr, phase errors.Phase) object.Tag {
	tag, err := object.TagAt(f.mem, addr)
	if err != nil {
		f.corrupt(errors.New(phase, errors.KindHeapCorruption).
			Addr(uint32(addr)).Cause(err).Detail("read tag").Build())
	}
	return tag
}

// footprint returns the size of the object at addr or aborts.
func (f *Format) footprint(addr movingheap.Addr, phase errors.Phase) uint32 {
	size, err := object.Footprint(f.mem, addr)
	if err != nil {
		f.corrupt(errors.New(phase, errors.KindHeapCorruption).
			Addr(uint32(addr)).Cause(err).Detail("object footprint").Build())
	}
	return size
}

// Scan fixes every reference held by the objects in [base, limit).
// It returns the first fixup failure; objects before it have been fixed,
// the rest have not.
func (f *Format) Scan(ss ScanState, base, limit movingheap.Addr) error {
	for base < limit {
		tag := f.tag(base, errors.PhaseScan)
		size := f.footprint(base, errors.PhaseScan)
		next := uint64(base) + uint64(size)
		if next > uint64(limit) {
			f.corrupt(errors.Overrun(errors.PhaseScan, uint32(base), uint32(next), uint32(limit)))
		}
		switch tag {
		case object.TagPair:
			if err := f.fixSlot(ss, object.CarSlot(base)); err != nil {
				return err
			}
			if err := f.fixSlot(ss, object.CdrSlot(base)); err != nil {
				return err
			}
		case object.TagInteger, object.TagForward, object.TagPadSingle, object.TagPadMulti:
			// no references
		}
		base = movingheap.Addr(next)
	}
	return nil
}

// Skip returns the address just past the object at addr.
func (f *Format) Skip(addr movingheap.Addr) movingheap.Addr {
	size := f.footprint(addr, errors.PhaseSkip)
	next := uint64(addr) + uint64(size)
	if next > uint64(^uint32(0)) {
		f.corrupt(errors.Overrun(errors.PhaseSkip, uint32(addr), uint32(next), ^uint32(0)))
	}
	return movingheap.Addr(next)
}

// Forward records that the object at old has been copied to to.
func (f *Format) Forward(old, to movingheap.Addr) {
	limit := f.Skip(old)
	size := uint32(limit - old)
	if size < object.ForwardSize {
		f.corrupt(errors.New(errors.PhaseForward, errors.KindHeapCorruption).
			Addr(uint32(old)).Size(size).
			Detail("footprint below forwarding stub size %d", object.ForwardSize).Build())
	}
	if err := object.WriteForward(f.mem, old, to); err != nil {
		f.corrupt(errors.New(errors.PhaseForward, errors.KindHeapCorruption).
			Addr(uint32(old)).Cause(err).Detail("write forwarding stub").Build())
	}
	if size > object.ForwardSize {
		f.Pad(old.Add(object.ForwardSize), size-object.ForwardSize)
	}
}

// IsForwarded returns the new location of a forwarded object, or None.
func (f *Format) IsForwarded(addr movingheap.Addr) movingheap.Addr {
	if f.tag(addr, errors.PhaseForward) != object.TagForward {
		return movingheap.None
	}
	to, err := object.ForwardTarget(f.mem, addr)
	if err != nil {
		f.corrupt(errors.New(errors.PhaseForward, errors.KindHeapCorruption).
			Addr(uint32(addr)).Cause(err).Detail("read forwarding stub").Build())
	}
	return to
}

// Pad fills the size bytes at addr with dead space.
func (f *Format) Pad(addr movingheap.Addr, size uint32) {
	if size < object.MinSize || !object.IsAligned(size) {
		f.corrupt(errors.New(errors.PhasePad, errors.KindHeapCorruption).
			Addr(uint32(addr)).Size(size).Detail("pad size not a word multiple of at least %d", object.MinSize).Build())
	}
	var err error
	if size == object.PadSingleSize {
		err = object.WritePadSingle(f.mem, addr)
	} else {
		err = object.WritePadMulti(f.mem, addr, size)
	}
	if err != nil {
		f.corrupt(errors.New(errors.PhasePad, errors.KindHeapCorruption).
			Addr(uint32(addr)).Size(size).Cause(err).Detail("write pad").Build())
	}
}

// Resolve follows forwarding stubs from addr to the object's current location.
func (f *Format) Resolve(addr movingheap.Addr) movingheap.Addr {
	for !addr.IsNone() {
		to := f.IsForwarded(addr)
		if to.IsNone() {
			return addr
		}
		addr = to
	}
	return addr
}
