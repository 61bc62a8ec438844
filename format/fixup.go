package format

import (
	stderrors "errors"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
)

// ScanState is the collector's side of a scan: it answers where a reference's
// referent lives now, copying or marking it as the collector sees fit.
type ScanState interface {
	Fix(ref movingheap.Addr) (movingheap.Addr, error)
}

// ScanFunc adapts a function to ScanState.
type ScanFunc func(ref movingheap.Addr) (movingheap.Addr, error)

// Fix implements ScanState.
func (f ScanFunc) Fix(ref movingheap.Addr) (movingheap.Addr, error) {
	return f(ref)
}

// Fix rewrites *ref to its referent's current location.
// None is left alone. On failure *ref is unchanged.
func Fix(ss ScanState, ref *movingheap.Addr) error {
	addr := *ref
	if addr.IsNone() {
		return nil
	}
	fixed, err := ss.Fix(addr)
	if err != nil {
		if stderrors.Is(err, errors.ErrFixupFailure) {
			return err
		}
		return errors.FixupFailure(errors.PhaseFixup, uint32(addr), err)
	}
	*ref = fixed
	return nil
}

// fixSlot fixes the reference stored in the heap word at slot.
func (f *Format) fixSlot(ss ScanState, slot uint32) error {
	raw, err := f.mem.ReadU64(slot)
	if err != nil {
		f.corrupt(errors.New(errors.PhaseScan, errors.KindHeapCorruption).
			Addr(slot).Cause(err).Detail("read reference field").Build())
	}
	ref := movingheap.Addr(raw)
	if err := Fix(ss, &ref); err != nil {
		return err
	}
	if uint64(ref) == raw {
		return nil
	}
	if err := f.mem.WriteU64(slot, uint64(ref)); err != nil {
		f.corrupt(errors.New(errors.PhaseScan, errors.KindHeapCorruption).
			Addr(slot).Cause(err).Detail("write reference field").Build())
	}
	return nil
}
