package alloc

import (
	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/object"
)

// Point is an allocation point: a bump-pointer cursor owned by one mutator.
type Point interface {
	// Reserve tentatively claims size bytes. The claim is invisible to the
	// collector until committed. It fails with an out_of_memory error when
	// the arena cannot supply the space.
	Reserve(size uint32) (movingheap.Addr, error)

	// Commit confirms the most recent reservation. It returns false if the
	// collector invalidated the reservation; the block must then be
	// discarded and the allocation restarted.
	Commit(addr movingheap.Addr, size uint32) bool
}

// InitFunc initializes a reserved block in place.
type InitFunc func(addr movingheap.Addr) error

// Allocate creates an object of size bytes initialized by init.
// An out of memory reservation is returned to the caller; commit races are
// retried until a commit succeeds.
func Allocate(ap Point, size uint32, init InitFunc) (movingheap.Addr, error) {
	size = object.AlignWord(size)
	if size < object.MinSize {
		return movingheap.None, errors.InvalidInput(errors.PhaseReserve, "allocation smaller than one word")
	}
	for {
		addr, err := ap.Reserve(size)
		if err != nil {
			return movingheap.None, err
		}
		if addr.IsNone() {
			return movingheap.None, errors.OutOfMemory(errors.PhaseReserve, size, 0)
		}
		if err := init(addr); err != nil {
			return movingheap.None, errors.Wrap(errors.PhaseReserve, errors.KindOutOfBounds, err, "initialize reserved block")
		}
		if ap.Commit(addr, size) {
			return addr, nil
		}
	}
}

// MakeInteger allocates an Integer object holding v.
func MakeInteger(ap Point, mem movingheap.Memory, v int64) (movingheap.Addr, error) {
	return Allocate(ap, object.IntegerSize, func(addr movingheap.Addr) error {
		return object.WriteInteger(mem, addr, v)
	})
}

// MakePair allocates a Pair object referring to car and cdr.
// Both referents must be held by an ambiguous root across the call: a commit
// retry writes the same addresses again, so they must not have moved.
func MakePair(ap Point, mem movingheap.Memory, car, cdr movingheap.Addr) (movingheap.Addr, error) {
	return Allocate(ap, object.PairSize, func(addr movingheap.Addr) error {
		return object.WritePair(mem, addr, car, cdr)
	})
}
