package object

import (
	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
)

func writeWords(mem movingheap.Memory, addr movingheap.Addr, words ...uint64) error {
	for i, w := range words {
		if err := mem.WriteU64(uint32(addr)+uint32(i)*WordSize, w); err != nil {
			return err
		}
	}
	return nil
}

func expectTag(mem movingheap.Memory, addr movingheap.Addr, want Tag) error {
	tag, err := TagAt(mem, addr)
	if err != nil {
		return err
	}
	if tag != want {
		return errors.New(errors.PhaseScan, errors.KindInvalidInput).
			Addr(uint32(addr)).
			Detail("expected %s object, found %s", want, tag).
			Build()
	}
	return nil
}

// WriteInteger initializes an Integer object holding v at addr.
func WriteInteger(mem movingheap.Memory, addr movingheap.Addr, v int64) error {
	return writeWords(mem, addr, uint64(TagInteger), uint64(v))
}

// Integer returns the value of the Integer object at addr.
func Integer(mem movingheap.Memory, addr movingheap.Addr) (int64, error) {
	if err := expectTag(mem, addr, TagInteger); err != nil {
		return 0, err
	}
	v, err := mem.ReadU64(uint32(addr) + payloadOffset)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// WritePair initializes a Pair object at addr.
func WritePair(mem movingheap.Memory, addr movingheap.Addr, car, cdr movingheap.Addr) error {
	return writeWords(mem, addr, uint64(TagPair), uint64(car), uint64(cdr))
}

// Pair returns the references held by the Pair object at addr.
func Pair(mem movingheap.Memory, addr movingheap.Addr) (car, cdr movingheap.Addr, err error) {
	if err := expectTag(mem, addr, TagPair); err != nil {
		return movingheap.None, movingheap.None, err
	}
	a, err := mem.ReadU64(uint32(addr) + payloadOffset)
	if err != nil {
		return movingheap.None, movingheap.None, err
	}
	d, err := mem.ReadU64(uint32(addr) + cdrOffset)
	if err != nil {
		return movingheap.None, movingheap.None, err
	}
	return movingheap.Addr(a), movingheap.Addr(d), nil
}

// CarSlot returns the address of the Pair's first reference field.
func CarSlot(addr movingheap.Addr) uint32 {
	return uint32(addr) + payloadOffset
}

// CdrSlot returns the address of the Pair's second reference field.
func CdrSlot(addr movingheap.Addr) uint32 {
	return uint32(addr) + cdrOffset
}

// WriteForward overwrites the header at addr with a stub pointing at to.
func WriteForward(mem movingheap.Memory, addr, to movingheap.Addr) error {
	return writeWords(mem, addr, uint64(TagForward), uint64(to))
}

// ForwardTarget returns the stub target at addr, which must be a Forward object.
func ForwardTarget(mem movingheap.Memory, addr movingheap.Addr) (movingheap.Addr, error) {
	v, err := mem.ReadU64(uint32(addr) + payloadOffset)
	if err != nil {
		return movingheap.None, err
	}
	return movingheap.Addr(v), nil
}

// WritePadSingle marks the MinSize bytes at addr as dead.
func WritePadSingle(mem movingheap.Memory, addr movingheap.Addr) error {
	return writeWords(mem, addr, uint64(TagPadSingle))
}

// WritePadMulti marks size bytes at addr as dead.
func WritePadMulti(mem movingheap.Memory, addr movingheap.Addr, size uint32) error {
	return writeWords(mem, addr, uint64(TagPadMulti), uint64(size))
}
