package object

import (
	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
)

// WordSize is the heap word size and the alignment of every object.
const WordSize = 8

// Field offsets from the object header.
const (
	tagOffset     = 0
	payloadOffset = WordSize
	cdrOffset     = 2 * WordSize
)

// Variant footprints in bytes.
const (
	IntegerSize   uint32 = 2 * WordSize
	ForwardSize   uint32 = 2 * WordSize
	PadSingleSize uint32 = WordSize
	PadMultiMin   uint32 = 2 * WordSize
	PairSize      uint32 = 3 * WordSize
)

// MinSize is the smallest footprint any object may have.
const MinSize = PadSingleSize

// AlignWord rounds size up to the next multiple of WordSize.
func AlignWord(size uint32) uint32 {
	return (size + WordSize - 1) &^ (WordSize - 1)
}

// IsAligned reports whether v is a multiple of WordSize.
func IsAligned(v uint32) bool {
	return v&(WordSize-1) == 0
}

// SizeOf returns the fixed footprint for tag. PadMulti has no fixed
// footprint; ok is false for it and for unknown tags.
func SizeOf(tag Tag) (size uint32, ok bool) {
	switch tag {
	case TagInteger:
		return IntegerSize, true
	case TagForward:
		return ForwardSize, true
	case TagPadSingle:
		return PadSingleSize, true
	case TagPair:
		return PairSize, true
	default:
		return 0, false
	}
}

// TagAt reads the tag of the object at addr.
func TagAt(mem movingheap.Memory, addr movingheap.Addr) (Tag, error) {
	v, err := mem.ReadU64(uint32(addr) + tagOffset)
	if err != nil {
		return 0, err
	}
	return Tag(v), nil
}

// Footprint returns the footprint of the object at addr.
// An unknown tag or a malformed pad size is reported as heap corruption.
func Footprint(mem movingheap.Memory, addr movingheap.Addr) (uint32, error) {
	tag, err := TagAt(mem, addr)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseSkip, errors.KindOutOfBounds, err, "read tag")
	}
	if size, ok := SizeOf(tag); ok {
		return size, nil
	}
	if tag != TagPadMulti {
		return 0, errors.UnknownTag(errors.PhaseSkip, uint32(addr), uint64(tag))
	}
	raw, err := mem.ReadU64(uint32(addr) + payloadOffset)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseSkip, errors.KindOutOfBounds, err, "read pad size")
	}
	if raw < uint64(PadMultiMin) || raw > uint64(^uint32(0)) || !IsAligned(uint32(raw)) {
		return 0, errors.HeapCorruption(errors.PhaseSkip, uint32(addr), "malformed pad size")
	}
	return uint32(raw), nil
}
