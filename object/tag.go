package object

import "fmt"

// Tag discriminates object variants. It occupies the first word of every object.
type Tag uint64

const (
	TagInteger   Tag = iota // user integer value
	TagForward              // relocation stub pointing at the new copy
	TagPadSingle            // dead gap of exactly MinSize bytes
	TagPadMulti             // dead gap with an explicit size
	TagPair                 // two references
	tagCount
)

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	return t < tagCount
}

// IsPad reports whether t marks dead space.
func (t Tag) IsPad() bool {
	return t == TagPadSingle || t == TagPadMulti
}

// HasRefs reports whether objects with tag t carry reference fields.
func (t Tag) HasRefs() bool {
	return t == TagPair
}

func (t Tag) String() string {
	switch t {
	case TagInteger:
		return "integer"
	case TagForward:
		return "forward"
	case TagPadSingle:
		return "pad1"
	case TagPadMulti:
		return "pad"
	case TagPair:
		return "pair"
	default:
		return fmt.Sprintf("tag(%d)", uint64(t))
	}
}
