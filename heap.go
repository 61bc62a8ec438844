package movingheap

// Addr is the location of an object header, as a byte offset into the arena.
// Addresses are stable integers: only the collector changes which Addr an
// object lives at, and only by leaving a forwarding stub behind.
type Addr uint32

// None is the absent reference. Offset 0 is never a valid object header.
const None Addr = 0

// IsNone reports whether a is the absent reference.
func (a Addr) IsNone() bool {
	return a == None
}

// Add returns a advanced by n bytes.
func (a Addr) Add(n uint32) Addr {
	return a + Addr(n)
}

// Memory is the word-level view of the heap arena.
// All heap words are 64-bit little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU64(offset uint32) (uint64, error)
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer is implemented by memories that know their size in bytes.
type MemorySizer interface {
	Size() uint32
}
