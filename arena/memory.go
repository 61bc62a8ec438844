package arena

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Memory adapts the arena's wazero memory to movingheap.Memory.
type Memory struct {
	mem api.Memory
}

// Read returns a view of length bytes at offset. The view aliases the arena.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

// Write copies data into the arena at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadU64 reads a 64-bit little-endian heap word.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU64 writes a 64-bit little-endian heap word.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the arena size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}
