// Package arena provides the unmanaged memory the heap lives in.
//
// The arena is the exported linear memory of a synthesized, memory-only
// WebAssembly module instantiated in wazero. Go's collector treats the
// backing store as a single opaque allocation, so nothing inside it is ever
// scanned or moved by the Go runtime; objects are named by their byte offset
// (movingheap.Addr) and rewritten in place by the heap's own collector.
//
// The memory has a fixed page count: it is created at its maximum size and
// never grows, so every valid offset stays valid for the arena's lifetime.
package arena
