// Package format implements the object format callbacks a moving collector
// invokes while tracing and compacting the heap.
//
// # Callbacks
//
//   - Scan walks the objects in [base, limit) and fixes every reference field.
//   - Skip returns the address just past the object at an address.
//   - Forward replaces a copied object with a stub naming its new location.
//   - IsForwarded reports the stub target, or None for ordinary objects.
//   - Pad fills a dead gap so a later walk can step over it.
//
// The callbacks never allocate and never start a collection. They may run on
// any goroutine the collector chooses.
//
// # Fixup
//
// Every reference rewrite goes through Fix: the reference is copied to a
// local, the collector's ScanState resolves it, and only a successful answer
// is written back. The first failure aborts the surrounding scan and is
// returned to the collector, which decides when to scan again. Rescanning is
// safe because a fixed reference resolves to itself.
//
// # Corruption
//
// An unknown tag, a malformed pad, or a walk that crosses its limit means the
// heap's structure is already broken. The format logs the condition and
// panics with a heap_corruption *errors.Error; it never tries to recover.
//
// # Forwarding larger objects
//
// A forwarding stub is ForwardSize bytes. Objects with exactly that footprint
// are overwritten by the stub. Larger objects receive the stub followed by a
// pad covering the rest, so Skip over the old location still lands on the
// next object boundary (stub, then pad). Objects smaller than a stub cannot be
// forwarded; no live variant is that small, so it is treated as corruption.
package format
