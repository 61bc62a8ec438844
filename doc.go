// Package movingheap implements the client side of a moving, incremental
// tracing garbage collector: the object format a collector needs to walk and
// relocate heap objects, the two-phase allocation protocol that keeps
// allocation safe while the collector runs, and the root tables that keep
// mutator references up to date across relocation.
//
// # Architecture Overview
//
//	movingheap/          Addr and Memory: the address model shared by all packages
//	├── arena/           Unmanaged heap arena backed by a wazero linear memory
//	├── object/          Tagged object layouts and footprints
//	├── format/          Scan, skip, forward, is-forwarded and pad callbacks; reference fixup
//	├── alloc/           Reserve/commit allocation protocol
//	├── root/            Exact root tables and stack root registration
//	├── collector/       Reference mostly-copying collector driving the format
//	├── errors/          Structured error types (heap corruption, out of memory, ...)
//	└── cmd/heapdemo/    Demo driver
//
// # Quick Start
//
//	a, err := arena.New(ctx, arena.Config{Size: 32 << 20})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close(ctx)
//
//	c, err := collector.New(a.Memory(), collector.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	roots := root.NewTable(50)
//	if _, err := roots.Register(c); err != nil {
//	    log.Fatal(err)
//	}
//
//	ap := c.NewAllocationPoint()
//	obj, err := alloc.MakeInteger(ap, a.Memory(), 42)
//	if err != nil {
//	    log.Fatal(err) // out of memory is never silently ignored
//	}
//	roots.Insert(obj)
//
// # Address Model
//
// The heap lives in a dedicated linear memory that Go's own collector never
// scans or moves. Objects are named by their byte offset (Addr) into that
// memory. Offset 0 is reserved so that None can mark an empty reference.
//
// # Thread Safety
//
// Format callbacks run in whatever goroutine the collector chooses and never
// allocate. An allocation point belongs to a single mutator goroutine; its
// commit path is lock-free and retries when a collection invalidates the
// reservation. Root tables are safe for concurrent use by the mutator and the
// collector.
package movingheap
