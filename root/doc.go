// Package root provides the exact roots a mutator registers with the
// collector, and the bridge to the collector's conservative stack scan.
//
// # Exact roots
//
// A Table is a fixed-capacity, ordered set of reference slots, all None when
// created. Only the mutator adds or replaces entries. The collector, through
// Table.Scan, rewrites the entries in place when their referents move; it
// never adds or removes one. Scan visits every slot, used or not, and a None
// slot is a no-op.
//
//	roots := root.NewTable(50)
//	h, err := roots.Register(c) // c implements Registrar
//	...
//	roots.Insert(obj)
//
// # Stack roots
//
// The mutator's stack is scanned ambiguously by the collector's own facility.
// This package only hands the collector the StackMarker the scan starts from;
// it performs no stack scanning itself.
package root
