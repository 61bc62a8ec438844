// Package collector is a mostly-copying, incremental collector that drives
// the format callbacks, allocation points and root registrations of the rest
// of the module.
//
// The arena is divided into fixed-size segments. Allocation points bump
// allocate inside a buffer segment without taking a lock; a collection flips
// every allocation point to a new epoch so that commits racing the flip fail
// and are retried. Buffers and segments named by a thread's shadow stack are
// pinned; every other heap segment is condemned and its reachable objects are
// copied to fresh segments. When no segment is free to copy into, the object's
// whole segment is retained in place instead.
//
// Tracing runs in steps bounded by a copy budget. When a step exhausts its
// budget the current fix fails, the scan that issued it aborts, and the next
// step scans the same area again.
package collector
