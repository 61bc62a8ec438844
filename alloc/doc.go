// Package alloc implements the two-phase allocation protocol mutators use to
// create objects while a collector may be running.
//
// An allocation reserves a block from an allocation point, initializes the
// whole block in place, and commits it. Commit fails when the collector ran a
// step that invalidated the reservation; the block is then abandoned whole and
// the protocol restarts from Reserve:
//
//	for {
//	    addr := Reserve(size)   // out of memory ends the request
//	    initialize(addr)        // no other goroutine can see addr yet
//	    if Commit(addr, size) {
//	        return addr          // the object now exists
//	    }
//	}
//
// There is no retry limit. The loop terminates because every collection the
// allocation races with completes before the next reservation is refilled;
// it never waits on a lock to get there.
//
// Only a committed object may be stored in a root or another object.
package alloc
