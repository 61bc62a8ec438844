// Package errors provides structured error types for the movingheap library.
//
// Errors are categorized by Phase (which callback or protocol step raised it)
// and Kind (the failure class). The four failure classes of the collector
// contract are:
//
//   - KindHeapCorruption: an unknown tag or an object walk that overruns its
//     range. Unrecoverable; the format adapter aborts the process with it.
//   - KindOutOfMemory: a reservation the arena cannot satisfy. Always
//     returned to the allocating caller.
//   - KindCommitRace: a commit invalidated by collector activity. Consumed by
//     the allocation retry loop, never returned to the mutator.
//   - KindFixupFailure: the collector could not resolve a reference during a
//     scan. Aborts the scan; the collector decides when to rescan.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseScan, errors.KindHeapCorruption).
//		Addr(uint32(addr)).
//		Detail("unknown tag %d", tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfMemory(errors.PhaseReserve, size, free)
//	err := errors.FixupFailure(errors.PhaseScan, ref, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// The Err* sentinels match any error of their kind regardless of phase.
package errors
