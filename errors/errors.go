package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseScan    Phase = "scan"    // format scan callback
	PhaseSkip    Phase = "skip"    // format skip callback
	PhaseForward Phase = "forward" // format forward callback
	PhasePad     Phase = "pad"     // format pad callback
	PhaseFixup   Phase = "fixup"   // reference fixup
	PhaseReserve Phase = "reserve" // allocation point reservation
	PhaseCommit  Phase = "commit"  // allocation point commit
	PhaseRoot    Phase = "root"    // root table operations
	PhaseArena   Phase = "arena"   // arena creation and access
	PhaseCollect Phase = "collect" // collector trace and reclaim
	PhaseConfig  Phase = "config"  // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindHeapCorruption Kind = "heap_corruption"
	KindOutOfMemory    Kind = "out_of_memory"
	KindCommitRace     Kind = "commit_race"
	KindFixupFailure   Kind = "fixup_failure"
	KindCapacity       Kind = "capacity"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindClosed         Kind = "closed"
)

// Sentinels for errors.Is checks that only care about the failure class.
var (
	ErrHeapCorruption = &Error{Kind: KindHeapCorruption}
	ErrOutOfMemory    = &Error{Kind: KindOutOfMemory}
	ErrCommitRace     = &Error{Kind: KindCommitRace}
	ErrFixupFailure   = &Error{Kind: KindFixupFailure}
	ErrCapacity       = &Error{Kind: KindCapacity}
	ErrClosed         = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Addr   uint32
	Size   uint32
	HasLoc bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.HasLoc {
		fmt.Fprintf(&b, " at 0x%08x", e.Addr)
		if e.Size != 0 {
			fmt.Fprintf(&b, " (size %d)", e.Size)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Addr records the heap address the error refers to
func (b *Builder) Addr(addr uint32) *Builder {
	b.err.Addr = addr
	b.err.HasLoc = true
	return b
}

// Size records the byte size involved
func (b *Builder) Size(size uint32) *Builder {
	b.err.Size = size
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// HeapCorruption creates a heap corruption error for the object at addr
func HeapCorruption(phase Phase, addr uint32, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindHeapCorruption,
		Addr:   addr,
		HasLoc: true,
		Detail: detail,
	}
}

// UnknownTag creates a heap corruption error for an unrecognized type tag
func UnknownTag(phase Phase, addr uint32, tag uint64) *Error {
	return HeapCorruption(phase, addr, fmt.Sprintf("unexpected object on the heap: tag %d", tag))
}

// Overrun creates a heap corruption error for a walk that crosses its limit
func Overrun(phase Phase, addr, next, limit uint32) *Error {
	return HeapCorruption(phase, addr, fmt.Sprintf("object ends at 0x%08x past limit 0x%08x", next, limit))
}

// OutOfMemory creates an out of memory error for a reservation of size bytes
func OutOfMemory(phase Phase, size, available uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfMemory,
		Size:   size,
		Detail: fmt.Sprintf("cannot reserve %d bytes (%d available)", size, available),
	}
}

// CommitRace creates a commit race error for the discarded block at addr
func CommitRace(addr, size uint32) *Error {
	return &Error{
		Phase:  PhaseCommit,
		Kind:   KindCommitRace,
		Addr:   addr,
		Size:   size,
		HasLoc: true,
		Detail: "reservation invalidated by collector",
	}
}

// FixupFailure creates a fixup failure error for the reference ref
func FixupFailure(phase Phase, ref uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFixupFailure,
		Addr:   ref,
		HasLoc: true,
		Detail: "reference not resolved",
		Cause:  cause,
	}
}

// Capacity creates a capacity exhausted error
func Capacity(phase Phase, capacity int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCapacity,
		Detail: fmt.Sprintf("all %d slots in use", capacity),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, id any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %v not found", what, id),
	}
}

// Closed creates an error for use after close
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
