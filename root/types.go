package root

import (
	"github.com/wippyai/movingheap/format"
)

// Handle is an opaque reference to a registered root.
// Handle 0 is reserved and always invalid.
type Handle uint32

// ScanFunc scans one registered root, fixing every reference it holds
// through ss. closure is the value given at registration.
type ScanFunc func(ss format.ScanState, closure any) error

// StackMarker names the cold end of a mutator stack: the collector scans the
// stack of Thread from Depth towards the hot end.
type StackMarker struct {
	Thread uint32
	Depth  int
}

// Registrar is the collector's root registration surface.
type Registrar interface {
	// RegisterExactRoot registers a root whose references are precisely
	// typed. scan is invoked with closure during every root scan.
	RegisterExactRoot(scan ScanFunc, closure any) (Handle, error)

	// RegisterStackRoot registers the stack identified by marker for
	// ambiguous scanning.
	RegisterStackRoot(marker StackMarker) (Handle, error)

	// DeregisterRoot removes a root registered by either method.
	DeregisterRoot(h Handle) error
}

// RegisterStack registers the mutator stack whose cold end is marker.
// The collector does all of the scanning.
func RegisterStack(r Registrar, marker StackMarker) (Handle, error) {
	return r.RegisterStackRoot(marker)
}
