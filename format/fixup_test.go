package format

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
)

func TestFix_None(t *testing.T) {
	called := false
	ss := ScanFunc(func(ref movingheap.Addr) (movingheap.Addr, error) {
		called = true
		return ref, nil
	})
	ref := movingheap.None
	if err := Fix(ss, &ref); err != nil {
		t.Fatalf("Fix(None): %v", err)
	}
	if called {
		t.Error("collector consulted for None")
	}
	if ref != movingheap.None {
		t.Errorf("ref = %d, want None", ref)
	}
}

func TestFix_Rewrites(t *testing.T) {
	ss := ScanFunc(func(ref movingheap.Addr) (movingheap.Addr, error) {
		return ref * 2, nil
	})
	ref := movingheap.Addr(4096)
	if err := Fix(ss, &ref); err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if ref != 8192 {
		t.Errorf("ref = %d, want 8192", ref)
	}
}

func TestFix_FailureLeavesReference(t *testing.T) {
	cause := stderrors.New("condemned")
	ss := ScanFunc(func(ref movingheap.Addr) (movingheap.Addr, error) {
		return 1, cause
	})
	ref := movingheap.Addr(64)
	err := Fix(ss, &ref)
	if !stderrors.Is(err, errors.ErrFixupFailure) {
		t.Fatalf("err = %v, want fixup failure", err)
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("cause lost: %v", err)
	}
	if ref != 64 {
		t.Errorf("ref = %d after failed fix, want 64", ref)
	}
}

func TestFix_KeepsCollectorFixupError(t *testing.T) {
	original := errors.FixupFailure(errors.PhaseCollect, 64, nil)
	ss := ScanFunc(func(ref movingheap.Addr) (movingheap.Addr, error) {
		return movingheap.None, original
	})
	ref := movingheap.Addr(64)
	if err := Fix(ss, &ref); err != original {
		t.Errorf("err = %v, want the collector's error unchanged", err)
	}
}
