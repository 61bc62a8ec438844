package alloc

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/arena"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/object"
)

// bumpPoint is a bump allocator whose commits fail on demand.
type bumpPoint struct {
	next        movingheap.Addr
	limit       movingheap.Addr
	failCommits int
	reserves    int
	commits     int
	committed   []movingheap.Addr
}

func (p *bumpPoint) Reserve(size uint32) (movingheap.Addr, error) {
	p.reserves++
	if uint64(p.next)+uint64(size) > uint64(p.limit) {
		return movingheap.None, errors.OutOfMemory(errors.PhaseReserve, size, uint32(p.limit-p.next))
	}
	return p.next, nil
}

func (p *bumpPoint) Commit(addr movingheap.Addr, size uint32) bool {
	p.commits++
	if p.failCommits > 0 {
		p.failCommits--
		return false
	}
	p.committed = append(p.committed, addr)
	p.next = addr.Add(size)
	return true
}

func newMemory(t *testing.T) movingheap.Memory {
	t.Helper()
	ctx := context.Background()
	a, err := arena.New(ctx, arena.Config{Size: arena.PageSize})
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	t.Cleanup(func() { a.Close(ctx) })
	return a.Memory()
}

func TestMakeInteger_ReadBack(t *testing.T) {
	mem := newMemory(t)
	ap := &bumpPoint{next: 8, limit: arena.PageSize}

	for i := int64(0); i < 1000; i++ {
		v := i*7919 - 3000
		addr, err := MakeInteger(ap, mem, v)
		if err != nil {
			t.Fatalf("MakeInteger(%d): %v", v, err)
		}
		got, err := object.Integer(mem, addr)
		if err != nil {
			t.Fatalf("Integer: %v", err)
		}
		if got != v {
			t.Fatalf("read back %d, want %d", got, v)
		}
		if !object.IsAligned(uint32(addr)) {
			t.Fatalf("address %d not word aligned", addr)
		}
	}
}

func TestAllocate_RetriesCommitRace(t *testing.T) {
	mem := newMemory(t)
	ap := &bumpPoint{next: 64, limit: arena.PageSize, failCommits: 5}

	inits := 0
	addr, err := Allocate(ap, object.IntegerSize, func(a movingheap.Addr) error {
		inits++
		return object.WriteInteger(mem, a, int64(inits))
	})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if ap.reserves != 6 || ap.commits != 6 || inits != 6 {
		t.Errorf("reserves=%d commits=%d inits=%d, want 6 each", ap.reserves, ap.commits, inits)
	}
	// Every retry reinitializes the whole block from scratch.
	got, _ := object.Integer(mem, addr)
	if got != 6 {
		t.Errorf("value = %d, want 6 (the last initialization)", got)
	}
	if len(ap.committed) != 1 || ap.committed[0] != addr {
		t.Errorf("committed = %v", ap.committed)
	}
}

func TestAllocate_OutOfMemory(t *testing.T) {
	mem := newMemory(t)
	ap := &bumpPoint{next: 64, limit: movingheap.Addr(64 + object.IntegerSize)}

	if _, err := MakeInteger(ap, mem, 1); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	addr, err := MakeInteger(ap, mem, 2)
	if !stderrors.Is(err, errors.ErrOutOfMemory) {
		t.Fatalf("err = %v, want out_of_memory", err)
	}
	if addr != movingheap.None {
		t.Errorf("addr = %d on failure, want None", addr)
	}
	if ap.commits != 1 {
		t.Errorf("commits = %d; a failed reservation must not be committed", ap.commits)
	}
}

func TestAllocate_NoneReservation(t *testing.T) {
	ap := &nonePoint{}
	_, err := Allocate(ap, 16, func(movingheap.Addr) error {
		t.Fatal("init called for a None reservation")
		return nil
	})
	if !stderrors.Is(err, errors.ErrOutOfMemory) {
		t.Errorf("err = %v, want out_of_memory", err)
	}
}

type nonePoint struct{}

func (nonePoint) Reserve(uint32) (movingheap.Addr, error) { return movingheap.None, nil }
func (nonePoint) Commit(movingheap.Addr, uint32) bool     { return true }

func TestAllocate_AlignsSize(t *testing.T) {
	mem := newMemory(t)
	ap := &bumpPoint{next: 64, limit: arena.PageSize}

	a, err := Allocate(ap, 9, func(addr movingheap.Addr) error {
		return object.WritePadMulti(mem, addr, 16)
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Allocate(ap, 1, func(addr movingheap.Addr) error {
		return object.WritePadSingle(mem, addr)
	})
	if err != nil {
		t.Fatal(err)
	}
	if b-a != 16 {
		t.Errorf("9-byte request occupied %d bytes, want 16", b-a)
	}
}

func TestAllocate_ZeroSize(t *testing.T) {
	ap := &bumpPoint{next: 64, limit: arena.PageSize}
	if _, err := Allocate(ap, 0, func(movingheap.Addr) error { return nil }); err == nil {
		t.Error("expected error for zero-size allocation")
	}
	if ap.reserves != 0 {
		t.Error("zero-size allocation reached the allocation point")
	}
}

func TestAllocate_InitFailure(t *testing.T) {
	ap := &bumpPoint{next: 64, limit: arena.PageSize}
	boom := stderrors.New("write failed")
	_, err := Allocate(ap, 16, func(movingheap.Addr) error { return boom })
	if !stderrors.Is(err, boom) {
		t.Errorf("err = %v, want init failure", err)
	}
	if ap.commits != 0 {
		t.Error("block committed after failed initialization")
	}
}

func TestMakePair(t *testing.T) {
	mem := newMemory(t)
	ap := &bumpPoint{next: 64, limit: arena.PageSize, failCommits: 1}

	x, err := MakeInteger(ap, mem, 10)
	if err != nil {
		t.Fatal(err)
	}
	y, err := MakeInteger(ap, mem, 20)
	if err != nil {
		t.Fatal(err)
	}
	p, err := MakePair(ap, mem, x, y)
	if err != nil {
		t.Fatal(err)
	}
	car, cdr, err := object.Pair(mem, p)
	if err != nil {
		t.Fatal(err)
	}
	if car != x || cdr != y {
		t.Errorf("pair = (%d, %d), want (%d, %d)", car, cdr, x, y)
	}
}

func BenchmarkMakeInteger(b *testing.B) {
	ctx := context.Background()
	a, err := arena.New(ctx, arena.Config{Size: arena.PageSize})
	if err != nil {
		b.Fatal(err)
	}
	defer a.Close(ctx)
	mem := a.Memory()
	ap := &bumpPoint{next: 64, limit: arena.PageSize}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := MakeInteger(ap, mem, int64(i)); err != nil {
			ap.next = 64
		}
	}
}
