package collector

import (
	stderrors "errors"
	"math/rand"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/alloc"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/object"
	"github.com/wippyai/movingheap/root"
)

func TestAllocationPoint_ReadBack(t *testing.T) {
	c, mem := newTestCollector(t, 1<<20, Config{SegmentSize: 4096})
	ap := c.NewAllocationPoint()

	tests := []int64{0, 1, -1, 42, 1 << 62, -(1 << 62)}
	for _, v := range tests {
		addr := mustInteger(t, ap, mem, v)
		if addr.IsNone() || uint32(addr)%object.WordSize != 0 {
			t.Fatalf("MakeInteger(%d) = %d", v, addr)
		}
		expectInteger(t, mem, addr, v)
	}
}

func TestAllocationPoint_Bump(t *testing.T) {
	c, _ := newTestCollector(t, 1<<20, Config{SegmentSize: 4096})
	ap := c.NewAllocationPoint()

	a, err := ap.Reserve(13)
	if err != nil {
		t.Fatal(err)
	}
	if !ap.Commit(a, 13) {
		t.Fatal("Commit failed")
	}
	b, err := ap.Reserve(8)
	if err != nil {
		t.Fatal(err)
	}
	if b != a.Add(16) {
		t.Errorf("second reservation at %d, want %d", b, a.Add(16))
	}
	if uint32(a)%4096 != 0 {
		t.Errorf("first reservation %d not at a segment base", a)
	}
	if ap.Commit(a, 8) {
		t.Error("commit of a stale address succeeded")
	}
	if _, err := ap.Reserve(0); err == nil {
		t.Error("expected error for zero-sized reservation")
	}
}

func TestAllocationPoint_RefillPadsTail(t *testing.T) {
	c, mem := newTestCollector(t, 1<<20, Config{SegmentSize: 4096})
	ap := c.NewAllocationPoint()

	first := mustInteger(t, ap, mem, 1)
	big, err := alloc.Allocate(ap, 4096-8, func(addr movingheap.Addr) error {
		return object.WritePadMulti(mem, addr, 4096-8)
	})
	if err != nil {
		t.Fatal(err)
	}
	if big == first.Add(object.IntegerSize) {
		t.Fatal("oversized request fit in the exhausted buffer")
	}

	tail := first.Add(object.IntegerSize)
	fp, err := object.Footprint(mem, tail)
	if err != nil {
		t.Fatal(err)
	}
	if tag, _ := object.TagAt(mem, tail); !tag.IsPad() || fp != 4096-object.IntegerSize {
		t.Errorf("tail at %d: tag %v footprint %d", tail, tag, fp)
	}
}

func TestAllocationPoint_CommitRace(t *testing.T) {
	c, mem := newTestCollector(t, 1<<20, Config{SegmentSize: 4096})
	ap := c.NewAllocationPoint()
	mustInteger(t, ap, mem, 0)

	addr, err := ap.Reserve(object.IntegerSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := object.WriteInteger(mem, addr, 5); err != nil {
		t.Fatal(err)
	}
	if err := c.Collect(); err != nil {
		t.Fatal(err)
	}
	if ap.Commit(addr, object.IntegerSize) {
		t.Fatal("commit across a flip succeeded")
	}

	again := mustInteger(t, ap, mem, 6)
	if again != addr {
		t.Errorf("retry reserved %d, want the discarded block at %d", again, addr)
	}
	expectInteger(t, mem, again, 6)

	s := c.Stats()
	if s.CommitRaces != 1 || s.Commits != 2 {
		t.Errorf("races = %d, commits = %d", s.CommitRaces, s.Commits)
	}
}

func TestAllocationPoint_CommitRaceLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, mem := newTestCollector(t, 1<<20, Config{SegmentSize: 4096, Logger: zap.New(core)})
	ap := c.NewAllocationPoint()
	mustInteger(t, ap, mem, 0)

	addr, err := ap.Reserve(object.IntegerSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Collect(); err != nil {
		t.Fatal(err)
	}
	if ap.Commit(addr, object.IntegerSize) {
		t.Fatal("commit across a flip succeeded")
	}

	entries := logs.FilterMessage("commit discarded").All()
	if len(entries) != 1 {
		t.Fatalf("got %d commit discarded entries, want 1", len(entries))
	}
	field, ok := entries[0].ContextMap()["error"]
	if !ok {
		t.Fatal("entry has no error field")
	}
	if msg, _ := field.(string); msg != errors.CommitRace(uint32(addr), object.IntegerSize).Error() {
		t.Errorf("error field = %v", field)
	}
}

func TestAllocate_RetriesAfterFlip(t *testing.T) {
	c, mem := newTestCollector(t, 1<<20, Config{SegmentSize: 4096})
	ap := c.NewAllocationPoint()

	inits := 0
	addr, err := alloc.Allocate(ap, object.IntegerSize, func(addr movingheap.Addr) error {
		inits++
		if inits == 1 {
			if err := c.Collect(); err != nil {
				return err
			}
		}
		return object.WriteInteger(mem, addr, 11)
	})
	if err != nil {
		t.Fatal(err)
	}
	if inits != 2 {
		t.Errorf("init ran %d times, want 2", inits)
	}
	expectInteger(t, mem, addr, 11)
	if s := c.Stats(); s.CommitRaces != 1 {
		t.Errorf("CommitRaces = %d", s.CommitRaces)
	}
}

func TestAllocationPoint_OutOfMemory(t *testing.T) {
	c, mem := newTestCollector(t, 256<<10, Config{SegmentSize: 4096})
	ap := c.NewAllocationPoint()

	addr, err := ap.Reserve(512 << 10)
	if !stderrors.Is(err, errors.ErrOutOfMemory) {
		t.Fatalf("err = %v, want out of memory", err)
	}
	if !addr.IsNone() {
		t.Errorf("failed reservation returned %d", addr)
	}

	_, err = alloc.MakeInteger(ap, mem, 1)
	if err != nil {
		t.Fatalf("allocation after failed reservation: %v", err)
	}
	if s := c.Stats(); s.OutOfMemory != 1 {
		t.Errorf("OutOfMemory = %d", s.OutOfMemory)
	}
}

func TestAllocate_OutOfMemoryWhenParked(t *testing.T) {
	c, mem := newTestCollector(t, 64<<10, Config{SegmentSize: 4096})
	c.Park()
	ap := c.NewAllocationPoint()

	n := 0
	var err error
	for ; n < 1<<20; n++ {
		if _, err = alloc.MakeInteger(ap, mem, int64(n)); err != nil {
			break
		}
	}
	if !stderrors.Is(err, errors.ErrOutOfMemory) {
		t.Fatalf("err = %v after %d allocations", err, n)
	}
	if want := int(15 * 4096 / object.IntegerSize); n != want {
		t.Errorf("allocated %d integers, want %d", n, want)
	}

	c.Release()
	if _, err := alloc.MakeInteger(ap, mem, 0); err != nil {
		t.Fatalf("allocation after release: %v", err)
	}
	if s := c.Stats(); s.Collections != 1 {
		t.Errorf("Collections = %d, want one emergency collection", s.Collections)
	}
}

func TestScenario_RetainedIntegersSurviveChurn(t *testing.T) {
	arenaSize := uint64(32 << 20)
	churn := 10_000_000
	if testing.Short() {
		arenaSize = 2 << 20
		churn = 200_000
	}
	c, mem := newTestCollector(t, arenaSize, Config{})

	table := root.NewTable(50)
	if _, err := table.Register(c); err != nil {
		t.Fatal(err)
	}
	th := c.RegisterThread()
	if _, err := root.RegisterStack(c, th.Marker()); err != nil {
		t.Fatal(err)
	}
	ap := c.NewAllocationPoint()

	rng := rand.New(rand.NewSource(1))
	want := map[int]int64{}
	for i := 0; i < 1000; i++ {
		v := rng.Int63n(100)
		addr := mustInteger(t, ap, mem, v)
		if v > 96 {
			if idx, err := table.Insert(addr); err == nil {
				want[idx] = v
			}
		}
	}
	if len(want) == 0 {
		t.Fatal("nothing retained")
	}

	for i := 0; i < churn; i++ {
		if _, err := alloc.MakeInteger(ap, mem, int64(i)); err != nil {
			t.Fatalf("churn %d: %v", i, err)
		}
	}

	c.Park()
	defer c.Release()
	for i := 0; i < table.Cap(); i++ {
		addr, _ := table.Get(i)
		v, ok := want[i]
		if !ok {
			if !addr.IsNone() {
				t.Errorf("slot %d = %d, want empty", i, addr)
			}
			continue
		}
		expectInteger(t, mem, addr, v)
	}

	s := c.Stats()
	if s.Collections == 0 {
		t.Error("churn never triggered a collection")
	}
	if s.OutOfMemory != 0 {
		t.Errorf("OutOfMemory = %d", s.OutOfMemory)
	}
}

func BenchmarkAllocationPoint_MakeInteger(b *testing.B) {
	c, mem := newTestCollector(b, 32<<20, Config{})
	ap := c.NewAllocationPoint()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := alloc.MakeInteger(ap, mem, int64(i)); err != nil {
			b.Fatal(err)
		}
	}
}
