package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/alloc"
	"github.com/wippyai/movingheap/arena"
	"github.com/wippyai/movingheap/collector"
	"github.com/wippyai/movingheap/object"
	"github.com/wippyai/movingheap/root"
)

type phase int

const (
	phaseSetup phase = iota
	phaseInitial
	phaseChurn
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseSetup:
		return "setup"
	case phaseInitial:
		return "initial"
	case phaseChurn:
		return "churn"
	default:
		return "done"
	}
}

// snapshot is reported while the scenario runs.
type snapshot struct {
	phase phase
	done  int
	total int
	stats collector.Stats
}

// scenario allocates random integers, keeps the large ones in a root table,
// then churns garbage through the collector.
type scenario struct {
	cfg   demoConfig
	log   *zap.Logger
	arena *arena.Arena
	c     *collector.Collector
	table *root.Table
	ap    *collector.AllocationPoint

	drawn []int64
}

func newScenario(ctx context.Context, cfg demoConfig, log *zap.Logger) (*scenario, error) {
	a, err := arena.New(ctx, arena.Config{Size: cfg.ArenaSize})
	if err != nil {
		return nil, err
	}
	log.Info("arena created", zap.String("size", formatSize(uint64(a.Size()))))

	ccfg := cfg.collectorConfig()
	ccfg.Logger = log.Named("collector")
	c, err := collector.New(a.Memory(), ccfg)
	if err != nil {
		return nil, multierr.Append(err, a.Close(ctx))
	}

	s := &scenario{
		cfg:   cfg,
		log:   log,
		arena: a,
		c:     c,
		table: root.NewTable(cfg.Roots),
	}
	if _, err := s.table.Register(c); err != nil {
		return nil, multierr.Append(err, s.close(ctx))
	}
	th := c.RegisterThread()
	if _, err := root.RegisterStack(c, th.Marker()); err != nil {
		return nil, multierr.Append(err, s.close(ctx))
	}
	s.ap = c.NewAllocationPoint()
	log.Info("roots registered", zap.Int("table", cfg.Roots), zap.Uint32("thread", th.ID()))

	if cfg.Background {
		if err := c.Start(ctx); err != nil {
			return nil, multierr.Append(err, s.close(ctx))
		}
	}
	return s, nil
}

// run executes the scenario, calling report periodically, and parks the
// collector before returning.
func (s *scenario) run(ctx context.Context, report func(snapshot)) error {
	if report == nil {
		report = func(snapshot) {}
	}
	mem := s.arena.Memory()
	rng := rand.New(rand.NewSource(s.cfg.Seed))

	for i := 0; i < s.cfg.Initial; i++ {
		v := rng.Int63n(100)
		addr, err := alloc.MakeInteger(s.ap, mem, v)
		if err != nil {
			return err
		}
		if v > s.cfg.RetainAbove {
			s.drawn = append(s.drawn, v)
			if _, err := s.table.Insert(addr); err != nil {
				s.log.Debug("root table full", zap.Int64("value", v), zap.Error(err))
			}
		}
	}
	report(snapshot{phase: phaseInitial, done: s.cfg.Initial, total: s.cfg.Initial, stats: s.c.Stats()})

	step := max(s.cfg.Churn/100, 1)
	for i := 0; i < s.cfg.Churn; i++ {
		if _, err := alloc.MakeInteger(s.ap, mem, int64(i)); err != nil {
			return err
		}
		if (i+1)%step == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			report(snapshot{phase: phaseChurn, done: i + 1, total: s.cfg.Churn, stats: s.c.Stats()})
		}
	}

	s.c.Park()
	report(snapshot{phase: phaseDone, done: s.cfg.Churn, total: s.cfg.Churn, stats: s.c.Stats()})
	return nil
}

// retained returns every table slot rendered as its integer or "empty".
// The collector must be parked.
func (s *scenario) retained() []string {
	mem := s.arena.Memory()
	out := make([]string, 0, s.table.Cap())
	s.table.Each(func(_ int, addr movingheap.Addr) bool {
		if addr.IsNone() {
			out = append(out, "empty")
			return true
		}
		v, err := object.Integer(mem, addr)
		if err != nil {
			out = append(out, "?")
			s.log.Error("retained slot unreadable", zap.Uint32("addr", uint32(addr)), zap.Error(err))
			return true
		}
		out = append(out, fmt.Sprint(v))
		return true
	})
	return out
}

func (s *scenario) drawnLine() string {
	parts := make([]string, len(s.drawn))
	for i, v := range s.drawn {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

func (s *scenario) close(ctx context.Context) error {
	var err error
	if s.ap != nil {
		err = multierr.Append(err, s.ap.Close())
	}
	err = multierr.Append(err, s.c.Close())
	return multierr.Append(err, s.arena.Close(ctx))
}
