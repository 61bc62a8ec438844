package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/movingheap/arena"
	"github.com/wippyai/movingheap/collector"
	"github.com/wippyai/movingheap/format"
)

func main() {
	var (
		configFile  = flag.String("config", "", "YAML configuration file")
		arenaSize   = flag.String("arena-size", "", "Arena size (e.g. 32MB)")
		segmentSize = flag.String("segment-size", "", "Collector segment size (e.g. 64KB)")
		roots       = flag.Int("roots", 0, "Root table capacity")
		seed        = flag.Int64("seed", 0, "Random seed")
		initial     = flag.Int("initial", 0, "Random integers allocated before churn")
		churn       = flag.Int("churn", 0, "Garbage integers allocated after the initial phase")
		background  = flag.Bool("background", false, "Collect in the background on allocation pressure")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *configFile != "" {
		if err := loadConfig(*configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	var errs error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "arena-size":
			errs = multierr.Append(errs, setSize(&cfg.ArenaSize, f.Name, *arenaSize))
		case "segment-size":
			errs = multierr.Append(errs, setSize32(&cfg.SegmentSize, f.Name, *segmentSize))
		case "roots":
			cfg.Roots = *roots
		case "seed":
			cfg.Seed = *seed
		case "initial":
			cfg.Initial = *initial
		case "churn":
			cfg.Churn = *churn
		case "background":
			cfg.Background = *background
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	errs = multierr.Append(errs, cfg.validate())
	if errs != nil {
		for _, err := range multierr.Errors(errs) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(2)
	}

	if *interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, running without TUI")
		*interactive = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	if *interactive {
		err = runInteractive(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string, quiet bool) (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.Encoding = "console"
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func installLogger(log *zap.Logger) {
	arena.SetLogger(log.Named("arena"))
	format.SetLogger(log.Named("format"))
	collector.SetLogger(log.Named("collector"))
}

func run(ctx context.Context, cfg demoConfig) error {
	log, err := newLogger(cfg.LogLevel, false)
	if err != nil {
		return err
	}
	defer log.Sync()
	installLogger(log)

	s, err := newScenario(ctx, cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("Arena: %s, segments of %s\n", formatSize(cfg.ArenaSize), formatSize(uint64(s.c.SegmentSize())))

	runErr := s.run(ctx, func(p snapshot) {
		if p.phase == phaseInitial {
			fmt.Println(s.drawnLine())
		}
	})
	if runErr == nil {
		fmt.Println(strings.Join(s.retained(), " "))
		st := s.c.Stats()
		fmt.Printf("Collections: %d, copied %s, freed %d segments, commit races %d\n",
			st.Collections, formatSize(st.BytesCopied), st.SegmentsFreed, st.CommitRaces)
	}
	return multierr.Append(runErr, s.close(ctx))
}
