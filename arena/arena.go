package arena

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/movingheap/errors"
)

// DefaultSize is the arena size used when Config.Size is zero.
const DefaultSize = 32 << 20

const exportName = "heap"

// Config holds configuration for arena creation
type Config struct {
	// Size is the arena size in bytes, rounded up to whole pages.
	// 0 means DefaultSize. At most MaxPages*PageSize.
	Size uint64

	// Name is the module name the memory is instantiated under.
	// Empty means "heap".
	Name string
}

// Arena owns a fixed-size linear memory backed by a wazero runtime.
type Arena struct {
	runtime wazero.Runtime
	memory  *Memory
	pages   uint32
	closed  bool
}

// New creates an arena of cfg.Size bytes.
func New(ctx context.Context, cfg Config) (*Arena, error) {
	size := cfg.Size
	if size == 0 {
		size = DefaultSize
	}
	pages := (size + PageSize - 1) / PageSize
	if pages > MaxPages {
		return nil, errors.InvalidInput(errors.PhaseArena,
			fmt.Sprintf("arena size %d exceeds %d pages", size, MaxPages))
	}
	name := cfg.Name
	if name == "" {
		name = exportName
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(uint32(pages))
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, buildMemoryModule(exportName, uint32(pages)))
	if err != nil {
		return nil, multierr.Append(
			errors.Wrap(errors.PhaseArena, errors.KindInvalidInput, err, "compile memory module"),
			rt.Close(ctx))
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, multierr.Append(
			errors.Wrap(errors.PhaseArena, errors.KindInvalidInput, err, "instantiate memory module"),
			rt.Close(ctx))
	}

	mem := mod.ExportedMemory(exportName)
	if mem == nil {
		return nil, multierr.Append(
			errors.NotFound(errors.PhaseArena, "exported memory", exportName),
			rt.Close(ctx))
	}

	Logger().Debug("arena created",
		zap.String("name", name),
		zap.Uint64("pages", pages),
		zap.Uint32("bytes", mem.Size()))

	return &Arena{
		runtime: rt,
		memory:  &Memory{mem: mem},
		pages:   uint32(pages),
	}, nil
}

// Memory returns the arena's memory view.
func (a *Arena) Memory() *Memory {
	return a.memory
}

// Size returns the arena size in bytes.
func (a *Arena) Size() uint32 {
	return a.memory.Size()
}

// Pages returns the arena size in pages.
func (a *Arena) Pages() uint32 {
	return a.pages
}

// Close releases the runtime and the memory. Offsets handed out by the arena
// must not be used afterwards.
func (a *Arena) Close(ctx context.Context) error {
	if a.closed {
		return nil
	}
	a.closed = true
	Logger().Debug("arena closed", zap.Uint32("pages", a.pages))
	return a.runtime.Close(ctx)
}
