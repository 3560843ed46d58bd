// Package core provides the cycle-accurate CPU core model.
// It owns every piece of simulator state and wraps the pipeline behind a
// high-level interface.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/pipesim/emu"
	"github.com/sarchlab/pipesim/loader"
	"github.com/sarchlab/pipesim/timing/cache"
	"github.com/sarchlab/pipesim/timing/config"
	"github.com/sarchlab/pipesim/timing/memory"
	"github.com/sarchlab/pipesim/timing/memsys"
	"github.com/sarchlab/pipesim/timing/pipeline"
)

// ErrCycleLimit is returned by Run when the cycle limit is reached before
// the pipeline halts.
var ErrCycleLimit = errors.New("cycle limit reached")

// Stats holds performance statistics for the core.
type Stats struct {
	pipeline.Statistics

	// Memory holds the memory system counters.
	Memory memsys.Statistics
}

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithLogger sets the logger passed down to the pipeline.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithMaxCycles bounds Run. A value of 0 means no limit.
func WithMaxCycles(n uint64) Option {
	return func(c *Core) {
		c.maxCycles = n
	}
}

// Core represents a cycle-accurate CPU core model.
type Core struct {
	config *config.Config
	logger logrus.FieldLogger

	regFile  *emu.RegFile
	store    *memory.Store
	cache    *cache.Cache
	memSys   *memsys.System
	pipeline *pipeline.Pipeline

	program   []uint32
	maxCycles uint64
}

// NewCore builds a core from cfg.
func NewCore(cfg *config.Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Core{config: cfg.Clone()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}

	c.regFile = &emu.RegFile{}
	c.store = memory.NewStore(memory.Config{
		Words:     cfg.MemoryWords,
		LineWords: cfg.WordsPerLine,
		Latency:   cfg.MemoryLatency,
	})
	c.cache = cache.New(cache.Config{
		LineWords: cfg.WordsPerLine,
		LineCount: cfg.CacheLines,
	})
	c.memSys = memsys.New(memsys.Config{CacheHitLatency: cfg.CacheHitLatency}, c.cache, c.store)
	c.pipeline = pipeline.NewPipeline(c.regFile, c.memSys, pipeline.WithLogger(c.logger))

	return c, nil
}

// Config returns a copy of the configuration.
func (c *Core) Config() *config.Config {
	return c.config.Clone()
}

// RegFile returns the register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// MemorySystem returns the memory system.
func (c *Core) MemorySystem() *memsys.System {
	return c.memSys
}

// Pipeline returns the pipeline.
func (c *Core) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Program returns the loaded program words.
func (c *Core) Program() []uint32 {
	return c.program
}

// LoadProgram resets the core and places words at address 0.
func (c *Core) LoadProgram(words []uint32) error {
	prog := &loader.Program{Words: words}
	if err := prog.Validate(c.config.MaxProgramSize); err != nil {
		return err
	}

	c.program = append([]uint32(nil), words...)
	return c.Reset()
}

// Reset clears registers, memory, cache, statistics and the pipeline, then
// reloads the current program.
func (c *Core) Reset() error {
	c.regFile.Reset()
	c.memSys.Reset()
	c.pipeline.Reset()

	for i, w := range c.program {
		if err := c.store.Poke(uint32(i), w); err != nil {
			return fmt.Errorf("loading word %d: %w", i, err)
		}
	}
	c.pipeline.SetProgramLength(uint32(len(c.program)))

	return nil
}

// Step executes one cycle. It does nothing once the core has halted.
func (c *Core) Step() {
	c.pipeline.Tick()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.pipeline.RunCycles(cycles)
}

// Run executes the core until it halts, ctx is done, or the cycle limit is
// hit. With a non-zero clock one cycle is executed per clock period.
func (c *Core) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if period := c.period(); period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for !c.pipeline.Halted() {
		if c.maxCycles > 0 && c.pipeline.Stats().Cycles >= c.maxCycles {
			return fmt.Errorf("%w: %d", ErrCycleLimit, c.maxCycles)
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		c.pipeline.Tick()
	}

	return c.pipeline.Err()
}

func (c *Core) period() time.Duration {
	freq := c.config.Clock()
	if freq <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(freq))
}

// Halted returns true if the core has halted.
func (c *Core) Halted() bool {
	return c.pipeline.Halted()
}

// Err returns the fault that halted the core, or nil.
func (c *Core) Err() error {
	return c.pipeline.Err()
}

// PC returns the address of the next fetch.
func (c *Core) PC() uint32 {
	return c.pipeline.PC()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return Stats{
		Statistics: c.pipeline.Stats(),
		Memory:     c.memSys.Stats(),
	}
}
