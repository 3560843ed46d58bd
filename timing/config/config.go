// Package config holds the simulator configuration: memory and cache geometry,
// access latencies and program limits.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Default values.
const (
	DefaultWordsPerLine    = 16
	DefaultCacheLines      = 16
	DefaultMemoryWords     = 32768
	DefaultMemoryLatency   = 4
	DefaultCacheHitLatency = 1
	DefaultMaxProgramSize  = 8192
)

// RegisterCount is the number of general purpose registers.
const RegisterCount = 32

// Config holds the simulator parameters.
type Config struct {
	// WordsPerLine is the cache line size in words.
	WordsPerLine int `json:"words_per_line"`

	// CacheLines is the number of lines in the direct-mapped cache.
	CacheLines int `json:"cache_lines"`

	// MemoryWords is the main memory capacity in words.
	MemoryWords int `json:"memory_words"`

	// MemoryLatency is the number of cycles a main memory access takes.
	MemoryLatency uint64 `json:"memory_latency"`

	// CacheHitLatency is the number of cycles a cache hit takes.
	CacheHitLatency uint64 `json:"cache_hit_latency"`

	// MaxProgramSize is the largest program, in words, that can be loaded.
	MaxProgramSize int `json:"max_program_size"`

	// ClockHz paces free-running execution. Zero runs as fast as possible.
	ClockHz float64 `json:"clock_hz"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WordsPerLine:    DefaultWordsPerLine,
		CacheLines:      DefaultCacheLines,
		MemoryWords:     DefaultMemoryWords,
		MemoryLatency:   DefaultMemoryLatency,
		CacheHitLatency: DefaultCacheHitLatency,
		MaxProgramSize:  DefaultMaxProgramSize,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the geometry is consistent.
func (c *Config) Validate() error {
	if c.WordsPerLine <= 0 {
		return fmt.Errorf("%w: words_per_line must be > 0", ErrInvalidConfig)
	}
	if c.CacheLines <= 0 {
		return fmt.Errorf("%w: cache_lines must be > 0", ErrInvalidConfig)
	}
	if c.MemoryWords <= 0 {
		return fmt.Errorf("%w: memory_words must be > 0", ErrInvalidConfig)
	}
	if c.MemoryWords%c.WordsPerLine != 0 {
		return fmt.Errorf("%w: memory_words must be a multiple of words_per_line", ErrInvalidConfig)
	}
	if c.MaxProgramSize <= 0 || c.MaxProgramSize > c.MemoryWords {
		return fmt.Errorf("%w: max_program_size must be in (0, memory_words]", ErrInvalidConfig)
	}
	if c.ClockHz < 0 {
		return fmt.Errorf("%w: clock_hz must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Clock returns the pacing frequency. Zero means unpaced.
func (c *Config) Clock() sim.Freq {
	return sim.Freq(c.ClockHz) * sim.Hz
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
