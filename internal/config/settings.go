package config

import (
	"fmt"
)

// Settings is the format-agnostic tuning model consumed by the engine.
// Per-dim size lists are in domain-dim order; a zero entry means "use the
// engine default for that level".
type Settings struct {
	Stencil string
	Steps   int64

	// ForceScalar routes every nano-block through the pure scalar
	// reference path. Slow; for validation runs.
	ForceScalar bool

	// ThreadLimit caps the inner threads a generated kernel may use.
	// Zero means no cap beyond the pool size.
	ThreadLimit int

	// OuterThreads sizes the outer worker pool and the per-thread scratch
	// slices. Zero selects GOMAXPROCS.
	OuterThreads int

	// CheckStepConds enables per-step evaluation of stage step
	// conditions.
	CheckStepConds bool

	RankDomain         []int64
	MicroBlockSizes    []int64
	NanoBlockSizes     []int64
	PicoBlockSizes     []int64
	NanoBlockTileSizes []int64

	// FoldOverride remaps the vector-fold length of named domain dims for
	// solutions that allow it.
	FoldOverride map[string]int64
}

// Default returns the settings used when no file or block is given.
func Default() *Settings {
	return &Settings{
		Stencil:        "heat2d",
		Steps:          10,
		CheckStepConds: true,
	}
}

// Validate rejects settings no engine run could honor.
func (s *Settings) Validate() error {
	if s.Stencil == "" {
		return fmt.Errorf("no stencil selected")
	}
	if s.Steps < 1 {
		return fmt.Errorf("steps must be >= 1, got %d", s.Steps)
	}
	if s.ThreadLimit < 0 {
		return fmt.Errorf("thread_limit must be >= 0, got %d", s.ThreadLimit)
	}
	if s.OuterThreads < 0 {
		return fmt.Errorf("outer_threads must be >= 0, got %d", s.OuterThreads)
	}
	for _, v := range s.RankDomain {
		if v < 1 {
			return fmt.Errorf("rank_domain sizes must be >= 1, got %d", v)
		}
	}
	for name, sizes := range map[string][]int64{
		"micro_block_sizes":     s.MicroBlockSizes,
		"nano_block_sizes":      s.NanoBlockSizes,
		"pico_block_sizes":      s.PicoBlockSizes,
		"nano_block_tile_sizes": s.NanoBlockTileSizes,
	} {
		for _, v := range sizes {
			if v < 0 {
				return fmt.Errorf("%s entries must be >= 0, got %d", name, v)
			}
		}
	}
	for dim, f := range s.FoldOverride {
		if f < 1 {
			return fmt.Errorf("fold override for dim %q must be >= 1, got %d", dim, f)
		}
	}
	return nil
}
