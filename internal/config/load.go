package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/XeonPhiNexus/yask/internal/ctxlog"
)

// fileModel mirrors the HCL surface of a tuning file:
//
//	solver {
//	  stencil           = "heat2d"
//	  steps             = 10
//	  rank_domain       = [128, 64]
//	  micro_block_sizes = [32, 32]
//	  fold              = { x = 4, y = 4 }
//	}
type fileModel struct {
	Solver *solverBlock `hcl:"solver,block"`
}

type solverBlock struct {
	Stencil        *string `hcl:"stencil,optional"`
	Steps          *int64  `hcl:"steps,optional"`
	ForceScalar    *bool   `hcl:"force_scalar,optional"`
	ThreadLimit    *int    `hcl:"thread_limit,optional"`
	OuterThreads   *int    `hcl:"outer_threads,optional"`
	CheckStepConds *bool   `hcl:"check_step_conds,optional"`

	RankDomain         []int64 `hcl:"rank_domain,optional"`
	MicroBlockSizes    []int64 `hcl:"micro_block_sizes,optional"`
	NanoBlockSizes     []int64 `hcl:"nano_block_sizes,optional"`
	PicoBlockSizes     []int64 `hcl:"pico_block_sizes,optional"`
	NanoBlockTileSizes []int64 `hcl:"nano_block_tile_sizes,optional"`

	// The fold override is an object with one attribute per domain dim;
	// decoded by hand below because its keys are not known statically.
	Fold hcl.Expression `hcl:"fold,optional"`
}

// Load parses one HCL tuning file into Settings, applying defaults for
// anything unset.
func Load(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading tuning file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}
	return decode(ctx, file.Body)
}

// LoadBytes parses an in-memory HCL document; filename is for diagnostics.
func LoadBytes(ctx context.Context, src []byte, filename string) (*Settings, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}
	return decode(ctx, file.Body)
}

func decode(ctx context.Context, body hcl.Body) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)

	var fm fileModel
	if diags := gohcl.DecodeBody(body, nil, &fm); diags.HasErrors() {
		return nil, fmt.Errorf("decoding solver block: %w", diags)
	}

	s := Default()
	if fm.Solver == nil {
		logger.Debug("No solver block; using defaults.")
		return s, nil
	}

	blk := fm.Solver
	if blk.Stencil != nil {
		s.Stencil = *blk.Stencil
	}
	if blk.Steps != nil {
		s.Steps = *blk.Steps
	}
	if blk.ForceScalar != nil {
		s.ForceScalar = *blk.ForceScalar
	}
	if blk.ThreadLimit != nil {
		s.ThreadLimit = *blk.ThreadLimit
	}
	if blk.OuterThreads != nil {
		s.OuterThreads = *blk.OuterThreads
	}
	if blk.CheckStepConds != nil {
		s.CheckStepConds = *blk.CheckStepConds
	}
	s.RankDomain = blk.RankDomain
	s.MicroBlockSizes = blk.MicroBlockSizes
	s.NanoBlockSizes = blk.NanoBlockSizes
	s.PicoBlockSizes = blk.PicoBlockSizes
	s.NanoBlockTileSizes = blk.NanoBlockTileSizes

	fold, err := decodeFold(blk.Fold)
	if err != nil {
		return nil, err
	}
	s.FoldOverride = fold

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	logger.Debug("Tuning settings loaded.", "stencil", s.Stencil, "steps", s.Steps)
	return s, nil
}

// decodeFold evaluates the fold attribute into per-dim lengths. The
// expression must be an object of numbers keyed by dim name.
func decodeFold(expr hcl.Expression) (map[string]int64, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating fold: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("fold must be an object of per-dim lengths, got %s", val.Type().FriendlyName())
	}

	fold := make(map[string]int64)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		var name string
		if err := gocty.FromCtyValue(k, &name); err != nil {
			return nil, fmt.Errorf("fold key: %w", err)
		}
		if v.Type() != cty.Number {
			return nil, fmt.Errorf("fold length for dim %q must be a number", name)
		}
		var n int64
		if err := gocty.FromCtyValue(v, &n); err != nil {
			return nil, fmt.Errorf("fold length for dim %q: %w", name, err)
		}
		fold[name] = n
	}
	if len(fold) == 0 {
		return nil, nil
	}
	return fold, nil
}
