package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/XeonPhiNexus/yask/internal/bbox"
	"github.com/XeonPhiNexus/yask/internal/config"
	"github.com/XeonPhiNexus/yask/internal/ctxlog"
	"github.com/XeonPhiNexus/yask/internal/dag"
	"github.com/XeonPhiNexus/yask/internal/dims"
	"github.com/XeonPhiNexus/yask/internal/indices"
	"github.com/XeonPhiNexus/yask/internal/vars"
	"github.com/XeonPhiNexus/yask/internal/workerpool"
)

// Solution is what a compiled stencil provides to the engine: its
// dimension metadata and a builder that populates a context with vars,
// bundles, and stages.
type Solution interface {
	Name() string

	// NewDims builds the solution's dimension metadata, honoring any
	// per-dim fold overrides the solution supports.
	NewDims(foldOverride map[string]int64) (*dims.Dims, error)

	// DefaultDomain returns the rank-domain sizes used when the tuning
	// file gives none.
	DefaultDomain() []int64

	// Build creates the solution's vars, bundles, and stages on the
	// context.
	Build(c *Context) error
}

// Context owns everything needed to run one solution: dims, settings,
// variable storage, bundles, stages, and the worker pool. It is built once
// and destroyed with Close.
type Context struct {
	log  *slog.Logger
	dims *dims.Dims
	opts *config.Settings
	core *CoreData

	rankOfs indices.Indices
	rankBB  bbox.BoundingBox
	extBB   bbox.BoundingBox

	bundles []*Bundle
	stages  []*Stage

	pool *workerpool.Pool

	// CheckStepConds enables per-step stage conditions.
	CheckStepConds bool

	// Resolved stencil-dim sizes (slot 0 is the step dim).
	microSizes    indices.Indices
	nanoSizes     indices.Indices
	picoSizes     indices.Indices
	nanoTileSizes indices.Indices
	threadLimit   int
}

// NewContext builds a context for one solution under the given settings.
func NewContext(ctx context.Context, sol Solution, opts *config.Settings) (*Context, error) {
	logger := ctxlog.FromContext(ctx)

	d, err := sol.NewDims(opts.FoldOverride)
	if err != nil {
		return nil, fmt.Errorf("building dims for %q: %w", sol.Name(), err)
	}
	nddims := d.NumDomainDims()

	domain := opts.RankDomain
	if len(domain) == 0 {
		domain = sol.DefaultDomain()
	}
	if len(domain) != nddims {
		return nil, fmt.Errorf("rank domain has %d sizes for %d domain dims", len(domain), nddims)
	}

	outer := opts.OuterThreads
	if outer <= 0 {
		outer = runtime.GOMAXPROCS(0)
	}
	thrLimit := opts.ThreadLimit
	if thrLimit <= 0 {
		thrLimit = outer
	}

	rankOfs := indices.New(nddims)
	rankEnd := indices.New(nddims)
	copy(rankEnd, domain)

	c := &Context{
		log:            logger,
		dims:           d,
		opts:           opts,
		core:           NewCoreData(d, rankOfs, outer),
		rankOfs:        rankOfs,
		rankBB:         bbox.NewFromRange(rankOfs, rankEnd),
		CheckStepConds: opts.CheckStepConds,
		threadLimit:    thrLimit,
	}

	domIdx := indices.Indices(domain)
	c.microSizes = c.stencilSizes(opts.MicroBlockSizes, domIdx)
	c.nanoSizes = c.stencilSizes(opts.NanoBlockSizes, c.microSizes[1:])
	c.picoSizes = c.stencilSizes(opts.PicoBlockSizes, c.nanoSizes[1:])
	c.nanoTileSizes = c.stencilSizes(opts.NanoBlockTileSizes, c.nanoSizes[1:])

	if err := sol.Build(c); err != nil {
		return nil, fmt.Errorf("building solution %q: %w", sol.Name(), err)
	}
	if err := c.validateDeps(); err != nil {
		return nil, fmt.Errorf("solution %q: %w", sol.Name(), err)
	}

	c.findExtBB()
	for _, b := range c.bundles {
		b.FindWriteHalos()
		b.FindBoundingBoxes()
	}
	for _, st := range c.stages {
		st.findStageBB()
		st.InitWorkStats()
	}

	c.pool = workerpool.New(outer)
	logger.Debug("Context built.",
		"solution", sol.Name(), "domain", domIdx.String(),
		"bundles", len(c.bundles), "stages", len(c.stages),
		"outerThreads", outer)
	return c, nil
}

// stencilSizes turns a domain-dim size list into stencil-dim Indices with
// a unit step slot, substituting def for missing or zero entries.
func (c *Context) stencilSizes(sizes []int64, def indices.Indices) indices.Indices {
	out := indices.New(c.dims.NumStencilDims())
	out[0] = 1
	for j := 0; j < c.dims.NumDomainDims(); j++ {
		v := int64(0)
		if j < len(sizes) {
			v = sizes[j]
		}
		if v <= 0 {
			v = def[j]
		}
		out[j+1] = v
	}
	return out
}

// validateDeps checks that the bundle dependency relation, including the
// scratch-child-before-parent edges, forms a DAG.
func (c *Context) validateDeps() error {
	g := dag.New()
	for _, b := range c.bundles {
		g.AddNode(b.Name())
	}
	for _, b := range c.bundles {
		for dep := range b.dependsOn {
			if err := g.AddEdge(dep.Name(), b.Name()); err != nil {
				return err
			}
		}
		for _, child := range b.scratchChildren {
			if err := g.AddEdge(child.Name(), b.Name()); err != nil {
				return err
			}
		}
	}
	return g.DetectCycles()
}

// findExtBB grows the rank BB by the widest var halos on each side.
func (c *Context) findExtBB() {
	ext := c.rankBB.Clone()
	for _, name := range c.core.VarNames() {
		v := c.core.Var(name)
		lh, rh := v.LeftHalo(), v.RightHalo()
		for j := range ext.Begin {
			if b := c.rankBB.Begin[j] - lh[j]; b < ext.Begin[j] {
				ext.Begin[j] = b
			}
			if e := c.rankBB.End[j] + rh[j]; e > ext.End[j] {
				ext.End[j] = e
			}
		}
	}
	ext.Update()
	c.extBB = ext
}

// Core returns the kernel-facing data handle.
func (c *Context) Core() *CoreData { return c.core }

// MicroBlockSizes returns the resolved per-domain-dim micro-block sizes;
// solutions size sliding scratch windows from these.
func (c *Context) MicroBlockSizes() indices.Indices {
	return c.microSizes[1:].Clone()
}

// Dims returns the solution's dimension metadata.
func (c *Context) Dims() *dims.Dims { return c.dims }

// Options returns the tuning settings the context was built with.
func (c *Context) Options() *config.Settings { return c.opts }

// RankBB returns the rank's domain box in global coords.
func (c *Context) RankBB() *bbox.BoundingBox { return &c.rankBB }

// ExtBB returns the rank's domain extended by the widest halos.
func (c *Context) ExtBB() *bbox.BoundingBox { return &c.extBB }

// RankOfs returns the rank's global domain offsets.
func (c *Context) RankOfs() indices.Indices { return c.rankOfs }

// Stages returns the stages in evaluation order.
func (c *Context) Stages() []*Stage { return c.stages }

// Bundles returns every bundle, scratch included.
func (c *Context) Bundles() []*Bundle { return c.bundles }

// NewBundle wraps a generated kernel in a bundle and registers it.
func (c *Context) NewBundle(kern BundleKernel) *Bundle {
	b := newBundle(c, kern)
	c.bundles = append(c.bundles, b)
	return b
}

// AddStage creates a stage over the given bundles. All non-scratch members
// must share one step condition, and the listed order must respect the
// dependency edges; violations are configuration errors.
func (c *Context) AddStage(name string, bundles ...*Bundle) (*Stage, error) {
	var stepCond string
	var stepCondSet bool
	for _, b := range bundles {
		if b.IsScratch() {
			continue
		}
		desc := ""
		if b.kern.IsStepCondExpr() {
			desc = b.kern.StepCondDescription()
		}
		if !stepCondSet {
			stepCond, stepCondSet = desc, true
		} else if desc != stepCond {
			return nil, fmt.Errorf("stage %q: bundle %q step condition %q differs from %q",
				name, b.Name(), desc, stepCond)
		}
	}

	for i, b := range bundles {
		for _, later := range bundles[i+1:] {
			if b.DependsOn(later) {
				return nil, fmt.Errorf("stage %q: bundle %q listed before its dependency %q",
					name, b.Name(), later.Name())
			}
		}
	}

	st := newStage(c, name, bundles)
	c.stages = append(c.stages, st)
	return st, nil
}

// Run evaluates every stage for the given number of steps starting at
// step 0. Stages are barrier-delimited: one finishes before the next
// starts.
func (c *Context) Run(ctx context.Context, steps int64) error {
	for step := int64(0); step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.RunStep(step); err != nil {
			return err
		}
	}
	return nil
}

// RunStep evaluates every stage whose step condition admits the given
// step.
func (c *Context) RunStep(step int64) error {
	for _, st := range c.stages {
		if !st.IsInValidStep(step) {
			c.log.Debug("Stage skipped by step condition.", "stage", st.Name(), "step", step)
			continue
		}
		st.Timer.Start()
		for _, b := range st.Bundles() {
			if b.IsScratch() {
				continue // evaluated as scratch children
			}
			c.calcBundle(b, step)
			b.UpdateVarInfo(vars.ViewHost, step, true, false, true)
		}
		st.Timer.Stop()
		st.AddSteps(1)
	}
	return nil
}

// calcBundle tiles the bundle's valid boxes into micro-blocks and fans
// them out over the outer workers. Tiles are disjoint, so worker writes
// never overlap.
func (c *Context) calcBundle(b *Bundle, step int64) {
	nsdims := c.dims.NumStencilDims()
	for bi := range b.bbList {
		bb := &b.bbList[bi]
		if bb.IsEmpty() {
			continue
		}

		scan := indices.NewScan(nsdims)
		scan.Begin[0], scan.End[0] = step, step+1
		scan.Stride[0] = 1
		scan.Align[0] = 1
		for j := 0; j < c.dims.NumDomainDims(); j++ {
			scan.Begin[j+1] = bb.Begin[j]
			scan.End[j+1] = bb.End[j]
			scan.Stride[j+1] = c.microSizes[j+1]
			scan.Align[j+1] = c.dims.FoldPts[j]
		}
		scan.Start = scan.Begin.Clone()
		scan.Stop = scan.End.Clone()

		var tiles []indices.ScanIndices
		scan.VisitTiles(func(tile indices.ScanIndices) bool {
			tiles = append(tiles, tile)
			return true
		})

		c.pool.ParallelForAtomic(len(tiles), func(worker, i int) {
			b.CalcMicroBlock(worker, tiles[i])
		})
	}
}

// Close releases the worker pool. The context must not be used after.
func (c *Context) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
