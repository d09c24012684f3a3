package heat2d

import (
	"github.com/XeonPhiNexus/yask/internal/dims"
	"github.com/XeonPhiNexus/yask/internal/engine"
	"github.com/XeonPhiNexus/yask/internal/indices"
	"github.com/XeonPhiNexus/yask/internal/vars"
)

// FluxSolution is the flux-form variant: a scratch bundle stages the
// forward differences fx and fy, then the parent bundle applies their
// divergence. Mathematically equal to the direct form; results agree up
// to floating-point rounding.
type FluxSolution struct{}

// NewFlux returns the flux-form solution.
func NewFlux() engine.Solution { return &FluxSolution{} }

// Name implements engine.Solution.
func (s *FluxSolution) Name() string { return "heat2d_flux" }

// NewDims implements engine.Solution.
func (s *FluxSolution) NewDims(foldOverride map[string]int64) (*dims.Dims, error) {
	return newDims(foldOverride)
}

// DefaultDomain implements engine.Solution.
func (s *FluxSolution) DefaultDomain() []int64 { return []int64{128, 64} }

// Build implements engine.Solution.
func (s *FluxSolution) Build(c *engine.Context) error {
	u, err := newU(c)
	if err != nil {
		return err
	}

	// Per-thread scratch vars sized to one micro-block plus the widest
	// consumer reach: the parent reads fx at x-1 and fy at y-1.
	if err := newScratch(c, "fx", indices.Of(1, 0)); err != nil {
		return err
	}
	if err := newScratch(c, "fy", indices.Of(0, 1)); err != nil {
		return err
	}

	scr := c.NewBundle(&fluxKernel{})
	scr.AddOutputScratch("fx")
	scr.AddOutputScratch("fy")
	scr.AddInputVar(u)

	b := c.NewBundle(&divKernel{})
	b.AddOutputVar(u)
	b.AddInputVar(u)
	b.AddInputScratch("fx")
	b.AddInputScratch("fy")
	b.AddScratchChild(scr)

	_, err = c.AddStage("heat_flux", scr, b)
	return err
}

func newScratch(c *engine.Context, name string, leftHalo indices.Indices) error {
	perThread := make([]*vars.Var, c.Core().OuterThreads())
	zero := indices.New(c.Dims().NumDomainDims())
	// One extra fold per dim: the sliding window's origin rounds down to
	// the fold, so a micro-block at an odd offset needs the slack.
	sizes := c.MicroBlockSizes().AddElem(c.Dims().FoldPts)
	for i := range perThread {
		sv, err := vars.New(name, c.Dims(), false, 1,
			zero, sizes, leftHalo, zero)
		if err != nil {
			return err
		}
		perThread[i] = sv
	}
	c.Core().AddScratchVar(name, perThread)
	return nil
}

// fluxKernel is the generated scratch code: fx = u(x+1) - u(x),
// fy = u(y+1) - u(y).
type fluxKernel struct{}

func (k *fluxKernel) Name() string             { return "heat2d_flux_scr" }
func (k *fluxKernel) ScalarFpOps() int         { return 2 }
func (k *fluxKernel) ScalarPointsRead() int    { return 3 }
func (k *fluxKernel) ScalarPointsWritten() int { return 2 }
func (k *fluxKernel) IsScratch() bool          { return true }

func (k *fluxKernel) IsInValidDomain(core *engine.CoreData, pt indices.Indices) bool { return true }
func (k *fluxKernel) IsSubDomainExpr() bool                                          { return false }
func (k *fluxKernel) DomainDescription() string                                      { return "all points" }

func (k *fluxKernel) IsInValidStep(core *engine.CoreData, step int64) bool { return true }
func (k *fluxKernel) IsStepCondExpr() bool                                 { return false }
func (k *fluxKernel) StepCondDescription() string                          { return "" }

func (k *fluxKernel) OutputStepIndex(in int64) (int64, bool) { return in, false }

func fluxValues(u *vars.Var, t, x, y int64) (float64, float64) {
	c := u.ReadElem(t, indices.Of(x, y))
	fx := u.ReadElem(t, indices.Of(x+1, y)) - c
	fy := u.ReadElem(t, indices.Of(x, y+1)) - c
	return fx, fy
}

func (k *fluxKernel) CalcScalar(core *engine.CoreData, thr int, pt indices.Indices) {
	u := core.Var("u")
	fxv := core.ScratchVar("fx", thr)
	fyv := core.ScratchVar("fy", thr)
	t := pt[0]
	x := pt[1] - core.RankOfs[0]
	y := pt[2] - core.RankOfs[1]
	fx, fy := fluxValues(u, t, x, y)
	fxv.WriteElem(0, indices.Of(x, y), fx)
	fyv.WriteElem(0, indices.Of(x, y), fy)
}

func (k *fluxKernel) CalcVectors(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices, mask indices.BitMask) {
	u := core.Var("u")
	fxv := core.ScratchVar("fx", outThr)
	fyv := core.ScratchVar("fy", outThr)
	fyVals := make([]float64, core.Dims.FoldNumLanes())

	calcVecRange(core, norm, mask, func(t int64, vec indices.Indices, vals []float64) {
		fxv.WriteVecNormMasked(0, vec, vals, mask)
		fyv.WriteVecNormMasked(0, vec, fyVals, mask)
	}, func(t, x, y int64) float64 {
		fx, fy := fluxValues(u, t, x, y)
		fyVals[laneOf(core.Dims, x, y)] = fy
		return fx
	})
}

func (k *fluxKernel) CalcClusters(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices) {
	k.CalcVectors(core, outThr, inThr, thrLimit, norm, indices.AllLanes(core.Dims.FoldNumLanes()))
}

// laneOf maps a rank-relative element to its lane within the fold.
func laneOf(d *dims.Dims, x, y int64) int {
	return d.LaneIndex(indices.Of(indices.ModFlr(x, d.FoldPts[0]), indices.ModFlr(y, d.FoldPts[1])))
}

// divKernel is the generated parent code: u(t+1) = u(t) + alpha * div(f).
type divKernel struct{}

func (k *divKernel) Name() string             { return "heat2d_flux" }
func (k *divKernel) ScalarFpOps() int         { return 6 }
func (k *divKernel) ScalarPointsRead() int    { return 5 }
func (k *divKernel) ScalarPointsWritten() int { return 1 }
func (k *divKernel) IsScratch() bool          { return false }

func (k *divKernel) IsInValidDomain(core *engine.CoreData, pt indices.Indices) bool { return true }
func (k *divKernel) IsSubDomainExpr() bool                                          { return false }
func (k *divKernel) DomainDescription() string                                      { return "all points" }

func (k *divKernel) IsInValidStep(core *engine.CoreData, step int64) bool { return true }
func (k *divKernel) IsStepCondExpr() bool                                 { return false }
func (k *divKernel) StepCondDescription() string                          { return "" }

func (k *divKernel) OutputStepIndex(in int64) (int64, bool) { return in + 1, true }

func divValue(u, fxv, fyv *vars.Var, t, x, y int64) float64 {
	div := fxv.ReadElem(0, indices.Of(x, y)) - fxv.ReadElem(0, indices.Of(x-1, y)) +
		fyv.ReadElem(0, indices.Of(x, y)) - fyv.ReadElem(0, indices.Of(x, y-1))
	return u.ReadElem(t, indices.Of(x, y)) + Alpha*div
}

func (k *divKernel) CalcScalar(core *engine.CoreData, thr int, pt indices.Indices) {
	u := core.Var("u")
	fxv := core.ScratchVar("fx", thr)
	fyv := core.ScratchVar("fy", thr)
	t := pt[0]
	x := pt[1] - core.RankOfs[0]
	y := pt[2] - core.RankOfs[1]
	u.WriteElem(t+1, indices.Of(x, y), divValue(u, fxv, fyv, t, x, y))
}

func (k *divKernel) CalcVectors(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices, mask indices.BitMask) {
	u := core.Var("u")
	fxv := core.ScratchVar("fx", outThr)
	fyv := core.ScratchVar("fy", outThr)
	calcVecRange(core, norm, mask, func(t int64, vec indices.Indices, vals []float64) {
		u.WriteVecNormMasked(t+1, vec, vals, mask)
	}, func(t, x, y int64) float64 {
		return divValue(u, fxv, fyv, t, x, y)
	})
}

func (k *divKernel) CalcClusters(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices) {
	u := core.Var("u")
	fxv := core.ScratchVar("fx", outThr)
	fyv := core.ScratchVar("fy", outThr)
	calcVecRange(core, norm, indices.AllLanes(core.Dims.FoldNumLanes()),
		func(t int64, vec indices.Indices, vals []float64) {
			u.WriteVecNorm(t+1, vec, vals)
		}, func(t, x, y int64) float64 {
			return divValue(u, fxv, fyv, t, x, y)
		})
}
