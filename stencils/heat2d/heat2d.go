// Package heat2d carries the generated code for a 2-D heat-diffusion
// stencil: u(t+1) = u(t) + alpha * laplacian(u(t)) on a 4x4 vector fold
// with 2x1 vector clusters. Two solutions are provided: the direct form
// and a flux form that stages per-dim differences in scratch vars.
package heat2d

import (
	"fmt"

	"github.com/XeonPhiNexus/yask/internal/dims"
	"github.com/XeonPhiNexus/yask/internal/engine"
	"github.com/XeonPhiNexus/yask/internal/indices"
	"github.com/XeonPhiNexus/yask/internal/vars"
)

// Alpha is the diffusion coefficient baked into the generated code.
const Alpha = 0.1

// Solution is the direct-form heat2d solution.
type Solution struct{}

// New returns the direct-form solution.
func New() engine.Solution { return &Solution{} }

// Name implements engine.Solution.
func (s *Solution) Name() string { return "heat2d" }

// NewDims builds the compiled dimension metadata, honoring per-dim fold
// overrides.
func (s *Solution) NewDims(foldOverride map[string]int64) (*dims.Dims, error) {
	return newDims(foldOverride)
}

func newDims(foldOverride map[string]int64) (*dims.Dims, error) {
	fold := indices.Of(4, 4)
	for name, n := range foldOverride {
		switch name {
		case "x":
			fold[0] = n
		case "y":
			fold[1] = n
		default:
			return nil, fmt.Errorf("heat2d has no dim %q", name)
		}
	}
	return dims.New("t", []string{"x", "y"}, fold, indices.Of(2, 1), true)
}

// DefaultDomain implements engine.Solution.
func (s *Solution) DefaultDomain() []int64 { return []int64{128, 64} }

// Build implements engine.Solution.
func (s *Solution) Build(c *engine.Context) error {
	u, err := newU(c)
	if err != nil {
		return err
	}

	b := c.NewBundle(&kernel{})
	b.AddOutputVar(u)
	b.AddInputVar(u)

	_, err = c.AddStage("heat", b)
	return err
}

// newU allocates the state var: one step pair over the rank domain with a
// one-element halo on every side.
func newU(c *engine.Context) (*vars.Var, error) {
	one := indices.NewConst(c.Dims().NumDomainDims(), 1)
	u, err := vars.New("u", c.Dims(), true, 2,
		c.RankBB().Begin.SubElem(c.RankOfs()),
		c.RankBB().End.SubElem(c.RankOfs()),
		one, one)
	if err != nil {
		return nil, err
	}
	c.Core().AddVar(u)
	return u, nil
}

// kernel is the generated code for the direct form.
type kernel struct{}

func (k *kernel) Name() string             { return "heat2d" }
func (k *kernel) ScalarFpOps() int         { return 7 }
func (k *kernel) ScalarPointsRead() int    { return 5 }
func (k *kernel) ScalarPointsWritten() int { return 1 }
func (k *kernel) IsScratch() bool          { return false }

func (k *kernel) IsInValidDomain(core *engine.CoreData, pt indices.Indices) bool { return true }
func (k *kernel) IsSubDomainExpr() bool                                          { return false }
func (k *kernel) DomainDescription() string                                      { return "all points" }

func (k *kernel) IsInValidStep(core *engine.CoreData, step int64) bool { return true }
func (k *kernel) IsStepCondExpr() bool                                 { return false }
func (k *kernel) StepCondDescription() string                          { return "" }

func (k *kernel) OutputStepIndex(in int64) (int64, bool) { return in + 1, true }

// pointValue computes the update for one rank-relative point.
func pointValue(u *vars.Var, t, x, y int64) float64 {
	c := u.ReadElem(t, indices.Of(x, y))
	return c + Alpha*(u.ReadElem(t, indices.Of(x-1, y))+
		u.ReadElem(t, indices.Of(x+1, y))+
		u.ReadElem(t, indices.Of(x, y-1))+
		u.ReadElem(t, indices.Of(x, y+1))-
		4*c)
}

func (k *kernel) CalcScalar(core *engine.CoreData, thr int, pt indices.Indices) {
	u := core.Var("u")
	t := pt[0]
	x := pt[1] - core.RankOfs[0]
	y := pt[2] - core.RankOfs[1]
	u.WriteElem(t+1, indices.Of(x, y), pointValue(u, t, x, y))
}

func (k *kernel) CalcVectors(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices, mask indices.BitMask) {
	u := core.Var("u")
	calcVecRange(core, norm, mask, func(t int64, vec indices.Indices, vals []float64) {
		u.WriteVecNormMasked(t+1, vec, vals, mask)
	}, func(t, x, y int64) float64 {
		return pointValue(u, t, x, y)
	})
}

func (k *kernel) CalcClusters(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices) {
	u := core.Var("u")
	calcVecRange(core, norm, indices.AllLanes(core.Dims.FoldNumLanes()),
		func(t int64, vec indices.Indices, vals []float64) {
			u.WriteVecNorm(t+1, vec, vals)
		}, func(t, x, y int64) float64 {
			return pointValue(u, t, x, y)
		})
}

// calcVecRange walks every vector of a normalized region, evaluates the
// point function on each active lane, and hands the lane values to write.
// Masked-off lanes are never evaluated: their elements may sit outside the
// halo, and the masked write discards them anyway. The cluster path reuses
// this with a full mask over the cluster range.
func calcVecRange(core *engine.CoreData,
	norm indices.ScanIndices, mask indices.BitMask,
	write func(t int64, vec indices.Indices, vals []float64),
	point func(t, x, y int64) float64) {

	d := core.Dims
	t := norm.Begin[0]
	vals := make([]float64, d.FoldNumLanes())

	for vx := norm.Begin[1]; vx < norm.End[1]; vx++ {
		for vy := norm.Begin[2]; vy < norm.End[2]; vy++ {
			indices.VisitAllPoints(d.FoldPts, d.FoldFirstInner,
				func(lane indices.Indices, idx int) bool {
					if !indices.IsBitSet(mask, idx) {
						return true
					}
					x := vx*d.FoldPts[0] + lane[0]
					y := vy*d.FoldPts[1] + lane[1]
					vals[idx] = point(t, x, y)
					return true
				})
			write(t, indices.Of(vx, vy), vals)
		}
	}
}
