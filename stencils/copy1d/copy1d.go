// Package copy1d carries the generated code for a trivial 1-D
// pass-through stencil: a(t+1) = a(t). It is the smallest complete
// solution and doubles as a benchmark baseline.
package copy1d

import (
	"fmt"

	"golang.org/x/sys/cpu"

	"github.com/XeonPhiNexus/yask/internal/dims"
	"github.com/XeonPhiNexus/yask/internal/engine"
	"github.com/XeonPhiNexus/yask/internal/indices"
	"github.com/XeonPhiNexus/yask/internal/vars"
)

// Solution is the copy1d solution.
type Solution struct{}

// New returns the solution.
func New() engine.Solution { return &Solution{} }

// Name implements engine.Solution.
func (s *Solution) Name() string { return "copy1d" }

// defaultFold picks the vector length the way the kernel generator would:
// 8 doubles with AVX-512, otherwise 4.
func defaultFold() int64 {
	if cpu.X86.HasAVX512F {
		return 8
	}
	return 4
}

// NewDims implements engine.Solution.
func (s *Solution) NewDims(foldOverride map[string]int64) (*dims.Dims, error) {
	fold := defaultFold()
	for name, n := range foldOverride {
		if name != "x" {
			return nil, fmt.Errorf("copy1d has no dim %q", name)
		}
		fold = n
	}
	return dims.New("t", []string{"x"}, indices.Of(fold), indices.Of(2), true)
}

// DefaultDomain implements engine.Solution.
func (s *Solution) DefaultDomain() []int64 { return []int64{1024} }

// Build implements engine.Solution.
func (s *Solution) Build(c *engine.Context) error {
	zero := indices.New(1)
	a, err := vars.New("a", c.Dims(), true, 2,
		c.RankBB().Begin.SubElem(c.RankOfs()),
		c.RankBB().End.SubElem(c.RankOfs()),
		zero, zero)
	if err != nil {
		return err
	}
	c.Core().AddVar(a)

	b := c.NewBundle(&kernel{})
	b.AddOutputVar(a)
	b.AddInputVar(a)

	_, err = c.AddStage("copy", b)
	return err
}

type kernel struct{}

func (k *kernel) Name() string             { return "copy1d" }
func (k *kernel) ScalarFpOps() int         { return 0 }
func (k *kernel) ScalarPointsRead() int    { return 1 }
func (k *kernel) ScalarPointsWritten() int { return 1 }
func (k *kernel) IsScratch() bool          { return false }

func (k *kernel) IsInValidDomain(core *engine.CoreData, pt indices.Indices) bool { return true }
func (k *kernel) IsSubDomainExpr() bool                                          { return false }
func (k *kernel) DomainDescription() string                                      { return "all points" }

func (k *kernel) IsInValidStep(core *engine.CoreData, step int64) bool { return true }
func (k *kernel) IsStepCondExpr() bool                                 { return false }
func (k *kernel) StepCondDescription() string                          { return "" }

func (k *kernel) OutputStepIndex(in int64) (int64, bool) { return in + 1, true }

func (k *kernel) CalcScalar(core *engine.CoreData, thr int, pt indices.Indices) {
	a := core.Var("a")
	x := pt[1] - core.RankOfs[0]
	a.WriteElem(pt[0]+1, indices.Of(x), a.ReadElem(pt[0], indices.Of(x)))
}

func (k *kernel) CalcVectors(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices, mask indices.BitMask) {
	a := core.Var("a")
	t := norm.Begin[0]
	vals := make([]float64, core.Dims.FoldNumLanes())
	for vx := norm.Begin[1]; vx < norm.End[1]; vx++ {
		a.ReadVecNorm(t, indices.Of(vx), vals)
		a.WriteVecNormMasked(t+1, indices.Of(vx), vals, mask)
	}
}

func (k *kernel) CalcClusters(core *engine.CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices) {
	k.CalcVectors(core, outThr, inThr, thrLimit, norm, indices.AllLanes(core.Dims.FoldNumLanes()))
}
