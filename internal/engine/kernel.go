package engine

import (
	"fmt"

	"github.com/XeonPhiNexus/yask/internal/dims"
	"github.com/XeonPhiNexus/yask/internal/indices"
	"github.com/XeonPhiNexus/yask/internal/vars"
)

// BundleKernel is the contract every compiler-generated stencil bundle
// implements. The engine dispatches through this interface without knowing
// the stencil's shape; index tuples use stencil-dim order (step first).
//
// CalcScalar computes one point from global element coords. CalcVectors and
// CalcClusters receive normalized, rank-relative vector coords; the lane
// mask has one bit per fold lane in fold visit order.
type BundleKernel interface {
	Name() string
	ScalarFpOps() int
	ScalarPointsRead() int
	ScalarPointsWritten() int
	IsScratch() bool

	IsInValidDomain(core *CoreData, pt indices.Indices) bool
	IsSubDomainExpr() bool
	DomainDescription() string

	IsInValidStep(core *CoreData, step int64) bool
	IsStepCondExpr() bool
	StepCondDescription() string

	// OutputStepIndex returns the step written when the kernel is invoked
	// with the given input step, and whether the bundle writes the step
	// dim at all.
	OutputStepIndex(inStep int64) (int64, bool)

	CalcScalar(core *CoreData, thr int, pt indices.Indices)
	CalcVectors(core *CoreData, outThr, inThr, thrLimit int, norm indices.ScanIndices, mask indices.BitMask)
	CalcClusters(core *CoreData, outThr, inThr, thrLimit int, norm indices.ScanIndices)
}

// CoreData is the handle handed to generated kernels. It carries the
// dimension metadata, the rank's global offsets, and the variable storage,
// including the per-outer-thread scratch slices.
type CoreData struct {
	Dims    *dims.Dims
	RankOfs indices.Indices // domain-dim global offset of this rank

	vars        map[string]*vars.Var
	scratch     map[string][]*vars.Var
	outerThreads int
}

// NewCoreData builds an empty core for the given dims and rank offsets.
// outerThreads sizes the scratch slices.
func NewCoreData(d *dims.Dims, rankOfs indices.Indices, outerThreads int) *CoreData {
	if outerThreads < 1 {
		outerThreads = 1
	}
	return &CoreData{
		Dims:        d,
		RankOfs:     rankOfs.Clone(),
		vars:        make(map[string]*vars.Var),
		scratch:     make(map[string][]*vars.Var),
		outerThreads: outerThreads,
	}
}

// OuterThreads returns the number of per-thread scratch slots.
func (cd *CoreData) OuterThreads() int { return cd.outerThreads }

// AddVar registers a non-scratch var. Duplicate names are programmer
// errors.
func (cd *CoreData) AddVar(v *vars.Var) {
	if _, exists := cd.vars[v.Name()]; exists {
		panic(fmt.Sprintf("var %q already registered", v.Name()))
	}
	cd.vars[v.Name()] = v
}

// Var returns a registered var; missing names are programmer errors.
func (cd *CoreData) Var(name string) *vars.Var {
	v, ok := cd.vars[name]
	if !ok {
		panic(fmt.Sprintf("var %q not registered", name))
	}
	return v
}

// AddScratchVar registers the per-outer-thread instances of one scratch
// var. The slice must have one entry per outer thread.
func (cd *CoreData) AddScratchVar(name string, perThread []*vars.Var) {
	if _, exists := cd.scratch[name]; exists {
		panic(fmt.Sprintf("scratch var %q already registered", name))
	}
	if len(perThread) != cd.outerThreads {
		panic(fmt.Sprintf("scratch var %q has %d instances for %d outer threads",
			name, len(perThread), cd.outerThreads))
	}
	cd.scratch[name] = perThread
}

// ScratchVar returns the instance of a scratch var owned by one outer
// thread.
func (cd *CoreData) ScratchVar(name string, thr int) *vars.Var {
	sv, ok := cd.scratch[name]
	if !ok {
		panic(fmt.Sprintf("scratch var %q not registered", name))
	}
	return sv[thr]
}

// VarNames returns the names of all registered non-scratch vars.
func (cd *CoreData) VarNames() []string {
	names := make([]string, 0, len(cd.vars))
	for n := range cd.vars {
		names = append(names, n)
	}
	return names
}
