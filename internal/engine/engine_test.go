package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XeonPhiNexus/yask/internal/config"
	"github.com/XeonPhiNexus/yask/internal/dims"
	"github.com/XeonPhiNexus/yask/internal/indices"
)

// vectorCall records one CalcVectors dispatch.
type vectorCall struct {
	begin indices.Indices
	end   indices.Indices
	mask  indices.BitMask
}

// clusterCall records one CalcClusters dispatch.
type clusterCall struct {
	begin indices.Indices
	end   indices.Indices
}

// fakeKernel is a recording BundleKernel. It tracks every dispatch and,
// via the touched map, every element a vector or cluster call would write,
// so tests can check the partition property without real storage.
type fakeKernel struct {
	name    string
	scratch bool
	d       *dims.Dims

	subDomain    func(pt indices.Indices) bool
	stepCond     func(step int64) bool
	stepCondDesc string
	outStep      func(in int64) (int64, bool)

	mu           sync.Mutex
	scalarCalls  []indices.Indices
	vectorCalls  []vectorCall
	clusterCalls []clusterCall
	touched      map[string]int
	seq          *callSeq
}

// callSeq records the order of kernel dispatches across bundles.
type callSeq struct {
	mu    sync.Mutex
	names []string
}

func (cs *callSeq) add(name string) {
	cs.mu.Lock()
	cs.names = append(cs.names, name)
	cs.mu.Unlock()
}

func newFakeKernel(name string, d *dims.Dims) *fakeKernel {
	return &fakeKernel{name: name, d: d, touched: map[string]int{}}
}

func (k *fakeKernel) Name() string             { return k.name }
func (k *fakeKernel) ScalarFpOps() int         { return 5 }
func (k *fakeKernel) ScalarPointsRead() int    { return 2 }
func (k *fakeKernel) ScalarPointsWritten() int { return 1 }
func (k *fakeKernel) IsScratch() bool          { return k.scratch }

func (k *fakeKernel) IsInValidDomain(core *CoreData, pt indices.Indices) bool {
	if k.subDomain == nil {
		return true
	}
	return k.subDomain(pt)
}
func (k *fakeKernel) IsSubDomainExpr() bool      { return k.subDomain != nil }
func (k *fakeKernel) DomainDescription() string  { return "fake sub-domain" }
func (k *fakeKernel) IsStepCondExpr() bool       { return k.stepCond != nil }
func (k *fakeKernel) StepCondDescription() string { return k.stepCondDesc }

func (k *fakeKernel) IsInValidStep(core *CoreData, step int64) bool {
	if k.stepCond == nil {
		return true
	}
	return k.stepCond(step)
}

func (k *fakeKernel) OutputStepIndex(in int64) (int64, bool) {
	if k.outStep == nil {
		return in + 1, true
	}
	return k.outStep(in)
}

func (k *fakeKernel) CalcScalar(core *CoreData, thr int, pt indices.Indices) {
	if k.seq != nil {
		k.seq.add(k.name)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.scalarCalls = append(k.scalarCalls, pt.Clone())
	k.touched[ptKey(pt[1:])]++
}

func (k *fakeKernel) CalcVectors(core *CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices, mask indices.BitMask) {
	if k.seq != nil {
		k.seq.add(k.name)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.vectorCalls = append(k.vectorCalls, vectorCall{
		begin: norm.Begin.Clone(), end: norm.End.Clone(), mask: mask,
	})
	k.touchRegion(norm, mask)
}

func (k *fakeKernel) CalcClusters(core *CoreData, outThr, inThr, thrLimit int,
	norm indices.ScanIndices) {
	if k.seq != nil {
		k.seq.add(k.name)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.clusterCalls = append(k.clusterCalls, clusterCall{
		begin: norm.Begin.Clone(), end: norm.End.Clone(),
	})
	k.touchRegion(norm, ^indices.BitMask(0))
}

// touchRegion marks every element the masked vectors of a normalized
// region would write. Caller holds the lock.
func (k *fakeKernel) touchRegion(norm indices.ScanIndices, mask indices.BitMask) {
	d := k.d
	nddims := d.NumDomainDims()
	visitRange(norm.Begin[1:], norm.End[1:], func(vec indices.Indices) {
		indices.VisitAllPoints(d.FoldPts, d.FoldFirstInner,
			func(lane indices.Indices, idx int) bool {
				if !indices.IsBitSet(mask, idx) {
					return true
				}
				elem := indices.New(nddims)
				for j := 0; j < nddims; j++ {
					elem[j] = vec[j]*d.FoldPts[j] + lane[j]
				}
				k.touched[ptKey(elem)]++
				return true
			})
	})
}

func ptKey(pt indices.Indices) string { return fmt.Sprint([]int64(pt)) }

// fakeSolution builds one bundle around each given kernel and puts the
// non-scratch ones in a single stage.
type fakeSolution struct {
	d       *dims.Dims
	domain  []int64
	kernels []*fakeKernel
	bundles map[string]*Bundle
	wire    func(c *Context, bundles map[string]*Bundle) error
}

func (s *fakeSolution) Name() string { return "fake" }

func (s *fakeSolution) NewDims(foldOverride map[string]int64) (*dims.Dims, error) {
	return s.d, nil
}

func (s *fakeSolution) DefaultDomain() []int64 { return s.domain }

func (s *fakeSolution) Build(c *Context) error {
	s.bundles = map[string]*Bundle{}
	var staged []*Bundle
	for _, k := range s.kernels {
		b := c.NewBundle(k)
		s.bundles[k.name] = b
		staged = append(staged, b)
	}
	if s.wire != nil {
		if err := s.wire(c, s.bundles); err != nil {
			return err
		}
	}
	_, err := c.AddStage("stage_1", staged...)
	return err
}

// newTestContext builds a context around the given kernels with an
// explicit fold/cluster configuration.
func newTestContext(t *testing.T, foldPts, clusterMults indices.Indices,
	domain []int64, opts *config.Settings, kernels ...*fakeKernel) (*Context, *fakeSolution) {
	t.Helper()
	return newTestContextWired(t, foldPts, clusterMults, domain, opts, nil, kernels...)
}

// newTestContextWired is newTestContext plus a wire callback for var and
// scratch setup.
func newTestContextWired(t *testing.T, foldPts, clusterMults indices.Indices,
	domain []int64, opts *config.Settings,
	wire func(c *Context, bundles map[string]*Bundle) error,
	kernels ...*fakeKernel) (*Context, *fakeSolution) {
	t.Helper()

	names := []string{"x", "y", "z", "w"}[:len(foldPts)]
	d, err := dims.New("t", names, foldPts, clusterMults, true)
	require.NoError(t, err)
	for _, k := range kernels {
		k.d = d
	}

	if opts == nil {
		opts = config.Default()
	}
	opts.Stencil = "fake"
	if opts.OuterThreads == 0 {
		opts.OuterThreads = 1
	}

	sol := &fakeSolution{d: d, domain: domain, kernels: kernels, wire: wire}
	c, err := NewContext(context.Background(), sol, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, sol
}

// nanoScan builds a micro-block ScanIndices whose current tile covers
// [begin, end) in domain coords at the given step.
func nanoScan(c *Context, step int64, begin, end indices.Indices) indices.ScanIndices {
	nsdims := c.dims.NumStencilDims()
	si := indices.NewScan(nsdims)
	si.Begin[0], si.End[0] = step, step+1
	si.Start[0], si.Stop[0] = step, step+1
	for j := range begin {
		si.Begin[j+1], si.End[j+1] = begin[j], end[j]
		si.Start[j+1], si.Stop[j+1] = begin[j], end[j]
	}
	return si
}
