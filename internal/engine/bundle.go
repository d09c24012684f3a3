package engine

import (
	"fmt"

	"github.com/XeonPhiNexus/yask/internal/bbox"
	"github.com/XeonPhiNexus/yask/internal/indices"
	"github.com/XeonPhiNexus/yask/internal/vars"
)

// Bundle is one unit of stencil evaluation: a generated kernel plus the
// bookkeeping the engine keeps around it. Bundles are built once at context
// construction and live until the context is destroyed.
type Bundle struct {
	kern BundleKernel
	ctx  *Context

	dependsOn       map[*Bundle]struct{}
	scratchChildren []*Bundle

	// Overall bounding box. May contain invalid points; must fit inside
	// the rank's extended BB.
	bb bbox.BoundingBox

	// Disjoint boxes holding only valid points, all inside bb.
	bbList bbox.BBList

	// Max write halos for scratch bundles, per domain dim.
	maxLH indices.Indices
	maxRH indices.Indices

	outputVars []*vars.Var
	inputVars  []*vars.Var

	// Scratch vars by name; instances are per outer thread in the core.
	outputScratch []string
	inputScratch  []string
}

func newBundle(ctx *Context, kern BundleKernel) *Bundle {
	nddims := ctx.dims.NumDomainDims()
	return &Bundle{
		kern:      kern,
		ctx:       ctx,
		dependsOn: make(map[*Bundle]struct{}),
		bb:        bbox.New(nddims),
		maxLH:     indices.New(nddims),
		maxRH:     indices.New(nddims),
	}
}

// Kernel returns the generated kernel this bundle dispatches to.
func (b *Bundle) Kernel() BundleKernel { return b.kern }

// Name returns the generated kernel's name.
func (b *Bundle) Name() string { return b.kern.Name() }

// IsScratch reports whether the bundle writes scratch vars only.
func (b *Bundle) IsScratch() bool { return b.kern.IsScratch() }

// BB returns the bundle's overall bounding box.
func (b *Bundle) BB() *bbox.BoundingBox { return &b.bb }

// BBs returns the disjoint valid-region cover.
func (b *Bundle) BBs() bbox.BBList { return b.bbList }

// AddDep records that this bundle must be evaluated after other.
func (b *Bundle) AddDep(other *Bundle) {
	b.dependsOn[other] = struct{}{}
}

// DependsOn reports whether other is a recorded dependency.
func (b *Bundle) DependsOn(other *Bundle) bool {
	_, ok := b.dependsOn[other]
	return ok
}

// AddScratchChild appends a scratch bundle evaluated before this one.
// Children are evaluated in the order added.
func (b *Bundle) AddScratchChild(child *Bundle) {
	if !child.IsScratch() {
		panic(fmt.Sprintf("bundle %q added as scratch child of %q but is not scratch",
			child.Name(), b.Name()))
	}
	b.scratchChildren = append(b.scratchChildren, child)
}

// ScratchChildren returns the scratch bundles evaluated before this one.
func (b *Bundle) ScratchChildren() []*Bundle { return b.scratchChildren }

// ReqdBundles returns the scratch children followed by the bundle itself,
// in evaluation order.
func (b *Bundle) ReqdBundles() []*Bundle {
	out := make([]*Bundle, 0, len(b.scratchChildren)+1)
	out = append(out, b.scratchChildren...)
	return append(out, b)
}

// AddOutputVar registers a var written by this bundle.
func (b *Bundle) AddOutputVar(v *vars.Var) { b.outputVars = append(b.outputVars, v) }

// AddInputVar registers a var read by this bundle.
func (b *Bundle) AddInputVar(v *vars.Var) { b.inputVars = append(b.inputVars, v) }

// AddOutputScratch registers a scratch var (by name) written by this
// bundle.
func (b *Bundle) AddOutputScratch(name string) { b.outputScratch = append(b.outputScratch, name) }

// AddInputScratch registers a scratch var (by name) read by this bundle.
func (b *Bundle) AddInputScratch(name string) { b.inputScratch = append(b.inputScratch, name) }

// OutputVars returns the non-scratch vars written by this bundle.
func (b *Bundle) OutputVars() []*vars.Var { return b.outputVars }

// InputVars returns the non-scratch vars read by this bundle.
func (b *Bundle) InputVars() []*vars.Var { return b.inputVars }

// IsInValidStep applies the kernel's step condition, honoring the
// context-level toggle.
func (b *Bundle) IsInValidStep(step int64) bool {
	return !b.ctx.CheckStepConds || b.kern.IsInValidStep(b.ctx.core, step)
}

// normalizeIndices divides the domain dims of orig by the fold lengths.
// Rank offsets must already be subtracted. Begin/end coords must be
// multiples of the fold; a remainder is a programmer error.
func (b *Bundle) normalizeIndices(orig indices.Indices) indices.Indices {
	d := b.ctx.dims
	norm := orig.Clone()
	for j := 0; j < d.NumDomainDims(); j++ {
		i := j + 1
		// DivFlr, not '/': begin/end may be negative in a halo.
		norm[i] = indices.DivFlr(orig[i], d.FoldPts[j])
		if indices.ModFlr(orig[i], d.FoldPts[j]) != 0 {
			panic(fmt.Sprintf("(internal fault) index %d in dim %d is not a multiple of fold %d",
				orig[i], j, d.FoldPts[j]))
		}
	}
	return norm
}

// normalizeSizes divides domain-dim sizes by the fold lengths without the
// multiple-of-fold requirement, clamping to at least one vector. Used for
// strides and tile sizes.
func (b *Bundle) normalizeSizes(orig indices.Indices) indices.Indices {
	d := b.ctx.dims
	norm := orig.Clone()
	for j := 0; j < d.NumDomainDims(); j++ {
		i := j + 1
		norm[i] = indices.DivFlr(orig[i], d.FoldPts[j])
		if norm[i] < 1 {
			norm[i] = 1
		}
	}
	return norm
}

// normalizeScan normalizes a whole ScanIndices.
func (b *Bundle) normalizeScan(orig indices.ScanIndices) indices.ScanIndices {
	norm := orig.Clone()
	norm.Begin = b.normalizeIndices(orig.Begin)
	norm.Start = norm.Begin.Clone()
	norm.End = b.normalizeIndices(orig.End)
	norm.Stop = norm.End.Clone()
	norm.TileSize = b.normalizeSizes(orig.TileSize)
	norm.Align = b.normalizeSizes(orig.Align)
	norm.Stride = b.normalizeSizes(orig.Stride)
	return norm
}

// FindWriteHalos determines, for a scratch bundle, the widest read halo
// any consumer needs in each domain dim, and records it as the extra span
// the scratch region must be written with.
func (b *Bundle) FindWriteHalos() {
	if !b.IsScratch() {
		return
	}
	for _, name := range b.outputScratch {
		// Consumers declare their read reach as the scratch var's halo.
		v := b.ctx.core.ScratchVar(name, 0)
		lh, rh := v.LeftHalo(), v.RightHalo()
		for j := range b.maxLH {
			if lh[j] > b.maxLH[j] {
				b.maxLH[j] = lh[j]
			}
			if rh[j] > b.maxRH[j] {
				b.maxRH[j] = rh[j]
			}
		}
	}
}

// MaxWriteHalos returns the per-dim left and right scratch write halos.
func (b *Bundle) MaxWriteHalos() (indices.Indices, indices.Indices) {
	return b.maxLH, b.maxRH
}

// AdjustScratchSpan expands a scratch bundle's iteration span by its write
// halos, clamped to the rank's extended BB, and re-bases this thread's
// scratch vars so the expanded region addresses inside their allocations.
// idxs holds global element coords; the returned span covers
// [start-maxLH, stop+maxRH) per domain dim.
func (b *Bundle) AdjustScratchSpan(thr int, idxs indices.ScanIndices) indices.ScanIndices {
	d := b.ctx.dims
	adj := idxs.Clone()
	for j := 0; j < d.NumDomainDims(); j++ {
		i := j + 1
		bgn := idxs.Start[i] - b.maxLH[j]
		end := idxs.Stop[i] + b.maxRH[j]
		if lo := b.ctx.extBB.Begin[j]; bgn < lo {
			bgn = lo
		}
		if hi := b.ctx.extBB.End[j]; end > hi {
			end = hi
		}
		adj.Begin[i], adj.Start[i] = bgn, bgn
		adj.End[i], adj.Stop[i] = end, end
	}

	// Move this thread's scratch-var windows onto the expanded region.
	origin := indices.New(d.NumDomainDims())
	for j := range origin {
		origin[j] = adj.Begin[j+1] - b.ctx.rankOfs[j]
	}
	for _, name := range b.outputScratch {
		b.ctx.core.ScratchVar(name, thr).SetLocalOrigin(origin)
	}
	return adj
}

// CalcMicroBlock evaluates the bundle over one micro-block region:
// scratch children first, in listed order, each over its expanded span,
// then the bundle itself. Each evaluation walks the region in nano-blocks.
func (b *Bundle) CalcMicroBlock(outThr int, microIdxs indices.ScanIndices) {
	for _, sg := range b.ReqdBundles() {
		span := microIdxs.Clone()
		if sg.IsScratch() {
			span = sg.AdjustScratchSpan(outThr, microIdxs)
		}

		loop := span.CreateInner()
		loop.SetStridesFromInner(b.ctx.nanoSizes, 1)
		loop.VisitTiles(func(nano indices.ScanIndices) bool {
			sg.CalcNanoBlock(outThr, 0, nano)
			return true
		})
	}
}

// CalcNanoBlock evaluates one nano-block, choosing between the scalar
// reference path and the optimized decomposition.
func (b *Bundle) CalcNanoBlock(outThr, inThr int, microIdxs indices.ScanIndices) {
	if b.ctx.opts.ForceScalar {
		b.calcNanoBlockDbg(outThr, inThr, microIdxs)
	} else {
		b.calcNanoBlockOpt(outThr, inThr, microIdxs)
	}
}

// calcNanoBlockDbg computes one nano-block using pure scalar code. Very
// slow; for validation.
func (b *Bundle) calcNanoBlockDbg(outThr, inThr int, microIdxs indices.ScanIndices) {
	b.ctx.log.Debug("Scalar nano-block.",
		"bundle", b.Name(), "range", microIdxs.RangeStr(true),
		"outThr", outThr, "inThr", inThr)

	sb := microIdxs.CreateInner()
	sb.Stride.SetFromConst(1)
	sb.Align.SetFromConst(1)
	b.CalcInDomain(outThr, sb)
}

// CalcInDomain runs the reference scalar kernel on every point of the
// given tile that lies in the bundle's valid domain. Points are visited in
// lexicographic order with stride 1. Scratch vars, if any, are indexed via
// thr.
func (b *Bundle) CalcInDomain(thr int, miscIdxs indices.ScanIndices) {
	core := b.ctx.core
	visitRange(miscIdxs.Start, miscIdxs.Stop, func(pt indices.Indices) {
		if b.kern.IsInValidDomain(core, pt) {
			b.kern.CalcScalar(core, thr, pt)
		}
	})
}

// visitRange visits every point of [start, stop) in lexicographic order:
// the first dim varies slowest.
func visitRange(start, stop indices.Indices, fn func(pt indices.Indices)) {
	n := len(start)
	for i := 0; i < n; i++ {
		if stop[i] <= start[i] {
			return
		}
	}
	pt := start.Clone()
	for {
		fn(pt)
		d := n - 1
		for ; d >= 0; d-- {
			pt[d]++
			if pt[d] < stop[d] {
				break
			}
			pt[d] = start[d]
		}
		if d < 0 {
			return
		}
	}
}

// UpdateVarInfo marks the bundle's output vars dirty on the given view,
// optionally mirrors the flag to the other view, records device-side
// modification, and advances the last-valid-step index.
func (b *Bundle) UpdateVarInfo(view vars.View, step int64,
	markExternDirty, modDevData, updateValidStep bool) {

	outStep := step
	wroteStep := false
	if os, ok := b.kern.OutputStepIndex(step); ok {
		outStep = os
		wroteStep = true
	}

	for _, v := range b.outputVars {
		v.SetDirty(view, outStep, true)
		if markExternDirty {
			v.SetDirty(view.Other(), outStep, true)
		}
		if modDevData {
			v.SetDevModified(true)
		}
		if updateValidStep && wroteStep && v.HasStep() {
			v.UpdateValidStep(outStep)
		}
	}
}

// calcClusters dispatches a tile of whole clusters to the generated code.
// This should be the hottest call for most stencils. Indices must be
// normalized and rank-relative.
func (b *Bundle) calcClusters(outThr, inThr, thrLimit int, norm indices.ScanIndices) {
	b.kern.CalcClusters(b.ctx.core, outThr, inThr, thrLimit, norm)
}

// calcVectors dispatches a tile of single vectors under the given lane
// mask. Indices must be normalized and rank-relative.
func (b *Bundle) calcVectors(outThr, inThr, thrLimit int, norm indices.ScanIndices, mask indices.BitMask) {
	if b.ctx.dims.ClusterNumPoints() == 1 {
		panic("(internal fault) masked-vector code not expected with cluster-size==1")
	}
	b.kern.CalcVectors(b.ctx.core, outThr, inThr, thrLimit, norm, mask)
}
