// Package vars implements the variable storage the kernels read and write:
// N-D arrays over the step and domain dimensions with per-dim halos,
// vector-fold-tiled layout, and host/device dirty tracking per step.
package vars

import (
	"fmt"

	"github.com/XeonPhiNexus/yask/internal/dims"
	"github.com/XeonPhiNexus/yask/internal/indices"
)

// View selects which copy of a var's data a dirty flag refers to.
type View int

const (
	ViewHost View = iota
	ViewDev
)

// Other returns the mirror view.
func (v View) Other() View {
	if v == ViewHost {
		return ViewDev
	}
	return ViewHost
}

// Var is one stencil variable. Domain coordinates are rank-relative
// elements; the allocation covers [AllocBegin, AllocEnd) in each domain dim
// and is always aligned to the vector fold so that normalized vector
// accesses never straddle the allocation edge.
type Var struct {
	name      string
	d         *dims.Dims
	hasStep   bool
	stepAlloc int64

	allocLen indices.Indices // fold-aligned length per domain dim
	origin   indices.Indices // rank-relative coord of allocation begin

	leftHalo  indices.Indices
	rightHalo indices.Indices

	numVecs   indices.Indices
	laneCount int
	data      []float64

	dirty       [2][]bool
	devModified bool

	lastValidStep    int64
	lastValidStepSet bool
}

// New allocates a var covering [begin, end) in rank-relative elements per
// domain dim, extended by the given halos and rounded out to the fold.
// stepAlloc is the number of step slots kept; pass 1 for step-free vars.
func New(name string, d *dims.Dims, hasStep bool, stepAlloc int64,
	begin, end, leftHalo, rightHalo indices.Indices) (*Var, error) {

	nddims := d.NumDomainDims()
	if len(begin) != nddims || len(end) != nddims {
		return nil, fmt.Errorf("var %q: domain bounds rank mismatch", name)
	}
	if stepAlloc < 1 {
		return nil, fmt.Errorf("var %q: step allocation must be >= 1", name)
	}

	v := &Var{
		name:      name,
		d:         d,
		hasStep:   hasStep,
		stepAlloc: stepAlloc,
		allocLen:  indices.New(nddims),
		origin:    indices.New(nddims),
		leftHalo:  leftHalo.Clone(),
		rightHalo: rightHalo.Clone(),
		numVecs:   indices.New(nddims),
		laneCount: d.FoldNumLanes(),
	}

	total := stepAlloc
	for j := 0; j < nddims; j++ {
		lo := indices.RoundDownFlr(begin[j]-leftHalo[j], d.FoldPts[j])
		hi := indices.RoundUpFlr(end[j]+rightHalo[j], d.FoldPts[j])
		v.origin[j] = lo
		v.allocLen[j] = hi - lo
		v.numVecs[j] = (hi - lo) / d.FoldPts[j]
		total *= v.allocLen[j]
	}
	v.data = make([]float64, total)

	nd := stepAlloc
	if !hasStep {
		nd = 1
	}
	v.dirty[ViewHost] = make([]bool, nd)
	v.dirty[ViewDev] = make([]bool, nd)
	return v, nil
}

// Name returns the var's name.
func (v *Var) Name() string { return v.name }

// HasStep reports whether the var is indexed by the step dim.
func (v *Var) HasStep() bool { return v.hasStep }

// LeftHalo returns the per-dim halo below the domain.
func (v *Var) LeftHalo() indices.Indices { return v.leftHalo }

// RightHalo returns the per-dim halo above the domain.
func (v *Var) RightHalo() indices.Indices { return v.rightHalo }

// Origin returns the rank-relative coord of the allocation begin.
func (v *Var) Origin() indices.Indices { return v.origin }

// AllocLen returns the fold-aligned allocation length per domain dim.
func (v *Var) AllocLen() indices.Indices { return v.allocLen }

// SetLocalOrigin moves the allocation origin so that the var's storage
// covers a different rank-relative region of the same shape. Used to
// re-base per-thread scratch vars onto the micro-block being evaluated.
// newBegin is the first element the window must cover; the origin rounds
// down to the fold, so the caller must have allocated up to one fold of
// slack per dim beyond the sliding region.
func (v *Var) SetLocalOrigin(newBegin indices.Indices) {
	for j := range v.origin {
		v.origin[j] = indices.RoundDownFlr(newBegin[j], v.d.FoldPts[j])
	}
}

// wrapStep folds a step index into the allocated step slots.
func (v *Var) wrapStep(step int64) int64 {
	if !v.hasStep {
		return 0
	}
	return indices.ModFlr(step, v.stepAlloc)
}

// linearIndex maps a step slot plus rank-relative element coords to the
// flat storage offset. The layout groups elements by fold tile so that a
// normalized vector is contiguous.
func (v *Var) linearIndex(step int64, pt indices.Indices) int64 {
	nddims := v.d.NumDomainDims()
	vec := int64(0)
	lane := indices.New(nddims)
	for j := 0; j < nddims; j++ {
		rel := pt[j] - v.origin[j]
		if rel < 0 || rel >= v.allocLen[j] {
			panic(fmt.Sprintf("var %q: element index %d out of allocation [%d, %d) in dim %d",
				v.name, pt[j], v.origin[j], v.origin[j]+v.allocLen[j], j))
		}
		vec = vec*v.numVecs[j] + indices.DivFlr(rel, v.d.FoldPts[j])
		lane[j] = indices.ModFlr(rel, v.d.FoldPts[j])
	}
	slot := v.wrapStep(step)
	return (slot*v.numVecs.Product()+vec)*int64(v.laneCount) + int64(v.d.LaneIndex(lane))
}

// ReadElem reads one element. pt holds rank-relative domain coords.
func (v *Var) ReadElem(step int64, pt indices.Indices) float64 {
	return v.data[v.linearIndex(step, pt)]
}

// WriteElem writes one element. pt holds rank-relative domain coords.
func (v *Var) WriteElem(step int64, pt indices.Indices, val float64) {
	v.data[v.linearIndex(step, pt)] = val
}

// vecBase returns the storage offset of lane 0 of the vector at normalized
// coords vpt.
func (v *Var) vecBase(step int64, vpt indices.Indices) int64 {
	nddims := v.d.NumDomainDims()
	vec := int64(0)
	for j := 0; j < nddims; j++ {
		rel := vpt[j] - indices.DivFlr(v.origin[j], v.d.FoldPts[j])
		if rel < 0 || rel >= v.numVecs[j] {
			panic(fmt.Sprintf("var %q: vector index %d out of allocation in dim %d", v.name, vpt[j], j))
		}
		vec = vec*v.numVecs[j] + rel
	}
	slot := v.wrapStep(step)
	return (slot*v.numVecs.Product() + vec) * int64(v.laneCount)
}

// ReadVecNorm copies the lanes of the vector at normalized coords vpt into
// out, which must have fold-lane length.
func (v *Var) ReadVecNorm(step int64, vpt indices.Indices, out []float64) {
	base := v.vecBase(step, vpt)
	copy(out, v.data[base:base+int64(v.laneCount)])
}

// WriteVecNorm writes all lanes of the vector at normalized coords vpt.
func (v *Var) WriteVecNorm(step int64, vpt indices.Indices, vals []float64) {
	base := v.vecBase(step, vpt)
	copy(v.data[base:base+int64(v.laneCount)], vals)
}

// WriteVecNormMasked writes only the lanes whose bit is set in mask.
func (v *Var) WriteVecNormMasked(step int64, vpt indices.Indices, vals []float64, mask uint64) {
	base := v.vecBase(step, vpt)
	for l := 0; l < v.laneCount; l++ {
		if mask&(uint64(1)<<l) != 0 {
			v.data[base+int64(l)] = vals[l]
		}
	}
}

// Fill sets every element of every step slot to val.
func (v *Var) Fill(val float64) {
	for i := range v.data {
		v.data[i] = val
	}
}

// SetDirty sets or clears the dirty flag of one view at the given step.
func (v *Var) SetDirty(view View, step int64, dirty bool) {
	v.dirty[view][v.wrapStep(step)] = dirty
}

// IsDirty reports the dirty flag of one view at the given step.
func (v *Var) IsDirty(view View, step int64) bool {
	return v.dirty[view][v.wrapStep(step)]
}

// SetDevModified records that device data was changed since the last sync.
func (v *Var) SetDevModified(mod bool) { v.devModified = mod }

// DevModified reports whether device data was changed since the last sync.
func (v *Var) DevModified() bool { return v.devModified }

// UpdateValidStep advances the last step index known to hold valid data.
func (v *Var) UpdateValidStep(step int64) {
	if !v.lastValidStepSet || step > v.lastValidStep {
		v.lastValidStep = step
		v.lastValidStepSet = true
	}
}

// LastValidStep returns the last valid step and whether one was recorded.
func (v *Var) LastValidStep() (int64, bool) {
	return v.lastValidStep, v.lastValidStepSet
}
