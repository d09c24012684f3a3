// Package dims holds the compile-time dimension metadata of a stencil
// solution: the step dimension, the domain dimensions, and the vector-fold
// and cluster shapes the generated kernels were built for.
package dims

import (
	"fmt"

	"github.com/XeonPhiNexus/yask/internal/indices"
)

// Dims describes the dimensionality of one solution. Folds and clusters
// are fixed when the stencil is compiled; the engine only reads them.
type Dims struct {
	StepDim    string
	DomainDims []string

	// FoldPts is the N-D shape of one SIMD vector in elements per domain
	// dim; its product is the number of lanes.
	FoldPts indices.Indices

	// ClusterMults is the number of vectors per cluster in each domain
	// dim; ClusterPts = FoldPts * ClusterMults in elements.
	ClusterMults indices.Indices
	ClusterPts   indices.Indices

	// FoldFirstInner selects the lane order of the fold: when true, the
	// first domain dim varies fastest.
	FoldFirstInner bool
}

// New validates and builds a Dims. ClusterPts and lane counts are derived.
func New(stepDim string, domainDims []string, foldPts, clusterMults indices.Indices, foldFirstInner bool) (*Dims, error) {
	nddims := len(domainDims)
	if nddims == 0 {
		return nil, fmt.Errorf("no domain dims given")
	}
	if len(foldPts) != nddims || len(clusterMults) != nddims {
		return nil, fmt.Errorf("fold/cluster shape rank %d/%d does not match %d domain dims",
			len(foldPts), len(clusterMults), nddims)
	}
	for j := range foldPts {
		if foldPts[j] < 1 {
			return nil, fmt.Errorf("fold size in dim %q must be >= 1, got %d", domainDims[j], foldPts[j])
		}
		if clusterMults[j] < 1 {
			return nil, fmt.Errorf("cluster mult in dim %q must be >= 1, got %d", domainDims[j], clusterMults[j])
		}
	}
	if n := foldPts.Product(); n > 64 {
		return nil, fmt.Errorf("fold has %d lanes; lane masks support at most 64", n)
	}

	d := &Dims{
		StepDim:        stepDim,
		DomainDims:     append([]string(nil), domainDims...),
		FoldPts:        foldPts.Clone(),
		ClusterMults:   clusterMults.Clone(),
		ClusterPts:     indices.New(nddims),
		FoldFirstInner: foldFirstInner,
	}
	for j := range foldPts {
		d.ClusterPts[j] = foldPts[j] * clusterMults[j]
	}
	return d, nil
}

// NumDomainDims returns the number of domain dims.
func (d *Dims) NumDomainDims() int {
	return len(d.DomainDims)
}

// NumStencilDims returns the step dim plus the domain dims.
func (d *Dims) NumStencilDims() int {
	return len(d.DomainDims) + 1
}

// FoldNumLanes returns the number of lanes in one vector.
func (d *Dims) FoldNumLanes() int {
	return int(d.FoldPts.Product())
}

// ClusterNumPoints returns the elements covered by one cluster.
func (d *Dims) ClusterNumPoints() int64 {
	return d.ClusterPts.Product()
}

// ClusterIsUnit reports whether the cluster is a single vector in every
// dim. In that case there are no full-vector boundary strips; masked
// partial vectors can still occur at ragged edges.
func (d *Dims) ClusterIsUnit() bool {
	for _, m := range d.ClusterMults {
		if m != 1 {
			return false
		}
	}
	return true
}

// LaneIndex returns the lane number of an offset within the fold, in fold
// visit order. off must be inside [0, FoldPts).
func (d *Dims) LaneIndex(off indices.Indices) int {
	idx := 0
	if d.FoldFirstInner {
		for j := len(off) - 1; j >= 0; j-- {
			idx = idx*int(d.FoldPts[j]) + int(off[j])
		}
	} else {
		for j := 0; j < len(off); j++ {
			idx = idx*int(d.FoldPts[j]) + int(off[j])
		}
	}
	return idx
}
