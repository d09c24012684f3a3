// Package bbox provides rectilinear bounding boxes over the domain
// dimensions. A bundle carries one outer box plus a list of disjoint
// interior boxes covering its valid sub-domain.
package bbox

import (
	"fmt"

	"github.com/XeonPhiNexus/yask/internal/indices"
)

// BoundingBox is an axis-aligned box over the domain dims. End is
// exclusive. Update must be called after Begin or End change to refresh the
// derived fields.
type BoundingBox struct {
	Begin indices.Indices
	End   indices.Indices

	// Derived by Update.
	Len       indices.Indices
	NumPoints int64
	IsValid   bool
}

// New returns an invalid (unset) box over nddims domain dims.
func New(nddims int) BoundingBox {
	return BoundingBox{
		Begin: indices.New(nddims),
		End:   indices.New(nddims),
	}
}

// NewFromRange returns an updated box with the given bounds.
func NewFromRange(begin, end indices.Indices) BoundingBox {
	bb := BoundingBox{Begin: begin.Clone(), End: end.Clone()}
	bb.Update()
	return bb
}

// NumDims returns the number of domain dims covered.
func (bb *BoundingBox) NumDims() int {
	return len(bb.Begin)
}

// Update refreshes Len, NumPoints, and IsValid from Begin and End.
func (bb *BoundingBox) Update() {
	bb.Len = bb.End.SubElem(bb.Begin)
	bb.IsValid = true
	bb.NumPoints = 1
	for _, l := range bb.Len {
		if l < 0 {
			bb.IsValid = false
			bb.NumPoints = 0
			return
		}
		bb.NumPoints *= l
	}
}

// Clone returns an independent copy.
func (bb BoundingBox) Clone() BoundingBox {
	out := BoundingBox{Begin: bb.Begin.Clone(), End: bb.End.Clone()}
	out.Update()
	return out
}

// IsEmpty reports whether the box contains no points.
func (bb *BoundingBox) IsEmpty() bool {
	return bb.NumPoints == 0
}

// ContainsPoint reports whether pt (domain-dim coords) is inside the box.
func (bb *BoundingBox) ContainsPoint(pt indices.Indices) bool {
	for j := range bb.Begin {
		if pt[j] < bb.Begin[j] || pt[j] >= bb.End[j] {
			return false
		}
	}
	return true
}

// Contains reports whether other lies entirely within bb. An empty box is
// contained anywhere.
func (bb *BoundingBox) Contains(other *BoundingBox) bool {
	if other.IsEmpty() {
		return true
	}
	for j := range bb.Begin {
		if other.Begin[j] < bb.Begin[j] || other.End[j] > bb.End[j] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of bb and other; the result is updated and
// may be empty.
func (bb *BoundingBox) Intersect(other *BoundingBox) BoundingBox {
	out := New(bb.NumDims())
	for j := range bb.Begin {
		out.Begin[j] = max(bb.Begin[j], other.Begin[j])
		out.End[j] = min(bb.End[j], other.End[j])
		if out.End[j] < out.Begin[j] {
			out.End[j] = out.Begin[j]
		}
	}
	out.Update()
	return out
}

// MergeWith grows bb to enclose pt.
func (bb *BoundingBox) MergeWith(pt indices.Indices) {
	if bb.Len == nil {
		// Unset box: seed from the point.
		for j := range bb.Begin {
			bb.Begin[j] = pt[j]
			bb.End[j] = pt[j] + 1
		}
		bb.Update()
		return
	}
	for j := range bb.Begin {
		if pt[j] < bb.Begin[j] {
			bb.Begin[j] = pt[j]
		}
		if pt[j]+1 > bb.End[j] {
			bb.End[j] = pt[j] + 1
		}
	}
	bb.Update()
}

// String renders the box for log messages.
func (bb BoundingBox) String() string {
	return fmt.Sprintf("[%s ... %s)", bb.Begin, bb.End)
}

// BBList is a list of non-overlapping boxes.
type BBList []BoundingBox

// NumPoints sums the points of all boxes.
func (bbl BBList) NumPoints() int64 {
	var n int64
	for i := range bbl {
		n += bbl[i].NumPoints
	}
	return n
}
