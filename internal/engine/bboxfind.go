package engine

import (
	"sort"

	"github.com/XeonPhiNexus/yask/internal/bbox"
	"github.com/XeonPhiNexus/yask/internal/indices"
)

// FindBoundingBoxes scans the rank's extended domain and sets the bundle's
// overall BB plus the disjoint cover of its valid sub-domain. The scan
// runs in vector-fold strides: validity is uniform within a fold tile, a
// property the stencil compiler guarantees for sub-domain conditions.
func (b *Bundle) FindBoundingBoxes() {
	d := b.ctx.dims
	nddims := d.NumDomainDims()

	// Without a sub-domain condition the bundle covers the whole rank
	// domain.
	if !b.kern.IsSubDomainExpr() {
		b.bb = b.ctx.rankBB.Clone()
		b.bbList = bbox.BBList{b.bb.Clone()}
		return
	}

	// Collect the origin of every valid fold tile.
	var tiles []indices.Indices
	overall := bbox.New(nddims)

	scan := indices.NewScan(nddims)
	scan.Begin = b.ctx.extBB.Begin.Clone()
	scan.End = b.ctx.extBB.End.Clone()
	scan.Stride = d.FoldPts.Clone()
	scan.VisitTiles(func(tile indices.ScanIndices) bool {
		pt := indices.New(d.NumStencilDims())
		for j := 0; j < nddims; j++ {
			pt[j+1] = tile.Start[j]
		}
		if b.kern.IsInValidDomain(b.ctx.core, pt) {
			tiles = append(tiles, tile.Start.Clone())
			overall.MergeWith(tile.Start)
			last := tile.Start.AddElem(d.FoldPts)
			for j := range last {
				last[j]--
			}
			overall.MergeWith(last)
		}
		return true
	})

	if len(tiles) == 0 {
		b.bb = bbox.New(nddims)
		b.bb.Update()
		b.bbList = nil
		return
	}
	b.bb = overall
	b.bbList = coverFromTiles(tiles, d.FoldPts)

	b.ctx.log.Debug("Bounding boxes found.",
		"bundle", b.Name(), "bb", b.bb.String(), "boxes", len(b.bbList))
}

// CopyBoundingBoxes duplicates another bundle's BB vars; used when two
// bundles share identical validity.
func (b *Bundle) CopyBoundingBoxes(src *Bundle) {
	b.bb = src.bb.Clone()
	b.bbList = make(bbox.BBList, len(src.bbList))
	for i := range src.bbList {
		b.bbList[i] = src.bbList[i].Clone()
	}
}

// coverFromTiles merges fold-tile boxes into maximal axis-aligned boxes:
// runs are extruded along the lowest domain dim first, then adjacent runs
// with identical extent merge along each higher dim in turn. The result is
// disjoint and covers exactly the input tiles.
func coverFromTiles(tiles []indices.Indices, foldPts indices.Indices) bbox.BBList {
	nddims := len(foldPts)
	boxes := make(bbox.BBList, len(tiles))
	for i, t := range tiles {
		boxes[i] = bbox.NewFromRange(t, t.AddElem(foldPts))
	}

	for j := 0; j < nddims; j++ {
		boxes = mergeAlong(boxes, j)
	}
	return boxes
}

// mergeAlong coalesces boxes that are adjacent in dim j and identical in
// every other dim.
func mergeAlong(boxes bbox.BBList, j int) bbox.BBList {
	if len(boxes) < 2 {
		return boxes
	}
	nddims := boxes[0].NumDims()

	// Sort by the other dims' bounds, then by begin in dim j, so merge
	// candidates are consecutive.
	sort.Slice(boxes, func(a, b int) bool {
		for d := 0; d < nddims; d++ {
			if d == j {
				continue
			}
			if boxes[a].Begin[d] != boxes[b].Begin[d] {
				return boxes[a].Begin[d] < boxes[b].Begin[d]
			}
			if boxes[a].End[d] != boxes[b].End[d] {
				return boxes[a].End[d] < boxes[b].End[d]
			}
		}
		return boxes[a].Begin[j] < boxes[b].Begin[j]
	})

	out := make(bbox.BBList, 0, len(boxes))
	cur := boxes[0]
	for _, next := range boxes[1:] {
		if sameExceptDim(&cur, &next, j) && cur.End[j] == next.Begin[j] {
			cur.End[j] = next.End[j]
			cur.Update()
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

func sameExceptDim(a, b *bbox.BoundingBox, j int) bool {
	for d := range a.Begin {
		if d == j {
			continue
		}
		if a.Begin[d] != b.Begin[d] || a.End[d] != b.End[d] {
			return false
		}
	}
	return true
}
