package indices

import "fmt"

// ScanIndices carries the bounds for one level of tiled iteration.
//
// Begin and End bound the entire sweep. Start and Stop bound the tile
// currently being visited. Stride is the step per iteration, TileSize
// subdivides the sweep, and Align with AlignOfs defines the grid on which
// Start is rounded when a tile is entered.
type ScanIndices struct {
	Begin Indices
	End   Indices

	Start Indices
	Stop  Indices

	Stride   Indices
	TileSize Indices

	Align    Indices
	AlignOfs Indices
}

// NewScan returns a ScanIndices over ndims dimensions covering the empty
// range with unit strides and alignment.
func NewScan(ndims int) ScanIndices {
	return ScanIndices{
		Begin:    New(ndims),
		End:      New(ndims),
		Start:    New(ndims),
		Stop:     New(ndims),
		Stride:   NewConst(ndims, 1),
		TileSize: New(ndims),
		Align:    NewConst(ndims, 1),
		AlignOfs: New(ndims),
	}
}

// NumDims returns the number of dimensions scanned.
func (si ScanIndices) NumDims() int {
	return len(si.Begin)
}

// Clone returns a deep copy.
func (si ScanIndices) Clone() ScanIndices {
	return ScanIndices{
		Begin:    si.Begin.Clone(),
		End:      si.End.Clone(),
		Start:    si.Start.Clone(),
		Stop:     si.Stop.Clone(),
		Stride:   si.Stride.Clone(),
		TileSize: si.TileSize.Clone(),
		Align:    si.Align.Clone(),
		AlignOfs: si.AlignOfs.Clone(),
	}
}

// CreateInner seeds the traversal of the next-lower tiling level: the
// child's whole sweep is the parent's current tile. Stride and tile size
// are reset to the full range; alignment is inherited.
func (si ScanIndices) CreateInner() ScanIndices {
	inner := ScanIndices{
		Begin:    si.Start.Clone(),
		End:      si.Stop.Clone(),
		Start:    si.Start.Clone(),
		Stop:     si.Stop.Clone(),
		Align:    si.Align.Clone(),
		AlignOfs: si.AlignOfs.Clone(),
	}
	rng := inner.End.SubElem(inner.Begin)
	inner.Stride = rng.Clone()
	inner.TileSize = rng.Clone()
	for i := range inner.Stride {
		if inner.Stride[i] < 1 {
			inner.Stride[i] = 1
		}
	}
	return inner
}

// SetStridesFromInner sets per-dim strides from the given inner-block
// sizes, clamped to at least minStride and to the sweep length.
func (si *ScanIndices) SetStridesFromInner(sizes Indices, minStride int64) {
	for i := range si.Stride {
		s := sizes[i]
		if s < minStride {
			s = minStride
		}
		rng := si.End[i] - si.Begin[i]
		if rng > 0 && s > rng {
			s = rng
		}
		si.Stride[i] = s
	}
}

// RangeStr renders the sweep bounds for log messages. When tile is true,
// the current tile bounds are shown instead.
func (si ScanIndices) RangeStr(tile bool) string {
	if tile {
		return fmt.Sprintf("[%s ... %s)", si.Start, si.Stop)
	}
	return fmt.Sprintf("[%s ... %s)", si.Begin, si.End)
}

// VisitTiles walks the sweep [Begin, End) in Stride-sized steps, setting
// Start/Stop on a copy for each tile and invoking fn with it. Traversal is
// outer-first (last dim fastest). fn returning false stops the walk.
func (si ScanIndices) VisitTiles(fn func(tile ScanIndices) bool) {
	n := si.NumDims()
	cur := si.Begin.Clone()

	// An empty range in any dim means no tiles at all.
	for i := 0; i < n; i++ {
		if si.End[i] <= si.Begin[i] {
			return
		}
	}

	for {
		tile := si.Clone()
		tile.Start = cur.Clone()
		tile.Stop = cur.Clone()
		for i := 0; i < n; i++ {
			stop := cur[i] + si.Stride[i]
			if stop > si.End[i] {
				stop = si.End[i]
			}
			tile.Stop[i] = stop
		}
		if !fn(tile) {
			return
		}

		// Advance, last dim fastest.
		d := n - 1
		for ; d >= 0; d-- {
			cur[d] += si.Stride[d]
			if cur[d] < si.End[d] {
				break
			}
			cur[d] = si.Begin[d]
		}
		if d < 0 {
			return
		}
	}
}
