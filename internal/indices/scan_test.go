package indices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInner(t *testing.T) {
	outer := NewScan(2)
	outer.Begin = Of(0, 0)
	outer.End = Of(100, 100)
	outer.Start = Of(32, 48)
	outer.Stop = Of(64, 80)
	outer.Align = Of(4, 4)
	outer.AlignOfs = Of(1, 2)

	inner := outer.CreateInner()
	assert.Equal(t, Of(32, 48), inner.Begin)
	assert.Equal(t, Of(64, 80), inner.End)
	assert.Equal(t, Of(32, 48), inner.Start)
	assert.Equal(t, Of(64, 80), inner.Stop)
	assert.Equal(t, Of(32, 32), inner.Stride, "stride defaults to full range")
	assert.Equal(t, Of(4, 4), inner.Align)
	assert.Equal(t, Of(1, 2), inner.AlignOfs)

	// Mutating the child must not touch the parent.
	inner.Begin[0] = -1
	assert.Equal(t, int64(32), outer.Start[0])
}

func TestSetStridesFromInner(t *testing.T) {
	si := NewScan(2)
	si.Begin = Of(0, 0)
	si.End = Of(10, 100)
	si.Start = si.Begin.Clone()
	si.Stop = si.End.Clone()

	si.SetStridesFromInner(Of(0, 24), 1)
	assert.Equal(t, Of(1, 24), si.Stride, "zero size clamps to minStride")

	si.SetStridesFromInner(Of(64, 64), 1)
	assert.Equal(t, Of(10, 64), si.Stride, "stride clamps to sweep length")
}

func TestVisitTiles(t *testing.T) {
	t.Run("covers range exactly once", func(t *testing.T) {
		si := NewScan(2)
		si.Begin = Of(0, 0)
		si.End = Of(10, 7)
		si.Stride = Of(4, 3)

		visited := map[[2]int64]int{}
		si.VisitTiles(func(tile ScanIndices) bool {
			for x := tile.Start[0]; x < tile.Stop[0]; x++ {
				for y := tile.Start[1]; y < tile.Stop[1]; y++ {
					visited[[2]int64{x, y}]++
				}
			}
			return true
		})

		require.Len(t, visited, 70)
		for pt, n := range visited {
			assert.Equal(t, 1, n, "point %v visited %d times", pt, n)
		}
	})

	t.Run("ragged final tile is clipped", func(t *testing.T) {
		si := NewScan(1)
		si.Begin = Of(0)
		si.End = Of(10)
		si.Stride = Of(4)

		var stops []int64
		si.VisitTiles(func(tile ScanIndices) bool {
			stops = append(stops, tile.Stop[0])
			return true
		})
		assert.Equal(t, []int64{4, 8, 10}, stops)
	})

	t.Run("empty range yields no tiles", func(t *testing.T) {
		si := NewScan(2)
		si.Begin = Of(0, 5)
		si.End = Of(10, 5)
		si.Stride = Of(4, 4)

		calls := 0
		si.VisitTiles(func(tile ScanIndices) bool {
			calls++
			return true
		})
		assert.Zero(t, calls)
	})
}
