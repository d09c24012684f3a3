package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XeonPhiNexus/yask/internal/indices"
)

func TestFindBoundingBoxesNoCondition(t *testing.T) {
	k := newFakeKernel("b", nil)
	c, sol := newTestContext(t, indices.Of(4, 4), indices.Of(1, 1), []int64{32, 16}, nil, k)
	b := sol.bundles["b"]

	assert.Equal(t, c.RankBB().Begin, b.BB().Begin)
	assert.Equal(t, c.RankBB().End, b.BB().End)
	require.Len(t, b.BBs(), 1)
	assert.Equal(t, b.BB().NumPoints, b.BBs().NumPoints())
}

func TestFindBoundingBoxesSplitDomain(t *testing.T) {
	// Valid everywhere except a band in the middle of x: the cover must
	// come back as two disjoint boxes around the band.
	k := newFakeKernel("b", nil)
	k.subDomain = func(pt indices.Indices) bool {
		return pt[1] < 16 || pt[1] >= 32
	}
	_, sol := newTestContext(t, indices.Of(4, 4), indices.Of(1, 1), []int64{48, 16}, nil, k)
	b := sol.bundles["b"]

	assert.Equal(t, indices.Of(0, 0), b.BB().Begin)
	assert.Equal(t, indices.Of(48, 16), b.BB().End)

	bbs := b.BBs()
	require.Len(t, bbs, 2)
	assert.Equal(t, int64(2*16*16), bbs.NumPoints())

	// Disjoint and contained in the overall BB.
	for i := range bbs {
		assert.True(t, b.BB().Contains(&bbs[i]))
		for j := i + 1; j < len(bbs); j++ {
			inter := bbs[i].Intersect(&bbs[j])
			assert.True(t, inter.IsEmpty(), "boxes %d and %d overlap", i, j)
		}
	}
}

func TestFindBoundingBoxesLShapedCover(t *testing.T) {
	// An L-shaped region: runs extrude along x first, then merge along y.
	// Valid: the full lower half plus the left quarter of the upper half.
	k := newFakeKernel("b", nil)
	k.subDomain = func(pt indices.Indices) bool {
		return pt[2] < 8 || pt[1] < 8
	}
	_, sol := newTestContext(t, indices.Of(4, 4), indices.Of(1, 1), []int64{32, 16}, nil, k)
	b := sol.bundles["b"]

	bbs := b.BBs()
	assert.Equal(t, int64(32*8+8*8), bbs.NumPoints())
	for i := range bbs {
		for j := i + 1; j < len(bbs); j++ {
			inter := bbs[i].Intersect(&bbs[j])
			assert.True(t, inter.IsEmpty())
		}
	}

	// Every valid point is covered.
	covered := func(pt indices.Indices) bool {
		for i := range bbs {
			if bbs[i].ContainsPoint(pt) {
				return true
			}
		}
		return false
	}
	for x := int64(0); x < 32; x++ {
		for y := int64(0); y < 16; y++ {
			want := y < 8 || x < 8
			assert.Equal(t, want, covered(indices.Of(x, y)), "point (%d, %d)", x, y)
		}
	}
}

func TestFindBoundingBoxesEmptyDomain(t *testing.T) {
	k := newFakeKernel("b", nil)
	k.subDomain = func(pt indices.Indices) bool { return false }
	_, sol := newTestContext(t, indices.Of(4, 4), indices.Of(1, 1), []int64{16, 16}, nil, k)
	b := sol.bundles["b"]

	assert.True(t, b.BB().IsEmpty())
	assert.Empty(t, b.BBs())
}

func TestCopyBoundingBoxes(t *testing.T) {
	a := newFakeKernel("a", nil)
	a.subDomain = func(pt indices.Indices) bool { return pt[1] < 8 }
	b := newFakeKernel("b", nil)
	b.subDomain = a.subDomain
	_, sol := newTestContext(t, indices.Of(4, 4), indices.Of(1, 1), []int64{16, 16}, nil, a, b)

	ba, bb := sol.bundles["a"], sol.bundles["b"]
	bb.CopyBoundingBoxes(ba)

	assert.Equal(t, ba.BB().Begin, bb.BB().Begin)
	assert.Equal(t, ba.BB().End, bb.BB().End)
	require.Equal(t, len(ba.BBs()), len(bb.BBs()))

	// Deep copy: mutating the copy leaves the source alone.
	bb.BB().Begin[0] = -99
	assert.Equal(t, int64(0), ba.BB().Begin[0])
}
