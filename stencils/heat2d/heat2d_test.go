package heat2d

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XeonPhiNexus/yask/internal/config"
	"github.com/XeonPhiNexus/yask/internal/engine"
	"github.com/XeonPhiNexus/yask/internal/indices"
)

// seedU writes a deterministic pattern into step 0 of u.
func seedU(c *engine.Context) {
	u := c.Core().Var("u")
	bb := c.RankBB()
	for x := bb.Begin[0]; x < bb.End[0]; x++ {
		for y := bb.Begin[1]; y < bb.End[1]; y++ {
			u.WriteElem(0, indices.Of(x, y), float64((x*31+y*17)%97)*0.01)
		}
	}
}

// runSolution builds a context, seeds it, and runs the given steps.
func runSolution(t *testing.T, sol engine.Solution, cfg *config.Settings, steps int64) *engine.Context {
	t.Helper()
	c, err := engine.NewContext(context.Background(), sol, cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	seedU(c)
	require.NoError(t, c.Run(context.Background(), steps))
	return c
}

func baseSettings() *config.Settings {
	cfg := config.Default()
	// Ragged on purpose: the domain is not a multiple of the fold or the
	// cluster, and the blocks do not divide the domain evenly.
	cfg.RankDomain = []int64{37, 22}
	cfg.MicroBlockSizes = []int64{16, 8}
	cfg.OuterThreads = 2
	return cfg
}

func TestOptimizedMatchesReference(t *testing.T) {
	const steps = 3

	opt := runSolution(t, New(), baseSettings(), steps)

	ref := baseSettings()
	ref.ForceScalar = true
	dbg := runSolution(t, New(), ref, steps)

	uo := opt.Core().Var("u")
	ur := dbg.Core().Var("u")
	bb := opt.RankBB()
	for x := bb.Begin[0]; x < bb.End[0]; x++ {
		for y := bb.Begin[1]; y < bb.End[1]; y++ {
			pt := indices.Of(x, y)
			require.Equal(t, ur.ReadElem(steps, pt), uo.ReadElem(steps, pt),
				"point (%d, %d)", x, y)
		}
	}
}

func TestFluxMatchesDirect(t *testing.T) {
	const steps = 3

	direct := runSolution(t, New(), baseSettings(), steps)
	flux := runSolution(t, NewFlux(), baseSettings(), steps)

	ud := direct.Core().Var("u")
	uf := flux.Core().Var("u")
	bb := direct.RankBB()
	for x := bb.Begin[0]; x < bb.End[0]; x++ {
		for y := bb.Begin[1]; y < bb.End[1]; y++ {
			pt := indices.Of(x, y)
			// The flux form associates the laplacian differently, so
			// allow for rounding.
			assert.InDelta(t, ud.ReadElem(steps, pt), uf.ReadElem(steps, pt), 1e-9,
				"point (%d, %d)", x, y)
		}
	}
}

func TestFluxOptimizedMatchesFluxReference(t *testing.T) {
	const steps = 2

	opt := runSolution(t, NewFlux(), baseSettings(), steps)

	ref := baseSettings()
	ref.ForceScalar = true
	dbg := runSolution(t, NewFlux(), ref, steps)

	uo := opt.Core().Var("u")
	ur := dbg.Core().Var("u")
	bb := opt.RankBB()
	for x := bb.Begin[0]; x < bb.End[0]; x++ {
		for y := bb.Begin[1]; y < bb.End[1]; y++ {
			pt := indices.Of(x, y)
			require.Equal(t, ur.ReadElem(steps, pt), uo.ReadElem(steps, pt),
				"point (%d, %d)", x, y)
		}
	}
}

func TestFoldOverride(t *testing.T) {
	cfg := baseSettings()
	cfg.FoldOverride = map[string]int64{"x": 8, "y": 2}

	c := runSolution(t, New(), cfg, 1)
	assert.Equal(t, indices.Of(8, 2), c.Dims().FoldPts)

	cfg = baseSettings()
	cfg.FoldOverride = map[string]int64{"z": 4}
	_, err := engine.NewContext(context.Background(), New(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dim")
}

func TestDirtyTrackingAfterRun(t *testing.T) {
	c := runSolution(t, New(), baseSettings(), 2)
	u := c.Core().Var("u")

	step, ok := u.LastValidStep()
	require.True(t, ok)
	assert.Equal(t, int64(2), step)
}
