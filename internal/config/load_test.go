package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesFull(t *testing.T) {
	src := []byte(`
solver {
  stencil           = "heat2d"
  steps             = 25
  force_scalar      = true
  thread_limit      = 4
  outer_threads     = 2
  check_step_conds  = false

  rank_domain           = [128, 64]
  micro_block_sizes     = [32, 32]
  nano_block_sizes      = [16, 8]
  pico_block_sizes      = [4, 4]
  nano_block_tile_sizes = [8, 8]

  fold = { x = 8, y = 2 }
}
`)
	s, err := LoadBytes(context.Background(), src, "test.hcl")
	require.NoError(t, err)

	assert.Equal(t, "heat2d", s.Stencil)
	assert.Equal(t, int64(25), s.Steps)
	assert.True(t, s.ForceScalar)
	assert.Equal(t, 4, s.ThreadLimit)
	assert.Equal(t, 2, s.OuterThreads)
	assert.False(t, s.CheckStepConds)
	assert.Equal(t, []int64{128, 64}, s.RankDomain)
	assert.Equal(t, []int64{32, 32}, s.MicroBlockSizes)
	assert.Equal(t, []int64{16, 8}, s.NanoBlockSizes)
	assert.Equal(t, []int64{4, 4}, s.PicoBlockSizes)
	assert.Equal(t, []int64{8, 8}, s.NanoBlockTileSizes)
	assert.Equal(t, map[string]int64{"x": 8, "y": 2}, s.FoldOverride)
}

func TestLoadBytesDefaults(t *testing.T) {
	s, err := LoadBytes(context.Background(), []byte(``), "empty.hcl")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	s, err = LoadBytes(context.Background(), []byte(`
solver {
  stencil = "copy1d"
}
`), "partial.hcl")
	require.NoError(t, err)
	assert.Equal(t, "copy1d", s.Stencil)
	assert.Equal(t, int64(10), s.Steps, "default steps")
	assert.True(t, s.CheckStepConds, "default check_step_conds")
	assert.Nil(t, s.FoldOverride)
}

func TestLoadBytesErrors(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		_, err := LoadBytes(context.Background(), []byte(`solver {`), "bad.hcl")
		assert.Error(t, err)
	})

	t.Run("invalid steps", func(t *testing.T) {
		_, err := LoadBytes(context.Background(), []byte(`
solver {
  stencil = "heat2d"
  steps   = 0
}
`), "bad.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "steps")
	})

	t.Run("bad fold type", func(t *testing.T) {
		_, err := LoadBytes(context.Background(), []byte(`
solver {
  stencil = "heat2d"
  fold    = [4, 4]
}
`), "bad.hcl")
		require.Error(t, err)
	})

	t.Run("bad fold value", func(t *testing.T) {
		_, err := LoadBytes(context.Background(), []byte(`
solver {
  stencil = "heat2d"
  fold    = { x = 0 }
}
`), "bad.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fold")
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := LoadBytes(context.Background(), []byte(`
solver {
  stencil = "heat2d"
  bogus   = 1
}
`), "bad.hcl")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	s.Stencil = ""
	assert.Error(t, s.Validate())

	s = Default()
	s.ThreadLimit = -1
	assert.Error(t, s.Validate())

	s = Default()
	s.RankDomain = []int64{16, 0}
	assert.Error(t, s.Validate())

	s = Default()
	s.MicroBlockSizes = []int64{-4, 4}
	assert.Error(t, s.Validate())
}
