package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XeonPhiNexus/yask/internal/engine"
)

func TestRegisterAndLookup(t *testing.T) {
	called := false
	Register("test_sol", func() engine.Solution {
		called = true
		return nil
	})

	f, err := Lookup("test_sol")
	require.NoError(t, err)
	f()
	assert.True(t, called)

	assert.Contains(t, Names(), "test_sol")
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("no_such_stencil")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_stencil")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dup_sol", func() engine.Solution { return nil })
	assert.Panics(t, func() {
		Register("dup_sol", func() engine.Solution { return nil })
	})
}
