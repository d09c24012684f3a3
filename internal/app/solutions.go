package app

import (
	"sync"

	"github.com/XeonPhiNexus/yask/internal/registry"
	"github.com/XeonPhiNexus/yask/stencils/copy1d"
	"github.com/XeonPhiNexus/yask/stencils/heat2d"
)

var registerOnce sync.Once

// registerCoreSolutions adds the solutions compiled into this binary.
// Idempotent so tests may build several Apps.
func registerCoreSolutions() {
	registerOnce.Do(func() {
		registry.Register("heat2d", heat2d.New)
		registry.Register("heat2d_flux", heat2d.NewFlux)
		registry.Register("copy1d", copy1d.New)
	})
}

// SolutionNames returns the registered solution names.
func SolutionNames() []string {
	registerCoreSolutions()
	return registry.Names()
}
