package app

import (
	"context"
	"fmt"

	"github.com/XeonPhiNexus/yask/internal/ctxlog"
	"github.com/XeonPhiNexus/yask/internal/engine"
)

// Run builds the engine context, executes the configured steps, and
// prints a per-stage summary.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	ec, err := engine.NewContext(ctx, a.solution, a.settings)
	if err != nil {
		return err
	}
	defer ec.Close()

	a.logger.Info("Starting run.",
		"stencil", a.settings.Stencil,
		"steps", a.settings.Steps,
		"forceScalar", a.settings.ForceScalar)

	if err := ec.Run(ctx, a.settings.Steps); err != nil {
		return err
	}

	for _, st := range ec.Stages() {
		a.logger.Info("Stage finished.",
			"stage", st.Name(),
			"stepsDone", st.StepsDone,
			"elapsed", st.Timer.Elapsed(),
			"readsPerStep", st.NumReadsPerStep,
			"writesPerStep", st.NumWritesPerStep,
			"fpOpsPerStep", st.NumFpOpsPerStep)
		fmt.Fprintf(a.outW, "stage %-16s steps=%-5d elapsed=%-14s fp-ops/step=%d\n",
			st.Name(), st.StepsDone, st.Timer.Elapsed(), st.NumFpOpsPerStep)
	}
	return nil
}
