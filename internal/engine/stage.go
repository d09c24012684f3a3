package engine

import (
	"time"

	"github.com/XeonPhiNexus/yask/internal/bbox"
)

// Timer accumulates wall time across start/stop pairs.
type Timer struct {
	total   time.Duration
	started time.Time
	running bool
}

// Start begins a timing interval; nested starts are programmer errors.
func (tm *Timer) Start() {
	if tm.running {
		panic("timer already running")
	}
	tm.started = time.Now()
	tm.running = true
}

// Stop ends the current interval and adds it to the total.
func (tm *Timer) Stop() {
	if !tm.running {
		panic("timer not running")
	}
	tm.total += time.Since(tm.started)
	tm.running = false
}

// Elapsed returns the accumulated time.
func (tm *Timer) Elapsed() time.Duration { return tm.total }

// Stage is an ordered collection of bundles sharing one step condition.
// Bundles within a stage may be evaluated in any order consistent with
// their dependencies; the stage itself is a barrier-delimited unit.
type Stage struct {
	name    string
	ctx     *Context
	bundles []*Bundle

	// Union of the non-scratch members' bounding boxes.
	stageBB bbox.BoundingBox

	// Perf stats.
	Timer     Timer
	StepsDone int64

	// Work needed across points in this rank.
	NumReadsPerStep  int64
	NumWritesPerStep int64
	NumFpOpsPerStep  int64

	// Work across all ranks. With a single rank these mirror the
	// rank-local values.
	TotReadsPerStep  int64
	TotWritesPerStep int64
	TotFpOpsPerStep  int64
}

func newStage(ctx *Context, name string, bundles []*Bundle) *Stage {
	return &Stage{
		name:    name,
		ctx:     ctx,
		bundles: bundles,
		stageBB: bbox.New(ctx.dims.NumDomainDims()),
	}
}

// Name returns the stage's name.
func (st *Stage) Name() string { return st.name }

// Bundles returns the member bundles in evaluation order.
func (st *Stage) Bundles() []*Bundle { return st.bundles }

// BB returns the union bounding box of the non-scratch members.
func (st *Stage) BB() *bbox.BoundingBox { return &st.stageBB }

// IsInValidStep reports whether the stage runs at the given step. All
// non-scratch members share one step condition by construction, so the
// first one answers for all.
func (st *Stage) IsInValidStep(step int64) bool {
	for _, b := range st.bundles {
		if !b.IsScratch() {
			return b.IsInValidStep(step)
		}
	}
	return false
}

// AddSteps records completed steps.
func (st *Stage) AddSteps(n int64) { st.StepsDone += n }

// findStageBB refreshes the union BB from the members' bundle BBs.
func (st *Stage) findStageBB() {
	union := bbox.New(st.ctx.dims.NumDomainDims())
	for _, b := range st.bundles {
		if b.IsScratch() || b.bb.IsEmpty() {
			continue
		}
		union.MergeWith(b.bb.Begin)
		last := b.bb.End.Clone()
		for j := range last {
			last[j]--
		}
		union.MergeWith(last)
	}
	if union.Len == nil {
		union.Update()
	}
	st.stageBB = union
}

// InitWorkStats computes the per-step work counters from the members'
// valid-point counts and logs a summary of each bundle's conditions.
func (st *Stage) InitWorkStats() {
	st.NumReadsPerStep = 0
	st.NumWritesPerStep = 0
	st.NumFpOpsPerStep = 0

	for _, b := range st.bundles {
		if b.IsScratch() {
			continue
		}
		npts := b.bbList.NumPoints()
		st.NumReadsPerStep += npts * int64(b.kern.ScalarPointsRead())
		st.NumWritesPerStep += npts * int64(b.kern.ScalarPointsWritten())
		st.NumFpOpsPerStep += npts * int64(b.kern.ScalarFpOps())

		log := st.ctx.log
		log.Debug("Bundle work stats.",
			"stage", st.name, "bundle", b.Name(), "points", npts)
		if b.kern.IsSubDomainExpr() {
			log.Debug("Bundle sub-domain condition.",
				"bundle", b.Name(), "condition", b.kern.DomainDescription())
		}
		if b.kern.IsStepCondExpr() {
			log.Debug("Bundle step condition.",
				"bundle", b.Name(), "condition", b.kern.StepCondDescription())
		}
	}

	st.TotReadsPerStep = st.NumReadsPerStep
	st.TotWritesPerStep = st.NumWritesPerStep
	st.TotFpOpsPerStep = st.NumFpOpsPerStep
}
