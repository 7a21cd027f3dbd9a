// -------------------------------------------------------------------------------
// Saga Executor - Ordered Steps with Reverse Compensation
//
// Project: Streamlo
//
// Runs multi-document mutations as an ordered list of forward/compensate step
// pairs, standing in for the multi-document transactions the store does not
// provide. On a forward failure at step k the executor runs the compensations
// for steps 1..k-1 in strict reverse order and reports the original failure.
// A compensation failure never changes the primary outcome; it is surfaced as
// a secondary orphaned-resource condition.
// -------------------------------------------------------------------------------

package saga

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

// -------------------------------------------------------------------------
// STEPS
// -------------------------------------------------------------------------

// Step pairs a forward action with the compensating action that undoes it.
// Compensate may be nil when the forward action leaves nothing to undo.
type Step struct {
	Name       string
	Forward    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// -------------------------------------------------------------------------
// OUTCOME
// -------------------------------------------------------------------------

// State is the machine-checkable discriminant of a finished saga.
type State int

const (
	// StateOK means every forward step committed.
	StateOK State = iota

	// StateCompensated means a forward step failed and every prior step was
	// rolled back: nothing user-visible happened.
	StateCompensated

	// StateOrphaned means a forward step failed and at least one compensation
	// also failed, leaving orphaned resources behind.
	StateOrphaned
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateCompensated:
		return "compensated"
	case StateOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// CompensationFailure records a rollback write that itself failed, leaving an
// orphaned resource for out-of-band cleanup.
type CompensationFailure struct {
	Step string
	Err  error
}

func (c CompensationFailure) Error() string {
	return fmt.Sprintf("compensation %q failed: %v", c.Step, c.Err)
}

func (c CompensationFailure) Unwrap() error { return c.Err }

// Result reports how a saga finished. Err is always the original forward-step
// error, never a compensation error.
type Result struct {
	Saga       string
	State      State
	FailedStep string
	Err        error
	Orphans    []CompensationFailure
}

// OK reports whether every forward step committed.
func (r *Result) OK() bool { return r.State == StateOK }

// -------------------------------------------------------------------------
// EXECUTOR
// -------------------------------------------------------------------------

// Executor runs sagas sequentially within one request. Steps are never retried
// here; retry policy belongs to the caller. A caller-supplied deadline is
// checked between steps, not mid-step.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor that logs compensation activity to logger.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Run executes steps in order. On success all forward steps have committed as
// durably as the underlying single-document writes. On failure the returned
// Result distinguishes full rollback (StateCompensated) from partial rollback
// with orphans (StateOrphaned).
func (e *Executor) Run(ctx context.Context, name string, steps []Step) *Result {
	res := &Result{Saga: name, State: StateOK}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			e.compensate(ctx, name, steps[:i], res)
			res.FailedStep = step.Name
			res.Err = err
			e.finish(res)
			return res
		}

		if err := step.Forward(ctx); err != nil {
			e.logger.Warn("saga step failed",
				"saga", name, "step", step.Name, "error", err)
			e.compensate(ctx, name, steps[:i], res)
			res.FailedStep = step.Name
			res.Err = err
			e.finish(res)
			return res
		}
	}

	e.finish(res)
	return res
}

// compensate undoes committed steps in strict reverse order, collecting any
// rollback failures as orphans. Compensation uses a context detached from the
// caller's cancellation so a timed-out request still gets its rollback.
func (e *Executor) compensate(ctx context.Context, name string, committed []Step, res *Result) {
	res.State = StateCompensated

	for i := len(committed) - 1; i >= 0; i-- {
		step := committed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(context.WithoutCancel(ctx)); err != nil {
			e.logger.Error("saga compensation failed, resource orphaned",
				"saga", name, "step", step.Name, "error", err)
			telemetry.SagaOrphans.WithLabelValues(name, step.Name).Inc()
			res.Orphans = append(res.Orphans, CompensationFailure{Step: step.Name, Err: err})
			res.State = StateOrphaned
		}
	}
}

func (e *Executor) finish(res *Result) {
	telemetry.SagaRuns.WithLabelValues(res.Saga, res.State.String()).Inc()
}
