// Package workflow drives one file-to-report analysis attempt as a
// cancellable, timed state machine: Idle → Validating → Uploading →
// Extracting → Normalizing → Generating → Complete, with Failed as the
// error terminal.
package workflow

import (
	"sync"
	"time"

	"lablens/internal/models"
)

// Config holds the nominal durations of the timed feedback phases.
// The phases only pace what the user sees; the underlying request runs
// concurrently and is never blocked by them.
type Config struct {
	ExtractDuration   time.Duration
	NormalizeDuration time.Duration
}

// DefaultConfig mirrors the stepper timings of the original product.
func DefaultConfig() Config {
	return Config{
		ExtractDuration:   2 * time.Second,
		NormalizeDuration: 2500 * time.Millisecond,
	}
}

// Workflow is the state machine for a single analysis attempt.
// Transitions are strictly sequential; Complete and Failed absorb
// everything until Reset. All methods are safe for concurrent use.
type Workflow struct {
	cfg Config

	mu        sync.Mutex
	state     models.WorkflowState
	history   []models.WorkflowState
	cancelled bool
	timers    []*time.Timer
}

// New creates a workflow in the Idle state.
func New(cfg Config) *Workflow {
	w := &Workflow{cfg: cfg}
	w.state = models.WorkflowState{Phase: models.PhaseIdle}
	w.history = append(w.history, w.state)
	return w
}

// State returns the current observable state.
func (w *Workflow) State() models.WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// History returns every state observed so far, in transition order.
func (w *Workflow) History() []models.WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.WorkflowState, len(w.history))
	copy(out, w.history)
	return out
}

// Begin moves Idle → Validating on file submission.
func (w *Workflow) Begin() bool {
	return w.transition(models.WorkflowState{Phase: models.PhaseValidating})
}

// StartUpload moves Validating → Uploading(0) after validation passed.
func (w *Workflow) StartUpload() bool {
	return w.transition(models.WorkflowState{Phase: models.PhaseUploading, Progress: 0})
}

// ReportProgress advances the upload progress. Progress is monotonic;
// a lower value than the current one is ignored. Reaching 100 moves the
// workflow to Extracting and starts the timed feedback phases.
func (w *Workflow) ReportProgress(progress int) {
	w.mu.Lock()
	if w.cancelled || w.state.Phase != models.PhaseUploading {
		w.mu.Unlock()
		return
	}
	if progress > 100 {
		progress = 100
	}
	if progress <= w.state.Progress {
		w.mu.Unlock()
		return
	}
	w.apply(models.WorkflowState{Phase: models.PhaseUploading, Progress: progress})
	done := progress >= 100
	w.mu.Unlock()

	if done {
		if w.transition(models.WorkflowState{Phase: models.PhaseExtracting}) {
			w.scheduleAfter(w.cfg.ExtractDuration, models.PhaseNormalizing)
		}
	}
}

// Advance applies a server-sent phase event. Only the forward
// Extracting → Normalizing → Generating steps are accepted; anything
// out of order is ignored.
func (w *Workflow) Advance(phase models.WorkflowPhase) bool {
	switch phase {
	case models.PhaseNormalizing, models.PhaseGenerating:
		ok := w.transition(models.WorkflowState{Phase: phase})
		if ok && phase == models.PhaseNormalizing {
			w.scheduleAfter(w.cfg.NormalizeDuration, models.PhaseGenerating)
		}
		return ok
	default:
		return false
	}
}

// Complete records the validated external response. The remaining
// feedback phases are fast-forwarded so the observed order never skips
// a defined state.
func (w *Workflow) Complete() bool {
	w.mu.Lock()
	if w.cancelled || w.state.Phase.Terminal() {
		w.mu.Unlock()
		return false
	}
	for _, phase := range []models.WorkflowPhase{models.PhaseExtracting, models.PhaseNormalizing, models.PhaseGenerating, models.PhaseComplete} {
		if legal(w.state.Phase, phase) {
			w.apply(models.WorkflowState{Phase: phase})
		}
	}
	ok := w.state.Phase == models.PhaseComplete
	if ok {
		w.stopTimers()
	}
	w.mu.Unlock()
	return ok
}

// Fail moves any non-terminal state to Failed(reason). The failure is
// terminal for this attempt; there is no automatic retry.
func (w *Workflow) Fail(reason string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || w.state.Phase.Terminal() || w.state.Phase == models.PhaseIdle {
		return false
	}
	w.apply(models.WorkflowState{Phase: models.PhaseFailed, Reason: reason})
	w.stopTimers()
	return true
}

// Cancel abandons the attempt: all pending phase timers are stopped
// and no further state transition can be observed. Cancelling is
// idempotent.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return
	}
	w.cancelled = true
	w.stopTimers()
}

// Reset returns a terminal workflow to Idle so a new submission can
// start a fresh Idle → Validating cycle.
func (w *Workflow) Reset() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Phase.Terminal() && !w.cancelled {
		return false
	}
	w.cancelled = false
	w.stopTimers()
	w.apply(models.WorkflowState{Phase: models.PhaseIdle})
	return true
}

// transition applies a single legal state change.
func (w *Workflow) transition(next models.WorkflowState) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || !legal(w.state.Phase, next.Phase) {
		return false
	}
	w.apply(next)
	return true
}

// apply records the new state. Callers hold the mutex.
func (w *Workflow) apply(next models.WorkflowState) {
	w.state = next
	w.history = append(w.history, next)
}

// scheduleAfter arms a feedback-phase timer. The timer body re-checks
// legality under the lock, so a late firing after cancellation or
// completion changes nothing.
func (w *Workflow) scheduleAfter(d time.Duration, phase models.WorkflowPhase) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || w.state.Phase.Terminal() {
		return
	}
	t := time.AfterFunc(d, func() {
		w.Advance(phase)
	})
	w.timers = append(w.timers, t)
}

// stopTimers stops all pending phase timers. Callers hold the mutex.
func (w *Workflow) stopTimers() {
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
}

// legal encodes the allowed transitions between phases.
func legal(from, to models.WorkflowPhase) bool {
	switch from {
	case models.PhaseIdle:
		return to == models.PhaseValidating
	case models.PhaseValidating:
		return to == models.PhaseUploading || to == models.PhaseFailed
	case models.PhaseUploading:
		return to == models.PhaseExtracting || to == models.PhaseFailed
	case models.PhaseExtracting:
		return to == models.PhaseNormalizing || to == models.PhaseFailed
	case models.PhaseNormalizing:
		return to == models.PhaseGenerating || to == models.PhaseFailed
	case models.PhaseGenerating:
		return to == models.PhaseComplete || to == models.PhaseFailed
	default:
		return false
	}
}
