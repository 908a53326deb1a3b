package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lablens/internal/models"
)

func fastConfig() Config {
	return Config{
		ExtractDuration:   5 * time.Millisecond,
		NormalizeDuration: 5 * time.Millisecond,
	}
}

func phases(states []models.WorkflowState) []models.WorkflowPhase {
	seen := make([]models.WorkflowPhase, 0, len(states))
	for _, s := range states {
		if n := len(seen); n == 0 || seen[n-1] != s.Phase {
			seen = append(seen, s.Phase)
		}
	}
	return seen
}

func TestHappyPathEmitsStatesInOrder(t *testing.T) {
	w := New(fastConfig())

	require.True(t, w.Begin())
	require.True(t, w.StartUpload())
	w.ReportProgress(40)
	w.ReportProgress(100)

	// Let the timed phases advance to Generating, then complete.
	require.Eventually(t, func() bool {
		return w.State().Phase == models.PhaseGenerating
	}, time.Second, time.Millisecond)
	require.True(t, w.Complete())

	assert.Equal(t, []models.WorkflowPhase{
		models.PhaseIdle,
		models.PhaseValidating,
		models.PhaseUploading,
		models.PhaseExtracting,
		models.PhaseNormalizing,
		models.PhaseGenerating,
		models.PhaseComplete,
	}, phases(w.History()))
}

func TestCompleteFastForwardsFeedbackPhases(t *testing.T) {
	// Long nominal durations: the response arrives before the timers.
	w := New(Config{ExtractDuration: time.Hour, NormalizeDuration: time.Hour})

	require.True(t, w.Begin())
	require.True(t, w.StartUpload())
	w.ReportProgress(100)
	require.Equal(t, models.PhaseExtracting, w.State().Phase)

	require.True(t, w.Complete())
	assert.Equal(t, []models.WorkflowPhase{
		models.PhaseIdle,
		models.PhaseValidating,
		models.PhaseUploading,
		models.PhaseExtracting,
		models.PhaseNormalizing,
		models.PhaseGenerating,
		models.PhaseComplete,
	}, phases(w.History()))
}

func TestProgressIsMonotonic(t *testing.T) {
	w := New(fastConfig())
	require.True(t, w.Begin())
	require.True(t, w.StartUpload())

	w.ReportProgress(60)
	w.ReportProgress(30)
	assert.Equal(t, 60, w.State().Progress)

	w.ReportProgress(250)
	assert.Equal(t, models.PhaseExtracting, w.State().Phase)
}

func TestValidationFailureIsTerminal(t *testing.T) {
	w := New(fastConfig())
	require.True(t, w.Begin())
	require.True(t, w.Fail("unsupported_type"))

	state := w.State()
	assert.Equal(t, models.PhaseFailed, state.Phase)
	assert.Equal(t, "unsupported_type", state.Reason)

	// Failed absorbs everything until an explicit new cycle.
	assert.False(t, w.StartUpload())
	assert.False(t, w.Complete())
	assert.False(t, w.Fail("again"))

	require.True(t, w.Reset())
	assert.Equal(t, models.PhaseIdle, w.State().Phase)
	assert.True(t, w.Begin())
}

func TestCompleteIsAbsorbing(t *testing.T) {
	w := New(fastConfig())
	require.True(t, w.Begin())
	require.True(t, w.StartUpload())
	w.ReportProgress(100)
	require.True(t, w.Complete())

	assert.False(t, w.Fail("late error"))
	assert.False(t, w.Begin())
	assert.Equal(t, models.PhaseComplete, w.State().Phase)
}

func TestTransportErrorMidFlight(t *testing.T) {
	w := New(Config{ExtractDuration: time.Hour, NormalizeDuration: time.Hour})
	require.True(t, w.Begin())
	require.True(t, w.StartUpload())
	w.ReportProgress(100)

	require.True(t, w.Fail("connection reset"))
	assert.Equal(t, models.PhaseFailed, w.State().Phase)
}

func TestCancelPreventsFurtherTransitions(t *testing.T) {
	w := New(fastConfig())
	require.True(t, w.Begin())
	require.True(t, w.StartUpload())
	w.ReportProgress(100)

	w.Cancel()
	before := w.State()

	// Neither late timer firings nor explicit calls may be observed.
	time.Sleep(30 * time.Millisecond)
	w.ReportProgress(100)
	assert.False(t, w.Advance(models.PhaseNormalizing))
	assert.False(t, w.Complete())
	assert.False(t, w.Fail("late"))
	assert.Equal(t, before, w.State())

	// Cancellation is idempotent.
	w.Cancel()
	assert.Equal(t, before, w.State())
}

func TestAdvanceRejectsOutOfOrderPhases(t *testing.T) {
	w := New(Config{ExtractDuration: time.Hour, NormalizeDuration: time.Hour})
	require.True(t, w.Begin())

	// Still validating: no feedback phase may be entered.
	assert.False(t, w.Advance(models.PhaseGenerating))
	assert.False(t, w.Advance(models.PhaseNormalizing))

	require.True(t, w.StartUpload())
	w.ReportProgress(100)

	// Skipping Normalizing is rejected; the next step is accepted.
	assert.False(t, w.Advance(models.PhaseGenerating))
	assert.True(t, w.Advance(models.PhaseNormalizing))
	assert.True(t, w.Advance(models.PhaseGenerating))
}
