package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lablens/internal/models"
)

type memorySink struct {
	records []*models.FlaggedOutput
	err     error
}

func (s *memorySink) Record(out *models.FlaggedOutput) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, out)
	return nil
}

func testPolicy(blocked ...string) *models.ModerationPolicy {
	return &models.ModerationPolicy{
		Version:      3,
		Disclaimer:   "This is not a medical diagnosis. Consult a doctor.",
		BlockedWords: blocked,
	}
}

func TestEvaluateSafe(t *testing.T) {
	f := NewFilter(&memorySink{})
	res := f.Evaluate("report:r1", "Your TSH levels are within normal range.", testPolicy("prescribe", "cure"))

	assert.Equal(t, VerdictSafe, res.Verdict)
	assert.False(t, res.Flagged())
	assert.Empty(t, res.Matches)
	assert.Equal(t, "Your TSH levels are within normal range.", res.Annotated)
	assert.Equal(t, res.Annotated, res.Output)
}

func TestEvaluateFlaggedCollectsAllDistinctMatches(t *testing.T) {
	sink := &memorySink{}
	f := NewFilter(sink)

	res := f.Evaluate("chat:s1", "I prescribe lifestyle changes to cure your condition.", testPolicy("prescribe", "cure", "diagnose"))

	assert.Equal(t, VerdictFlagged, res.Verdict)
	assert.Equal(t, []string{"prescribe", "cure"}, res.Matches)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, models.ReviewStatusNew, rec.Status)
	assert.Equal(t, 3, rec.PolicyVersion)
	assert.Equal(t, "chat:s1", rec.Context)
	assert.Equal(t, []string{"prescribe", "cure"}, rec.Matches)
	assert.Equal(t, "I prescribe lifestyle changes to cure your condition.", rec.Text)
	assert.NotEmpty(t, rec.ID)
}

func TestEvaluateMatchIsCaseInsensitive(t *testing.T) {
	f := NewFilter(nil)
	res := f.Evaluate("", "We will PRESCRIBE medication.", testPolicy("prescribe"))

	assert.True(t, res.Flagged())
	assert.Equal(t, []string{"prescribe"}, res.Matches)
	// Original casing survives in the annotation.
	assert.Equal(t, "We will [[PRESCRIBE]] medication.", res.Annotated)
}

func TestEvaluateAnnotatesEveryOccurrence(t *testing.T) {
	f := NewFilter(nil)
	res := f.Evaluate("", "cure today, cure tomorrow", testPolicy("cure"))

	assert.Equal(t, "[[cure]] today, [[cure]] tomorrow", res.Annotated)
	assert.Len(t, res.Spans, 2)
}

func TestEvaluateOverlappingTermsDoNotCorruptText(t *testing.T) {
	f := NewFilter(nil)
	// "cure" is a substring of "cures"; both are policy terms.
	res := f.Evaluate("", "Nothing cures this.", testPolicy("cures", "cure"))

	assert.Equal(t, []string{"cures", "cure"}, res.Matches)
	assert.Equal(t, "Nothing [[cures]] this.", res.Annotated)

	// Both terms still report their own spans.
	require.Len(t, res.Spans, 2)
	assert.Equal(t, "cures", res.Spans[0].Term)
	assert.Equal(t, "cure", res.Spans[1].Term)
	assert.Equal(t, res.Spans[0].Start, res.Spans[1].Start)
}

func TestEvaluateIdempotent(t *testing.T) {
	f := NewFilter(nil)
	policy := testPolicy("prescribe", "cure")
	text := "I prescribe rest to cure fatigue."

	first := f.Evaluate("", text, policy)
	second := f.Evaluate("", text, policy)

	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Equal(t, first.Matches, second.Matches)
	assert.Equal(t, first.Annotated, second.Annotated)
}

func TestEvaluateHoldForReview(t *testing.T) {
	sink := &memorySink{}
	f := NewFilter(sink)
	policy := testPolicy("diagnose")
	policy.HoldForReview = true

	res := f.Evaluate("report:r9", "See a doctor to diagnose heart disease.", policy)

	assert.True(t, res.Flagged())
	assert.True(t, res.Held)
	assert.Equal(t, heldFallbackMessage, res.Output)
	// The true text is retained only in the audit record.
	require.Len(t, sink.records, 1)
	assert.Equal(t, "See a doctor to diagnose heart disease.", sink.records[0].Text)
}

func TestEvaluateAllowedPhrasesDoNotAffectVerdict(t *testing.T) {
	f := NewFilter(nil)
	policy := testPolicy()
	policy.AllowedPhrases = []string{"consult your doctor"}

	res := f.Evaluate("", "Please consult your doctor.", policy)
	assert.Equal(t, VerdictSafe, res.Verdict)

	policy.BlockedWords = []string{"consult"}
	res = f.Evaluate("", "Please consult your doctor.", policy)
	assert.Equal(t, VerdictFlagged, res.Verdict)
}

func TestEvaluateDuplicatePolicyEntriesMatchOnce(t *testing.T) {
	f := NewFilter(nil)
	res := f.Evaluate("", "No cure here.", testPolicy("cure", "Cure", "cure"))

	assert.True(t, res.Flagged())
	assert.Equal(t, []string{"cure"}, res.Matches)
	require.Len(t, res.Spans, 1)
	assert.Equal(t, "No [[cure]] here.", res.Annotated)
}

func TestEvaluateIgnoresEmptyBlockedEntries(t *testing.T) {
	f := NewFilter(nil)
	res := f.Evaluate("", "anything at all", testPolicy("", "  "))

	assert.Equal(t, VerdictSafe, res.Verdict)
	assert.Empty(t, res.Matches)
}
