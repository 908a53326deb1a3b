// Package safety enforces the moderation policy over AI-generated text
// before it reaches a user or is escalated for review.
package safety

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lablens/internal/models"
)

// Verdict is the outcome of one policy evaluation.
type Verdict int

const (
	VerdictSafe Verdict = iota
	VerdictFlagged
)

func (v Verdict) String() string {
	if v == VerdictFlagged {
		return "flagged"
	}
	return "safe"
}

// Span marks one occurrence of a blocked term as byte offsets into the
// original text. Spans are reported per term, so a term that is a
// substring of another matched term still gets its own span.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Term  string `json:"term"`
}

// Result carries the verdict and the annotated rendering of one
// evaluation. Output is what the caller should show: Annotated, or the
// safe fallback when the policy holds flagged text for review.
type Result struct {
	Verdict   Verdict  `json:"verdict"`
	Matches   []string `json:"matches"`
	Spans     []Span   `json:"spans"`
	Annotated string   `json:"annotated"`
	Held      bool     `json:"held"`
	Output    string   `json:"output"`
}

// Flagged reports whether at least one blocked term matched.
func (r Result) Flagged() bool {
	return r.Verdict == VerdictFlagged
}

// Highlight markers wrapped around matched regions of the annotated
// text. Rendering is plain text annotation, not markup injection; view
// layers translate the markers into their own highlight element.
const (
	markerOpen  = "[["
	markerClose = "]]"
)

// Shown instead of the flagged text when the policy holds output for
// review. The true text is retained only in the audit record.
const heldFallbackMessage = "This response is being held for a safety review. Please check back shortly."

// AuditSink receives flagged-output records. The filter is the only
// component permitted to create them.
type AuditSink interface {
	Record(out *models.FlaggedOutput) error
}

// Filter evaluates generated text against the moderation policy.
type Filter struct {
	sink AuditSink
}

// NewFilter creates a filter that appends flagged outputs to sink.
// A nil sink disables auditing, which is only appropriate in tests.
func NewFilter(sink AuditSink) *Filter {
	return &Filter{sink: sink}
}

// Evaluate matches text against the policy's blocked words. The match
// is case-insensitive and substring-based; the verdict is Flagged iff
// at least one blocked word occurs, and Matches holds every distinct
// matched term. Flagging is advisory: the flagged text is still
// returned (annotated) unless the policy holds output for review.
//
// Aside from the audit append on a flagged verdict, Evaluate is a pure
// function of (text, policy): re-evaluating the same pair yields the
// same verdict, matches, and annotation.
func (f *Filter) Evaluate(context, text string, policy *models.ModerationPolicy) Result {
	spans, matches := matchBlockedWords(text, policy.BlockedWords)

	res := Result{
		Verdict:   VerdictSafe,
		Matches:   matches,
		Spans:     spans,
		Annotated: text,
		Output:    text,
	}
	if len(matches) == 0 {
		return res
	}

	res.Verdict = VerdictFlagged
	res.Annotated = annotate(text, spans)
	res.Output = res.Annotated

	if policy.HoldForReview {
		res.Held = true
		res.Output = heldFallbackMessage
	}

	f.record(context, text, matches, policy)
	return res
}

// matchBlockedWords finds every occurrence of every blocked word,
// case-insensitively. Matches preserves policy order and is distinct;
// empty and duplicate policy entries (by lowercased term) are skipped.
// Spans are sorted by start offset.
func matchBlockedWords(text string, blockedWords []string) ([]Span, []string) {
	lower := strings.ToLower(text)

	var spans []Span
	var matches []string
	seen := make(map[string]struct{}, len(blockedWords))
	for _, term := range blockedWords {
		needle := strings.ToLower(strings.TrimSpace(term))
		if needle == "" {
			continue
		}
		if _, dup := seen[needle]; dup {
			continue
		}
		seen[needle] = struct{}{}
		found := false
		for from := 0; ; {
			idx := strings.Index(lower[from:], needle)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, Span{Start: start, End: start + len(needle), Term: term})
			found = true
			from = start + len(needle)
		}
		if found {
			matches = append(matches, term)
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})
	return spans, matches
}

// annotate wraps every matched region of text in highlight markers.
// Overlapping spans (including terms contained in other matched terms)
// are merged into a single region first, so the original casing and
// surrounding text survive verbatim.
func annotate(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}

	merged := mergeSpans(spans)

	var b strings.Builder
	prev := 0
	for _, m := range merged {
		b.WriteString(text[prev:m.Start])
		b.WriteString(markerOpen)
		b.WriteString(text[m.Start:m.End])
		b.WriteString(markerClose)
		prev = m.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

type region struct {
	Start, End int
}

// mergeSpans computes the union of the span intervals. Input must be
// sorted by start offset.
func mergeSpans(spans []Span) []region {
	var merged []region
	for _, s := range spans {
		if n := len(merged); n > 0 && s.Start <= merged[n-1].End {
			if s.End > merged[n-1].End {
				merged[n-1].End = s.End
			}
			continue
		}
		merged = append(merged, region{Start: s.Start, End: s.End})
	}
	return merged
}

// record appends a flagged-output audit record with status new. Audit
// failures are logged, not surfaced: flagging never blocks the caller.
func (f *Filter) record(context, text string, matches []string, policy *models.ModerationPolicy) {
	if f.sink == nil {
		return
	}
	out := &models.FlaggedOutput{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		PolicyVersion: policy.Version,
		Context:       context,
		Text:          text,
		Matches:       matches,
		Status:        models.ReviewStatusNew,
	}
	if err := f.sink.Record(out); err != nil {
		slog.Error("Failed to record flagged output", "context", context, "error", err)
	}
}
