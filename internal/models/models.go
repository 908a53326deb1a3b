package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity is the ordinal classification derived from free-text
// status and risk strings. Normal < Borderline < Alert.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityBorderline
	SeverityAlert
)

// String returns the wire form of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityAlert:
		return "alert"
	case SeverityBorderline:
		return "borderline"
	default:
		return "normal"
	}
}

// MarshalJSON encodes the severity as its wire form.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its wire form. Unknown values
// decode to normal, consistent with classification being total.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSeverity(raw)
	return nil
}

// ParseSeverity converts a wire form back to a Severity. Unknown values
// parse as normal.
func ParseSeverity(raw string) Severity {
	switch raw {
	case "alert":
		return SeverityAlert
	case "borderline":
		return SeverityBorderline
	default:
		return SeverityNormal
	}
}

// TestResult represents a single extracted lab value within a report
type TestResult struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Unit           string   `json:"unit"`
	ReferenceRange string   `json:"referenceRange"`
	Status         string   `json:"status"`
	Severity       Severity `json:"severity"`
}

// RiskSummary represents the overall risk assessment of a report
type RiskSummary struct {
	OverallRisk         string   `json:"overallRisk"`
	BannerMessage       string   `json:"bannerMessage,omitempty"`
	SeverityBannerColor string   `json:"severityBannerColor,omitempty"`
	Severity            Severity `json:"severity"`
}

// Report is the normalized representation of one analyzed lab report
type Report struct {
	ID                    string       `json:"id" db:"id"`
	CreatedAt             time.Time    `json:"createdAt" db:"created_at"`
	Filename              string       `json:"filename,omitempty" db:"filename"`
	Tests                 []TestResult `json:"tests"`
	RiskSummary           RiskSummary  `json:"riskSummary"`
	Summary               string       `json:"summary"`
	Lifestyle             []string     `json:"lifestyle"`
	RecommendedSpecialist string       `json:"recommendedSpecialist,omitempty"`
	Disclaimer            string       `json:"disclaimer,omitempty"`
}

// ModerationPolicy is the configurable content-safety policy. Allowed
// phrases steer the text generator and are advisory only; every blocked
// word triggers a flag.
type ModerationPolicy struct {
	Version        int       `json:"version" db:"version"`
	Disclaimer     string    `json:"disclaimer" db:"disclaimer"`
	AllowedPhrases []string  `json:"allowedPhrases" db:"allowed_phrases"`
	BlockedWords   []string  `json:"blockedWords" db:"blocked_words"`
	HoldForReview  bool      `json:"holdForReview" db:"hold_for_review"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Review status lifecycle shared by flagged outputs and user feedback.
const (
	ReviewStatusNew      = "new"
	ReviewStatusReviewed = "reviewed"
	ReviewStatusFlagged  = "flagged"
)

// ValidReviewStatus reports whether s is part of the review lifecycle.
func ValidReviewStatus(s string) bool {
	return s == ReviewStatusNew || s == ReviewStatusReviewed || s == ReviewStatusFlagged
}

// FlaggedOutput is an audit record created when generated text matched
// at least one blocked term. Only the safety filter creates these; only
// an administrator changes their status or notes.
type FlaggedOutput struct {
	ID            string    `json:"id" db:"id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	PolicyVersion int       `json:"policyVersion" db:"policy_version"`
	Context       string    `json:"context" db:"context"`
	Text          string    `json:"text" db:"text"`
	Matches       []string  `json:"matches" db:"matches"`
	Status        string    `json:"status" db:"status"`
	Notes         string    `json:"notes,omitempty" db:"notes"`
}

// Feedback is a user-submitted review record. It shares the
// new/reviewed/flagged lifecycle with flagged outputs but is distinct
// from them.
type Feedback struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UserEmail string    `json:"userEmail" db:"user_email"`
	Message   string    `json:"message" db:"message"`
	Status    string    `json:"status" db:"status"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry in a session's append-only message log.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkflowPhase identifies a state of one in-flight analysis attempt.
type WorkflowPhase int

const (
	PhaseIdle WorkflowPhase = iota
	PhaseValidating
	PhaseUploading
	PhaseExtracting
	PhaseNormalizing
	PhaseGenerating
	PhaseComplete
	PhaseFailed
)

// String returns the wire form of the phase.
func (p WorkflowPhase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseUploading:
		return "uploading"
	case PhaseExtracting:
		return "extracting"
	case PhaseNormalizing:
		return "normalizing"
	case PhaseGenerating:
		return "generating"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Terminal reports whether the phase absorbs further transitions.
func (p WorkflowPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// WorkflowState is the observable state of one analysis attempt.
// Progress is only meaningful while uploading; Reason is only set when
// the attempt failed.
type WorkflowState struct {
	Phase    WorkflowPhase `json:"-"`
	Progress int           `json:"progress,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// MarshalJSON flattens the phase into its wire form alongside progress
// and failure reason.
func (s WorkflowState) MarshalJSON() ([]byte, error) {
	type alias struct {
		Phase    string `json:"phase"`
		Progress int    `json:"progress,omitempty"`
		Reason   string `json:"reason,omitempty"`
	}
	return json.Marshal(alias{Phase: s.Phase.String(), Progress: s.Progress, Reason: s.Reason})
}

func (s WorkflowState) String() string {
	switch {
	case s.Phase == PhaseUploading:
		return fmt.Sprintf("uploading(%d)", s.Progress)
	case s.Phase == PhaseFailed && s.Reason != "":
		return fmt.Sprintf("failed(%s)", s.Reason)
	default:
		return s.Phase.String()
	}
}
