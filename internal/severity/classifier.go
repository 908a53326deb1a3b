// Package severity maps free-text status and risk strings from the
// analysis collaborator onto the fixed Normal/Borderline/Alert taxonomy
// used across every screen.
package severity

import (
	"strings"

	"lablens/internal/models"
)

// Keyword tiers checked in priority order. Substring matching is
// deliberate: upstream analysis text is free-form, so the classifier
// must degrade gracefully instead of rejecting unknown vocabulary.
var (
	alertKeywords      = []string{"high", "alert", "critical", "risk", "severe"}
	borderlineKeywords = []string{"borderline", "monitor", "moderate"}
)

// Classify maps a raw status or risk string to a Severity. It is total:
// unknown or empty input yields SeverityNormal, and the Alert tier wins
// over the Borderline tier when both match.
func Classify(raw string) models.Severity {
	s := strings.ToLower(raw)
	for _, kw := range alertKeywords {
		if strings.Contains(s, kw) {
			return models.SeverityAlert
		}
	}
	for _, kw := range borderlineKeywords {
		if strings.Contains(s, kw) {
			return models.SeverityBorderline
		}
	}
	return models.SeverityNormal
}

// BannerColor returns the presentation color associated with a
// severity. It mirrors the closed set used by the results banner.
func BannerColor(s models.Severity) string {
	switch s {
	case models.SeverityAlert:
		return "red"
	case models.SeverityBorderline:
		return "yellow"
	default:
		return "green"
	}
}

// BannerMessage returns the default banner headline for a severity,
// used when the analysis payload does not carry one.
func BannerMessage(s models.Severity) string {
	switch s {
	case models.SeverityAlert:
		return "CRITICAL FINDINGS DETECTED"
	case models.SeverityBorderline:
		return "MODERATE DEVIATIONS DETECTED"
	default:
		return "OPTIMAL HEALTH PROFILE"
	}
}
