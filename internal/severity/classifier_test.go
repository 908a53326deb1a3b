package severity

import (
	"testing"

	"lablens/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected models.Severity
	}{
		{"empty string", "", models.SeverityNormal},
		{"plain normal", "Normal", models.SeverityNormal},
		{"within normal limits", "within normal limits", models.SeverityNormal},
		{"high", "High", models.SeverityAlert},
		{"uppercase critical", "CRITICAL", models.SeverityAlert},
		{"alert", "alert", models.SeverityAlert},
		{"severe embedded", "severely elevated", models.SeverityAlert},
		{"risk phrase", "Cardiovascular Risk", models.SeverityAlert},
		{"low risk still carries risk", "Low risk", models.SeverityAlert},
		{"borderline", "Borderline", models.SeverityBorderline},
		{"borderline elevated", "Borderline elevated", models.SeverityBorderline},
		{"monitor", "monitor closely", models.SeverityBorderline},
		{"moderate", "Moderate deviation", models.SeverityBorderline},
		{"alert wins over borderline", "High risk, monitor closely", models.SeverityAlert},
		{"mixed case tiers", "BORDERLINE but HIGH", models.SeverityAlert},
		{"unknown vocabulary", "inconclusive", models.SeverityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.raw); got != tt.expected {
				t.Errorf("Classify(%q) = %v, expected %v", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestBannerColor(t *testing.T) {
	tests := []struct {
		severity models.Severity
		expected string
	}{
		{models.SeverityNormal, "green"},
		{models.SeverityBorderline, "yellow"},
		{models.SeverityAlert, "red"},
	}

	for _, tt := range tests {
		if got := BannerColor(tt.severity); got != tt.expected {
			t.Errorf("BannerColor(%v) = %q, expected %q", tt.severity, got, tt.expected)
		}
	}
}

func TestBannerMessage(t *testing.T) {
	if got := BannerMessage(models.SeverityAlert); got != "CRITICAL FINDINGS DETECTED" {
		t.Errorf("BannerMessage(alert) = %q", got)
	}
	if got := BannerMessage(models.SeverityNormal); got != "OPTIMAL HEALTH PROFILE" {
		t.Errorf("BannerMessage(normal) = %q", got)
	}
}
