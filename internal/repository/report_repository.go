package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lablens/internal/models"
	"lablens/internal/severity"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// rawReport mirrors the loosely-typed payload of the external analysis
// service. Every field is optional; absent fields are defaulted during
// normalization instead of failing the decode.
type rawReport struct {
	ID                    string          `json:"id"`
	CreatedAt             string          `json:"createdAt"`
	Filename              string          `json:"filename"`
	Tests                 []rawTest       `json:"tests"`
	RiskSummary           *rawRiskSummary `json:"riskSummary"`
	Summary               string          `json:"summary"`
	Lifestyle             []string        `json:"lifestyle"`
	RecommendedSpecialist string          `json:"recommendedSpecialist"`
	Disclaimer            string          `json:"disclaimer"`
}

// rawTest carries the reference range under whichever key the upstream
// happened to use. Value may arrive as a number or a string.
type rawTest struct {
	Name           string          `json:"name"`
	TestName       string          `json:"test_name"`
	Value          json.RawMessage `json:"value"`
	Unit           string          `json:"unit"`
	RefRange       string          `json:"ref_range"`
	ReferenceRange string          `json:"referenceRange"`
	Range          string          `json:"range"`
	Status         string          `json:"status"`
}

type rawRiskSummary struct {
	OverallRisk         string `json:"overallRisk"`
	BannerMessage       string `json:"bannerMessage"`
	SeverityBannerColor string `json:"severityBannerColor"`
}

// Neutral report substituted when the analysis payload carries no test
// results. A summary with no data behind it is not shown to the user.
const (
	fallbackSummary    = "We were able to process your file, but our AI couldn't generate a confident clinical summary for this specific format. Please review the raw values with a healthcare professional."
	fallbackSpecialist = "General Physician"
	fallbackRisk       = "Low"
)

var fallbackLifestyle = []string{
	"Ask your doctor to help interpret these results.",
	"Maintain a regular health check-up schedule.",
}

// Normalize converts a raw analysis payload into the canonical Report.
// A payload without tests yields the neutral low-risk fallback report.
// Severity is classified once here and cached on the entities.
func (r *ReportRepository) Normalize(payload []byte) (*models.Report, error) {
	var raw rawReport
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode analysis payload: %w", err)
	}

	report := &models.Report{
		ID:                    raw.ID,
		CreatedAt:             parseTimestamp(raw.CreatedAt),
		Filename:              raw.Filename,
		Tests:                 []models.TestResult{},
		Summary:               raw.Summary,
		Lifestyle:             raw.Lifestyle,
		RecommendedSpecialist: raw.RecommendedSpecialist,
		Disclaimer:            raw.Disclaimer,
	}
	// reports.id is a UUID column; a missing or non-UUID upstream id is
	// replaced before it can reach the INSERT.
	if _, err := uuid.Parse(report.ID); err != nil {
		report.ID = uuid.New().String()
	}
	if report.Lifestyle == nil {
		report.Lifestyle = []string{}
	}

	for _, rt := range raw.Tests {
		name := rt.Name
		if name == "" {
			name = rt.TestName
		}
		report.Tests = append(report.Tests, models.TestResult{
			Name:           name,
			Value:          rawValueString(rt.Value),
			Unit:           rt.Unit,
			ReferenceRange: firstNonEmpty(rt.RefRange, rt.ReferenceRange, rt.Range),
			Status:         rt.Status,
			Severity:       severity.Classify(rt.Status),
		})
	}

	if len(report.Tests) == 0 {
		report.Summary = fallbackSummary
		report.RecommendedSpecialist = fallbackSpecialist
		report.Lifestyle = append([]string{}, fallbackLifestyle...)
		report.RiskSummary.OverallRisk = fallbackRisk
	} else if raw.RiskSummary != nil {
		report.RiskSummary.OverallRisk = raw.RiskSummary.OverallRisk
		report.RiskSummary.BannerMessage = raw.RiskSummary.BannerMessage
		report.RiskSummary.SeverityBannerColor = raw.RiskSummary.SeverityBannerColor
	}
	report.RiskSummary.Severity = severity.Classify(report.RiskSummary.OverallRisk)
	if report.RiskSummary.BannerMessage == "" {
		report.RiskSummary.BannerMessage = severity.BannerMessage(report.RiskSummary.Severity)
	}
	if report.RiskSummary.SeverityBannerColor == "" {
		report.RiskSummary.SeverityBannerColor = severity.BannerColor(report.RiskSummary.Severity)
	}

	return report, nil
}

// Save persists a normalized report.
func (r *ReportRepository) Save(report *models.Report) error {
	tests, err := json.Marshal(report.Tests)
	if err != nil {
		return fmt.Errorf("failed to marshal tests: %w", err)
	}

	query := `
		INSERT INTO reports (
			id, created_at, filename, overall_risk, severity, banner_message,
			banner_color, summary, recommended_specialist, disclaimer, lifestyle, tests
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Exec(query,
		report.ID,
		report.CreatedAt,
		report.Filename,
		report.RiskSummary.OverallRisk,
		report.RiskSummary.Severity.String(),
		report.RiskSummary.BannerMessage,
		report.RiskSummary.SeverityBannerColor,
		report.Summary,
		report.RecommendedSpecialist,
		report.Disclaimer,
		pq.Array(report.Lifestyle),
		tests,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetByID retrieves a report. Returns ErrNotFound if absent.
func (r *ReportRepository) GetByID(id string) (*models.Report, error) {
	query := `
		SELECT id, created_at, filename, overall_risk, severity, banner_message,
			banner_color, summary, recommended_specialist, disclaimer, lifestyle, tests
		FROM reports
		WHERE id = $1
	`
	report, err := scanReport(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// GetHistory retrieves all reports, most recent first.
func (r *ReportRepository) GetHistory() ([]models.Report, error) {
	query := `
		SELECT id, created_at, filename, overall_risk, severity, banner_message,
			banner_color, summary, recommended_specialist, disclaimer, lifestyle, tests
		FROM reports
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var report models.Report
	var severityStr string
	var tests []byte
	err := row.Scan(
		&report.ID,
		&report.CreatedAt,
		&report.Filename,
		&report.RiskSummary.OverallRisk,
		&severityStr,
		&report.RiskSummary.BannerMessage,
		&report.RiskSummary.SeverityBannerColor,
		&report.Summary,
		&report.RecommendedSpecialist,
		&report.Disclaimer,
		pq.Array(&report.Lifestyle),
		&tests,
	)
	if err != nil {
		return nil, err
	}
	report.RiskSummary.Severity = models.ParseSeverity(severityStr)
	if len(tests) > 0 {
		if err := json.Unmarshal(tests, &report.Tests); err != nil {
			return nil, fmt.Errorf("failed to decode tests column: %w", err)
		}
	}
	if report.Tests == nil {
		report.Tests = []models.TestResult{}
	}
	if report.Lifestyle == nil {
		report.Lifestyle = []string{}
	}
	return &report, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// rawValueString renders a JSON scalar as its display string.
func rawValueString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
