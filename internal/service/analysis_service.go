package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lablens/internal/analyzer"
	"lablens/internal/config"
	"lablens/internal/models"
	"lablens/internal/repository"
	"lablens/internal/safety"
	"lablens/internal/upload"
	"lablens/internal/workflow"
)

// attempt tracks one in-flight or recently finished analysis so its
// workflow state can be polled while the upload is in progress.
type attempt struct {
	workflow  *workflow.Workflow
	reportID  string
	createdAt time.Time
}

// AnalysisService drives one lab-report analysis end to end: validate
// the upload, run the workflow state machine, hand the file to the
// external analysis service, normalize the payload, and pass the
// generated summary through the safety filter before persisting.
type AnalysisService struct {
	validator  *upload.Validator
	client     *analyzer.Client
	reportRepo *repository.ReportRepository
	policies   *PolicyService
	filter     *safety.Filter

	workflowCfg workflow.Config
	attemptTTL  time.Duration

	mu       sync.RWMutex
	attempts map[string]*attempt

	stop chan struct{}
	done chan struct{}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	validator *upload.Validator,
	client *analyzer.Client,
	reportRepo *repository.ReportRepository,
	policies *PolicyService,
	filter *safety.Filter,
	cfg config.WorkflowConfig,
) *AnalysisService {
	return &AnalysisService{
		validator:  validator,
		client:     client,
		reportRepo: reportRepo,
		policies:   policies,
		filter:     filter,
		workflowCfg: workflow.Config{
			ExtractDuration:   cfg.ExtractDuration,
			NormalizeDuration: cfg.NormalizeDuration,
		},
		attemptTTL: cfg.AttemptTTL,
		attempts:   make(map[string]*attempt),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the background janitor that expires finished attempts.
func (s *AnalysisService) Start() {
	go s.run()
}

// Stop shuts the janitor down and waits for it to exit.
func (s *AnalysisService) Stop() {
	close(s.stop)
	<-s.done
}

func (s *AnalysisService) run() {
	defer close(s.done)

	interval := s.attemptTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.expireAttempts()
		}
	}
}

func (s *AnalysisService) expireAttempts() {
	cutoff := time.Now().Add(-s.attemptTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.attempts {
		if a.createdAt.Before(cutoff) {
			delete(s.attempts, id)
		}
	}
}

// Analyze runs one analysis attempt. The returned attempt ID can be
// polled via Status while the attempt is running; on success the
// normalized, persisted report is returned.
func (s *AnalysisService) Analyze(ctx context.Context, filename, contentType string, size int64, file io.Reader) (*models.Report, string, error) {
	attemptID := uuid.NewString()
	wf := workflow.New(s.workflowCfg)
	a := &attempt{workflow: wf, createdAt: time.Now()}

	s.mu.Lock()
	s.attempts[attemptID] = a
	s.mu.Unlock()

	report, err := s.runAttempt(ctx, wf, filename, contentType, size, file)
	if err != nil {
		return nil, attemptID, err
	}

	s.mu.Lock()
	a.reportID = report.ID
	s.mu.Unlock()
	return report, attemptID, nil
}

func (s *AnalysisService) runAttempt(ctx context.Context, wf *workflow.Workflow, filename, contentType string, size int64, file io.Reader) (*models.Report, error) {
	wf.Begin()

	if err := s.validator.Validate(contentType, size); err != nil {
		wf.Fail(err.Error())
		return nil, err
	}

	wf.StartUpload()
	payload, err := s.client.Analyze(ctx, filename, contentType, file, size, wf.ReportProgress)
	if err != nil {
		if ctx.Err() != nil {
			wf.Cancel()
			return nil, ctx.Err()
		}
		wf.Fail(err.Error())
		return nil, err
	}

	report, err := s.reportRepo.Normalize(payload)
	if err != nil {
		wf.Fail(err.Error())
		return nil, err
	}
	report.Filename = filename

	s.screenSummary(report)

	if err := s.reportRepo.Save(report); err != nil {
		wf.Fail(err.Error())
		return nil, err
	}

	wf.Complete()
	return report, nil
}

// screenSummary passes the generated summary through the safety filter
// and replaces it with the filter's output. A policy load failure skips
// screening rather than failing the attempt.
func (s *AnalysisService) screenSummary(report *models.Report) {
	if report.Summary == "" {
		return
	}
	policy, err := s.policies.Current()
	if err != nil {
		slog.Error("Failed to load policy for summary screening", "report_id", report.ID, "error", err)
		return
	}
	res := s.filter.Evaluate(fmt.Sprintf("report:%s", report.ID), report.Summary, policy)
	if res.Flagged() {
		slog.Warn("Report summary flagged", "report_id", report.ID, "matches", res.Matches)
	}
	report.Summary = res.Output
	if report.Disclaimer == "" {
		report.Disclaimer = policy.Disclaimer
	}
}

// ErrAttemptNotFound is returned when polling an unknown attempt.
var ErrAttemptNotFound = errors.New("analysis attempt not found")

// Status returns the workflow state of one attempt and, once the
// attempt completed, the resulting report ID.
func (s *AnalysisService) Status(attemptID string) (models.WorkflowState, string, error) {
	s.mu.RLock()
	a, ok := s.attempts[attemptID]
	s.mu.RUnlock()
	if !ok {
		return models.WorkflowState{}, "", ErrAttemptNotFound
	}
	return a.workflow.State(), a.reportID, nil
}

// GetReport retrieves one persisted report.
func (s *AnalysisService) GetReport(id string) (*models.Report, error) {
	return s.reportRepo.GetByID(id)
}

// GetHistory retrieves all persisted reports, most recent first.
func (s *AnalysisService) GetHistory() ([]models.Report, error) {
	return s.reportRepo.GetHistory()
}
