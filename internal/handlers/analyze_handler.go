package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"lablens/internal/analyzer"
	"lablens/internal/config"
	"lablens/internal/models"
	"lablens/internal/service"
	"lablens/internal/upload"
)

// AnalyzeHandler handles report analysis requests
type AnalyzeHandler struct {
	analysisService *service.AnalysisService
	uploadCfg       config.UploadConfig
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(analysisService *service.AnalysisService, uploadCfg config.UploadConfig) *AnalyzeHandler {
	return &AnalyzeHandler{
		analysisService: analysisService,
		uploadCfg:       uploadCfg,
	}
}

// analyzeResponse is the envelope returned for a completed analysis.
type analyzeResponse struct {
	Success   bool           `json:"success"`
	Data      *models.Report `json:"data"`
	AttemptID string         `json:"attemptId"`
}

// Analyze accepts a multipart lab-report upload, runs the analysis
// pipeline, and returns the normalized report.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	// Cap the request body slightly above the configured limit so the
	// validator produces the rejection reason instead of a broken read.
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadCfg.MaxSizeBytes()+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "A file upload named 'file' is required")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("Failed to close uploaded file", "error", err)
		}
	}()

	contentType := header.Header.Get("Content-Type")

	report, attemptID, err := h.analysisService.Analyze(r.Context(), header.Filename, contentType, header.Size, file)
	if err != nil {
		h.respondAnalyzeError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, analyzeResponse{Success: true, Data: report, AttemptID: attemptID})
}

func (h *AnalyzeHandler) respondAnalyzeError(w http.ResponseWriter, err error) {
	var vErr *upload.ValidationError
	if errors.As(err, &vErr) {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{
			"error":  vErr.Message,
			"reason": vErr.Reason,
		})
		return
	}

	var tErr *analyzer.TransportError
	if errors.As(err, &tErr) {
		slog.Error("Analysis service unreachable", "error", tErr)
		respondWithError(w, http.StatusBadGateway, "The analysis service is unavailable. Please try again.")
		return
	}

	slog.Error("Analysis failed", "error", err)
	respondWithError(w, http.StatusInternalServerError, "Analysis failed")
}

// uploadStatusResponse reports the workflow state of one attempt.
type uploadStatusResponse struct {
	AttemptID string               `json:"attemptId"`
	State     models.WorkflowState `json:"state"`
	ReportID  string               `json:"reportId,omitempty"`
}

// UploadStatus returns the workflow state of an in-flight or recently
// finished analysis attempt.
func (h *AnalyzeHandler) UploadStatus(w http.ResponseWriter, r *http.Request) {
	attemptID := r.PathValue("id")

	state, reportID, err := h.analysisService.Status(attemptID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Analysis attempt not found")
		return
	}

	respondWithJSON(w, http.StatusOK, uploadStatusResponse{
		AttemptID: attemptID,
		State:     state,
		ReportID:  reportID,
	})
}
