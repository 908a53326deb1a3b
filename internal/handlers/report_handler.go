package handlers

import (
	"log/slog"
	"net/http"

	"lablens/internal/repository"
	"lablens/internal/service"
)

// ReportHandler serves persisted reports
type ReportHandler struct {
	analysisService *service.AnalysisService
}

// NewReportHandler creates a new report handler
func NewReportHandler(analysisService *service.AnalysisService) *ReportHandler {
	return &ReportHandler{analysisService: analysisService}
}

// GetReport returns one report by ID
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	report, err := h.analysisService.GetReport(id)
	if err == repository.ErrNotFound {
		respondWithError(w, http.StatusNotFound, ErrMsgReportNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load report", "report_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// GetHistory returns all reports, most recent first
func (h *ReportHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	reports, err := h.analysisService.GetHistory()
	if err != nil {
		slog.Error("Failed to load history", "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, reports)
}
