package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"lablens/internal/repository"
	"lablens/internal/service"
)

// AdminHandler serves the administrator review surface: the moderation
// policy, flagged outputs, and user feedback.
type AdminHandler struct {
	policyService     *service.PolicyService
	moderationService *service.ModerationService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(policyService *service.PolicyService, moderationService *service.ModerationService) *AdminHandler {
	return &AdminHandler{
		policyService:     policyService,
		moderationService: moderationService,
	}
}

// GetRules returns the current moderation policy
func (h *AdminHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	policy, err := h.policyService.Current()
	if err != nil {
		slog.Error("Failed to load policy", "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}
	respondWithJSON(w, http.StatusOK, policy)
}

// UpdateRulesRequest represents a policy update
type UpdateRulesRequest struct {
	Disclaimer     string   `json:"disclaimer"`
	AllowedPhrases []string `json:"allowedPhrases"`
	BlockedWords   []string `json:"blockedWords"`
	HoldForReview  bool     `json:"holdForReview"`
}

// UpdateRules commits a new moderation policy version
func (h *AdminHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	var req UpdateRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	policy, err := h.policyService.Update(req.Disclaimer, trimAll(req.AllowedPhrases), trimAll(req.BlockedWords), req.HoldForReview)
	if err != nil {
		slog.Error("Failed to update policy", "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	slog.Info("Moderation policy updated", "version", policy.Version, "blocked_words", len(policy.BlockedWords))
	respondWithJSON(w, http.StatusOK, policy)
}

// GetFlagged returns all flagged outputs, most recent first
func (h *AdminHandler) GetFlagged(w http.ResponseWriter, r *http.Request) {
	records, err := h.moderationService.ListFlagged()
	if err != nil {
		slog.Error("Failed to load flagged outputs", "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

// ReviewRequest represents a review status change
type ReviewRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// ReviewFlagged moves a flagged output through the review lifecycle
func (h *AdminHandler) ReviewFlagged(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := h.moderationService.ReviewFlagged(id, req.Status, req.Notes); err != nil {
		h.respondReviewError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

// GetFeedback returns all feedback records, most recent first
func (h *AdminHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	records, err := h.moderationService.ListFeedback()
	if err != nil {
		slog.Error("Failed to load feedback", "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

// UpdateFeedback moves a feedback record through the review lifecycle
func (h *AdminHandler) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := h.moderationService.UpdateFeedback(id, req.Status); err != nil {
		h.respondReviewError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

func (h *AdminHandler) respondReviewError(w http.ResponseWriter, err error) {
	if err == repository.ErrNotFound {
		respondWithError(w, http.StatusNotFound, "Record not found")
		return
	}
	if strings.Contains(err.Error(), "invalid review status") {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Error("Review update failed", "error", err)
	respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
}
