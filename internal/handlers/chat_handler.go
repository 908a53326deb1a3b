package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"lablens/internal/middleware"
	"lablens/internal/models"
	"lablens/internal/service"
)

// ChatHandler handles chat turns and feedback submission
type ChatHandler struct {
	chatService       *service.ChatService
	moderationService *service.ModerationService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService, moderationService *service.ModerationService) *ChatHandler {
	return &ChatHandler{
		chatService:       chatService,
		moderationService: moderationService,
	}
}

// ChatRequest represents one chat turn
type ChatRequest struct {
	Message   string `json:"message"`
	ReportID  string `json:"reportId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatResponse carries the assistant reply
type ChatResponse struct {
	Reply     models.ChatMessage `json:"reply"`
	SessionID string             `json:"sessionId"`
}

// Chat runs one chat turn in the session named by the request, creating
// a fresh session when none is given.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "A message is required")
		return
	}

	session := h.chatService.Session(req.SessionID, req.ReportID)
	msg, err := h.chatService.Send(r.Context(), session, req.Message)
	if err != nil {
		slog.Error("Chat turn failed", "session_id", session.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalError)
		return
	}

	respondWithJSON(w, http.StatusOK, ChatResponse{Reply: *msg, SessionID: session.ID})
}

// FeedbackRequest represents a user feedback submission
type FeedbackRequest struct {
	Message string `json:"message"`
}

// SubmitFeedback stores a feedback record for administrator review
func (h *ChatHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	email, _ := middleware.GetUserEmail(r)
	feedback, err := h.moderationService.SubmitFeedback(email, req.Message)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, feedback)
}
