package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"lablens/internal/models"
	"lablens/internal/repository"
)

// ModerationService handles the administrator review surface: flagged
// outputs created by the safety filter and user-submitted feedback.
// Both share the new/reviewed/flagged lifecycle.
type ModerationService struct {
	flaggedRepo  *repository.FlaggedRepository
	feedbackRepo *repository.FeedbackRepository
}

// NewModerationService creates a new moderation service
func NewModerationService(flaggedRepo *repository.FlaggedRepository, feedbackRepo *repository.FeedbackRepository) *ModerationService {
	return &ModerationService{
		flaggedRepo:  flaggedRepo,
		feedbackRepo: feedbackRepo,
	}
}

// Record appends a flagged output. This is the safety filter's audit
// sink; nothing else creates these records.
func (s *ModerationService) Record(out *models.FlaggedOutput) error {
	return s.flaggedRepo.Create(out)
}

// ListFlagged returns all flagged outputs, most recent first.
func (s *ModerationService) ListFlagged() ([]models.FlaggedOutput, error) {
	return s.flaggedRepo.GetAll()
}

// ReviewFlagged moves a flagged output through the review lifecycle.
func (s *ModerationService) ReviewFlagged(id, status, notes string) error {
	if !models.ValidReviewStatus(status) {
		return fmt.Errorf("invalid review status: %s", status)
	}
	return s.flaggedRepo.UpdateReview(id, status, notes)
}

// SubmitFeedback stores a user feedback record with status new.
func (s *ModerationService) SubmitFeedback(userEmail, message string) (*models.Feedback, error) {
	if message == "" {
		return nil, fmt.Errorf("feedback message is required")
	}
	feedback := &models.Feedback{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		UserEmail: userEmail,
		Message:   message,
		Status:    models.ReviewStatusNew,
	}
	if err := s.feedbackRepo.Create(feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

// ListFeedback returns all feedback records, most recent first.
func (s *ModerationService) ListFeedback() ([]models.Feedback, error) {
	return s.feedbackRepo.GetAll()
}

// UpdateFeedback moves a feedback record through the review lifecycle.
func (s *ModerationService) UpdateFeedback(id, status string) error {
	if !models.ValidReviewStatus(status) {
		return fmt.Errorf("invalid review status: %s", status)
	}
	return s.feedbackRepo.UpdateStatus(id, status)
}
