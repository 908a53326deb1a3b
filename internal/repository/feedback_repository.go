package repository

import (
	"database/sql"
	"fmt"

	"lablens/internal/models"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create stores a user feedback record.
func (r *FeedbackRepository) Create(feedback *models.Feedback) error {
	query := `
		INSERT INTO feedback (id, created_at, user_email, message, status)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(query,
		feedback.ID,
		feedback.CreatedAt,
		feedback.UserEmail,
		feedback.Message,
		feedback.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// GetAll retrieves all feedback records, most recent first.
func (r *FeedbackRepository) GetAll() ([]models.Feedback, error) {
	query := `
		SELECT id, created_at, user_email, message, status
		FROM feedback
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	records := []models.Feedback{}
	for rows.Next() {
		var rec models.Feedback
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.UserEmail, &rec.Message, &rec.Status); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateStatus moves a feedback record through the review lifecycle.
func (r *FeedbackRepository) UpdateStatus(id, status string) error {
	query := `UPDATE feedback SET status = $1 WHERE id = $2`
	result, err := r.db.Exec(query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
