package repository

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"lablens/internal/models"
)

type FlaggedRepository struct {
	db *sql.DB
}

func NewFlaggedRepository(db *sql.DB) *FlaggedRepository {
	return &FlaggedRepository{db: db}
}

// Create appends a flagged output record.
func (r *FlaggedRepository) Create(flagged *models.FlaggedOutput) error {
	query := `
		INSERT INTO flagged_outputs (id, created_at, policy_version, context, text, matches, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(query,
		flagged.ID,
		flagged.CreatedAt,
		flagged.PolicyVersion,
		flagged.Context,
		flagged.Text,
		pq.Array(flagged.Matches),
		flagged.Status,
		flagged.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create flagged output: %w", err)
	}
	return nil
}

// GetAll retrieves all flagged outputs, most recent first.
func (r *FlaggedRepository) GetAll() ([]models.FlaggedOutput, error) {
	query := `
		SELECT id, created_at, policy_version, context, text, matches, status, notes
		FROM flagged_outputs
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged outputs: %w", err)
	}
	defer rows.Close()

	records := []models.FlaggedOutput{}
	for rows.Next() {
		var rec models.FlaggedOutput
		err := rows.Scan(
			&rec.ID,
			&rec.CreatedAt,
			&rec.PolicyVersion,
			&rec.Context,
			&rec.Text,
			pq.Array(&rec.Matches),
			&rec.Status,
			&rec.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flagged output: %w", err)
		}
		if rec.Matches == nil {
			rec.Matches = []string{}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateReview sets the review status and notes of one record.
func (r *FlaggedRepository) UpdateReview(id, status, notes string) error {
	query := `UPDATE flagged_outputs SET status = $1, notes = $2 WHERE id = $3`
	result, err := r.db.Exec(query, status, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update flagged output: %w", err)
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
