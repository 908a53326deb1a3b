package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lablens/internal/models"
)

type PolicyRepository struct {
	db *sql.DB
}

func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetLatest retrieves the highest committed policy version.
func (r *PolicyRepository) GetLatest() (*models.ModerationPolicy, error) {
	var policy models.ModerationPolicy
	query := `
		SELECT version, disclaimer, allowed_phrases, blocked_words, hold_for_review, updated_at
		FROM moderation_policy
		ORDER BY version DESC
		LIMIT 1
	`
	err := r.db.QueryRow(query).Scan(
		&policy.Version,
		&policy.Disclaimer,
		pq.Array(&policy.AllowedPhrases),
		pq.Array(&policy.BlockedWords),
		&policy.HoldForReview,
		&policy.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation policy: %w", err)
	}
	if policy.AllowedPhrases == nil {
		policy.AllowedPhrases = []string{}
	}
	if policy.BlockedWords == nil {
		policy.BlockedWords = []string{}
	}
	return &policy, nil
}

// Create commits a new policy version. Versions are append-only so
// audit records keep pointing at the exact policy that flagged them.
func (r *PolicyRepository) Create(policy *models.ModerationPolicy) error {
	policy.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO moderation_policy (version, disclaimer, allowed_phrases, blocked_words, hold_for_review, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(query,
		policy.Version,
		policy.Disclaimer,
		pq.Array(policy.AllowedPhrases),
		pq.Array(policy.BlockedWords),
		policy.HoldForReview,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create moderation policy: %w", err)
	}
	return nil
}
