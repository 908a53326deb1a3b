package service

import (
	"fmt"
	"sync"

	"lablens/internal/models"
	"lablens/internal/repository"
)

// PolicyService owns the process-wide moderation policy. Reads always
// see the latest committed version; updates commit a new version so
// flagged outputs keep pointing at the policy that matched them.
type PolicyService struct {
	policyRepo *repository.PolicyRepository

	mu      sync.RWMutex
	current *models.ModerationPolicy
}

// NewPolicyService creates a new policy service
func NewPolicyService(policyRepo *repository.PolicyRepository) *PolicyService {
	return &PolicyService{policyRepo: policyRepo}
}

// Current returns the latest committed policy.
func (s *PolicyService) Current() (*models.ModerationPolicy, error) {
	s.mu.RLock()
	cached := s.current
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	policy, err := s.policyRepo.GetLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to load moderation policy: %w", err)
	}

	s.mu.Lock()
	s.current = policy
	s.mu.Unlock()
	return policy, nil
}

// Update commits a new policy version and makes it the current one.
func (s *PolicyService) Update(disclaimer string, allowedPhrases, blockedWords []string, holdForReview bool) (*models.ModerationPolicy, error) {
	previous, err := s.Current()
	if err != nil {
		return nil, err
	}

	if allowedPhrases == nil {
		allowedPhrases = []string{}
	}
	if blockedWords == nil {
		blockedWords = []string{}
	}

	policy := &models.ModerationPolicy{
		Version:        previous.Version + 1,
		Disclaimer:     disclaimer,
		AllowedPhrases: allowedPhrases,
		BlockedWords:   blockedWords,
		HoldForReview:  holdForReview,
	}
	if err := s.policyRepo.Create(policy); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = policy
	s.mu.Unlock()
	return policy, nil
}
