package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lablens/internal/repository"
	"lablens/internal/service"
)

func decodeBody(rec *httptest.ResponseRecorder, v any) error {
	return json.NewDecoder(rec.Body).Decode(v)
}

func newTestAdminHandler(t *testing.T) (*AdminHandler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	policyService := service.NewPolicyService(repository.NewPolicyRepository(db))
	moderationService := service.NewModerationService(
		repository.NewFlaggedRepository(db),
		repository.NewFeedbackRepository(db),
	)
	return NewAdminHandler(policyService, moderationService), mock
}

func TestGetRules(t *testing.T) {
	handler, mock := newTestAdminHandler(t)

	rows := sqlmock.NewRows([]string{"version", "disclaimer", "allowed_phrases", "blocked_words", "hold_for_review", "updated_at"}).
		AddRow(2, "Informational only.", "{\"consult your doctor\"}", "{prescribe,cure}", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM moderation_policy")).WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/rules", nil)
	rec := httptest.NewRecorder()
	handler.GetRules(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var policy struct {
		Version      int      `json:"version"`
		BlockedWords []string `json:"blockedWords"`
	}
	require.NoError(t, decodeBody(rec, &policy))
	assert.Equal(t, 2, policy.Version)
	assert.Equal(t, []string{"prescribe", "cure"}, policy.BlockedWords)
}

func TestUpdateRulesBumpsVersion(t *testing.T) {
	handler, mock := newTestAdminHandler(t)

	rows := sqlmock.NewRows([]string{"version", "disclaimer", "allowed_phrases", "blocked_words", "hold_for_review", "updated_at"}).
		AddRow(2, "Old.", "{}", "{cure}", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM moderation_policy")).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO moderation_policy")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"disclaimer":"New.","allowedPhrases":[" consult your doctor "],"blockedWords":["cure","prescribe",""],"holdForReview":true}`
	req := httptest.NewRequest(http.MethodPut, "/api/admin/rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.UpdateRules(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var policy struct {
		Version        int      `json:"version"`
		AllowedPhrases []string `json:"allowedPhrases"`
		BlockedWords   []string `json:"blockedWords"`
		HoldForReview  bool     `json:"holdForReview"`
	}
	require.NoError(t, decodeBody(rec, &policy))
	assert.Equal(t, 3, policy.Version)
	assert.Equal(t, []string{"consult your doctor"}, policy.AllowedPhrases)
	assert.Equal(t, []string{"cure", "prescribe"}, policy.BlockedWords)
	assert.True(t, policy.HoldForReview)
}

func TestReviewFlaggedInvalidStatus(t *testing.T) {
	handler, _ := newTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/flagged/f1", strings.NewReader(`{"status":"archived"}`))
	req.SetPathValue("id", "f1")
	rec := httptest.NewRecorder()
	handler.ReviewFlagged(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewFlaggedNotFound(t *testing.T) {
	handler, mock := newTestAdminHandler(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE flagged_outputs")).
		WithArgs("reviewed", "", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/flagged/missing", strings.NewReader(`{"status":"reviewed"}`))
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	handler.ReviewFlagged(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateFeedbackStatus(t *testing.T) {
	handler, mock := newTestAdminHandler(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE feedback")).
		WithArgs("flagged", "fb1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/feedback/fb1", strings.NewReader(`{"status":"flagged"}`))
	req.SetPathValue("id", "fb1")
	rec := httptest.NewRecorder()
	handler.UpdateFeedback(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"flagged"`)
}
