package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lablens/internal/analyzer"
	"lablens/internal/models"
	"lablens/internal/repository"
	"lablens/internal/safety"
)

func TestChatSessionAppendsRepliesInRequestOrder(t *testing.T) {
	session := newChatSession("")

	seq1 := session.send("What does LDL mean?")
	seq2 := session.send("And HDL?")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// Second reply arrives first; it must wait for the first.
		session.onReply(seq2, "HDL is the good cholesterol.")
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		session.onReply(seq1, "LDL is the bad cholesterol.")
	}()
	wg.Wait()

	msgs := session.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, "LDL is the bad cholesterol.", msgs[2].Content)
	assert.Equal(t, "HDL is the good cholesterol.", msgs[3].Content)
}

func TestChatServiceFallbackOnTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	svc := newTestChatService(t, server.URL)
	session := svc.Session("", "")

	msg, err := svc.Send(context.Background(), session, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, msg.Role)
	assert.Equal(t, "I'm having trouble connecting to the medical database right now.", msg.Content)
}

func TestChatServiceScreensReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"I can cure that."}`))
	}))
	defer server.Close()

	svc := newTestChatService(t, server.URL)
	session := svc.Session("", "")

	msg, err := svc.Send(context.Background(), session, "can you help?")
	require.NoError(t, err)
	assert.Equal(t, "I can [[cure]] that.", msg.Content)
}

func TestChatServiceReusesSession(t *testing.T) {
	svc := newTestChatService(t, "http://localhost:0")

	first := svc.Session("", "report-1")
	again := svc.Session(first.ID, "")
	assert.Same(t, first, again)

	fresh := svc.Session("unknown-id", "")
	assert.NotEqual(t, first.ID, fresh.ID)
}

func newTestChatService(t *testing.T, baseURL string) *ChatService {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows := sqlmock.NewRows([]string{"version", "disclaimer", "allowed_phrases", "blocked_words", "hold_for_review", "updated_at"}).
		AddRow(1, "Informational only.", "{}", "{cure,prescribe}", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM moderation_policy")).WillReturnRows(rows)

	policies := NewPolicyService(repository.NewPolicyRepository(db))
	client := analyzer.NewClient(baseURL, 5*time.Second)
	filter := safety.NewFilter(nil)
	return NewChatService(client, repository.NewReportRepository(db), policies, filter)
}
