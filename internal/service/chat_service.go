package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lablens/internal/analyzer"
	"lablens/internal/models"
	"lablens/internal/repository"
	"lablens/internal/safety"
)

// Shown as the assistant reply when the analysis service cannot be
// reached. The turn still completes so later turns stay ordered.
const chatFallbackMessage = "I'm having trouble connecting to the medical database right now."

// ChatService manages chat sessions. Each session keeps an append-only
// message log bound to an optional report context; turns may be
// pipelined, but replies are appended in the order their requests were
// issued regardless of response arrival order.
type ChatService struct {
	client     *analyzer.Client
	reportRepo *repository.ReportRepository
	policies   *PolicyService
	filter     *safety.Filter

	mu       sync.RWMutex
	sessions map[string]*ChatSession
}

// NewChatService creates a new chat service
func NewChatService(client *analyzer.Client, reportRepo *repository.ReportRepository, policies *PolicyService, filter *safety.Filter) *ChatService {
	return &ChatService{
		client:     client,
		reportRepo: reportRepo,
		policies:   policies,
		filter:     filter,
		sessions:   make(map[string]*ChatSession),
	}
}

// Session returns the session with the given ID, creating a fresh one
// when the ID is empty or unknown.
func (s *ChatService) Session(sessionID, reportID string) *ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if session, ok := s.sessions[sessionID]; ok {
			return session
		}
	}

	session := newChatSession(reportID)
	s.sessions[session.ID] = session
	return session
}

// Send runs one chat turn: append the user message, request a reply
// bound to the session's report context, screen it, and append the
// assistant message once every earlier turn's reply has been appended.
func (s *ChatService) Send(ctx context.Context, session *ChatSession, text string) (*models.ChatMessage, error) {
	if text == "" {
		return nil, fmt.Errorf("message is required")
	}

	seq := session.send(text)

	var report *models.Report
	if session.ReportID != "" {
		var err error
		report, err = s.reportRepo.GetByID(session.ReportID)
		if err != nil && err != repository.ErrNotFound {
			slog.Error("Failed to load chat report context", "report_id", session.ReportID, "error", err)
		}
	}

	reply, err := s.client.Chat(ctx, text, report)
	if err != nil {
		slog.Error("Chat reply failed", "session_id", session.ID, "error", err)
		reply = chatFallbackMessage
	} else {
		reply = s.screenReply(session.ID, seq, reply)
	}

	msg := session.onReply(seq, reply)
	return msg, nil
}

// screenReply passes an assistant reply through the safety filter and
// returns the output the user should see.
func (s *ChatService) screenReply(sessionID string, seq int, reply string) string {
	policy, err := s.policies.Current()
	if err != nil {
		slog.Error("Failed to load policy for chat screening", "session_id", sessionID, "error", err)
		return reply
	}
	res := s.filter.Evaluate(fmt.Sprintf("chat:%s:%d", sessionID, seq), reply, policy)
	if res.Flagged() {
		slog.Warn("Chat reply flagged", "session_id", sessionID, "matches", res.Matches)
	}
	return res.Output
}

// ChatSession holds one conversation. The message log is append-only.
type ChatSession struct {
	ID       string
	ReportID string

	mu         sync.Mutex
	cond       *sync.Cond
	messages   []models.ChatMessage
	nextSeq    int
	nextAppend int
}

func newChatSession(reportID string) *ChatSession {
	session := &ChatSession{
		ID:       uuid.NewString(),
		ReportID: reportID,
	}
	session.cond = sync.NewCond(&session.mu)
	return session
}

// send appends the user message and issues a sequence number for the
// turn. Replies are appended in sequence order.
func (c *ChatSession) send(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	})
	seq := c.nextSeq
	c.nextSeq++
	return seq
}

// onReply appends the assistant message for turn seq. When replies
// arrive out of order the call blocks until every earlier turn's reply
// has been appended.
func (c *ChatSession) onReply(seq int, content string) *models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.nextAppend != seq {
		c.cond.Wait()
	}

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	c.messages = append(c.messages, msg)
	c.nextAppend++
	c.cond.Broadcast()
	return &msg
}

// Messages returns a copy of the session's message log.
func (c *ChatSession) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}
