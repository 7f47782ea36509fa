package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/pkg/apperr"
)

// Conversations tracks in-flight authoring dialogues. Sessions live only in
// memory: a session is superseded by a Report once saved, and completion is a
// terminal state.
type Conversations struct {
	assistant Assistant
	timeout   time.Duration

	mu       sync.RWMutex
	sessions map[string]*model.ConversationSession
}

// NewConversations creates the authoring-session service
func NewConversations(assistant Assistant, timeout time.Duration) *Conversations {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Conversations{
		assistant: assistant,
		timeout:   timeout,
		sessions:  make(map[string]*model.ConversationSession),
	}
}

// SendMessage appends a user turn and forwards the dialogue to the assistant.
// An empty sessionID starts a new session. If the assistant call fails, the
// session keeps the user's own turn and nothing else; the caller gets an
// execution error and may retry.
func (c *Conversations) SendMessage(ctx context.Context, sessionID, message string) (*model.ConversationSession, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperr.Validationf("message must not be empty")
	}

	c.mu.Lock()
	var session *model.ConversationSession
	if sessionID == "" {
		session = &model.ConversationSession{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		}
		c.sessions[session.ID] = session
	} else {
		session = c.sessions[sessionID]
		if session == nil {
			c.mu.Unlock()
			return nil, apperr.NotFoundf("session %s not found", sessionID)
		}
		if session.Complete {
			c.mu.Unlock()
			return nil, apperr.Validationf("session %s is complete; start a new session", sessionID)
		}
	}

	session.Turns = append(session.Turns, model.Turn{Role: model.RoleUser, Content: message})
	history := make([]model.Turn, len(session.Turns))
	copy(history, session.Turns)
	id := session.ID
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.assistant.Converse(callCtx, id, history, message)
	if err != nil {
		zap.L().Warn("Assistant call failed",
			zap.String("session_id", id),
			zap.Error(err))
		return nil, apperr.Wrap(apperr.KindExecution, err, "assistant is unavailable, please retry")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session.Turns = append(session.Turns, model.Turn{Role: model.RoleAssistant, Content: reply.Text})
	if reply.Complete {
		session.Complete = true
		session.Preview = reply.Preview
		zap.L().Info("Authoring session complete",
			zap.String("session_id", id))
	}

	return snapshotSession(session), nil
}

// Get returns a read-only snapshot of a session
func (c *Conversations) Get(sessionID string) (*model.ConversationSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session := c.sessions[sessionID]
	if session == nil {
		return nil, apperr.NotFoundf("session %s not found", sessionID)
	}
	return snapshotSession(session), nil
}

// Preview returns the completed session's report definition
func (c *Conversations) Preview(sessionID string) (*model.ReportDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session := c.sessions[sessionID]
	if session == nil {
		return nil, apperr.NotFoundf("session %s not found", sessionID)
	}
	if !session.Complete || session.Preview == nil {
		return nil, apperr.Validationf("session %s has not produced a report yet", sessionID)
	}

	preview := *session.Preview
	return &preview, nil
}

// Discard drops a session
func (c *Conversations) Discard(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

func snapshotSession(s *model.ConversationSession) *model.ConversationSession {
	out := &model.ConversationSession{
		ID:        s.ID,
		Complete:  s.Complete,
		CreatedAt: s.CreatedAt,
	}
	out.Turns = make([]model.Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	if s.Preview != nil {
		preview := *s.Preview
		out.Preview = &preview
	}
	return out
}
