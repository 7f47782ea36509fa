package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/insightloop/reportd/internal/model"
)

// AssistantReply is one exchange with the external authoring assistant.
type AssistantReply struct {
	SessionID string                  `json:"session_id"`
	Text      string                  `json:"reply"`
	Complete  bool                    `json:"is_complete"`
	Preview   *model.ReportDefinition `json:"report_preview,omitempty"`
}

// Assistant is the external text-generation collaborator that drives the
// report-authoring dialogue.
type Assistant interface {
	Converse(ctx context.Context, sessionID string, history []model.Turn, message string) (*AssistantReply, error)
}

// HTTPAssistant talks to the assistant collaborator over HTTP.
type HTTPAssistant struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAssistant creates an assistant client with the given call timeout
func NewHTTPAssistant(baseURL string, timeout time.Duration) *HTTPAssistant {
	return &HTTPAssistant{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Converse forwards the dialogue so far plus the new user message
func (a *HTTPAssistant) Converse(ctx context.Context, sessionID string, history []model.Turn, message string) (*AssistantReply, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"session_id": sessionID,
		"history":    history,
		"message":    message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode assistant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/converse", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read assistant response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assistant returned status %d: %s", resp.StatusCode, string(body))
	}

	reply := &AssistantReply{}
	if err := json.Unmarshal(body, reply); err != nil {
		return nil, fmt.Errorf("failed to decode assistant response: %w", err)
	}

	return reply, nil
}
