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

// RunOutcome is what the external query/narrative engine hands back for one
// run. Per-query failures live inside Queries; ErrorMessage is set only when
// the run as a whole could not produce a result.
type RunOutcome struct {
	Markdown     string                 `json:"result_markdown,omitempty"`
	Data         json.RawMessage        `json:"result_data,omitempty"`
	Queries      []model.QueryExecution `json:"queries_executed"`
	Prompt       string                 `json:"llm_prompt,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// RunExecutor executes a report definition against the external query and
// narrative collaborators.
type RunExecutor interface {
	Execute(ctx context.Context, def model.ReportDefinition) (*RunOutcome, error)
}

// HTTPRunExecutor talks to the executor collaborator over HTTP.
type HTTPRunExecutor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRunExecutor creates an executor client with the given call timeout
func NewHTTPRunExecutor(baseURL string, timeout time.Duration) *HTTPRunExecutor {
	return &HTTPRunExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Execute sends the definition to the executor service and decodes the outcome
func (e *HTTPRunExecutor) Execute(ctx context.Context, def model.ReportDefinition) (*RunOutcome, error) {
	payload, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read executor response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned status %d: %s", resp.StatusCode, string(body))
	}

	outcome := &RunOutcome{}
	if err := json.Unmarshal(body, outcome); err != nil {
		return nil, fmt.Errorf("failed to decode executor response: %w", err)
	}

	return outcome, nil
}
