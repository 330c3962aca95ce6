// Package genie is an HTTP client for the managed natural-language-to-SQL
// query service ("Genie"). The service is a black box to ReportGate: the
// client sends a prompt into a space, waits for the generated SQL to finish,
// and fetches the result table.
package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datapilot/reportgate/internal/errs"
)

// maxResponseSize caps a Genie response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Config holds the connection settings for one Genie space.
type Config struct {
	// BaseURL is the workspace URL, e.g. "https://dbc-xxxx.cloud.databricks.com".
	BaseURL string

	// Token is the bearer token used for all calls.
	Token string

	// SpaceID selects the Genie space the prompts are routed to.
	SpaceID string

	// PollInterval is the delay between message-status polls.
	// Defaults to 2s when zero.
	PollInterval time.Duration

	// HTTPClient overrides the default client (60s timeout) when set.
	HTTPClient *http.Client
}

// Client talks to a single Genie space.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL      string
	token        string
	spaceID      string
	pollInterval time.Duration
	httpClient   *http.Client
}

// New creates a Client for the given space.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		token:        cfg.Token,
		spaceID:      cfg.SpaceID,
		pollInterval: pollInterval,
		httpClient:   httpClient,
	}
}

// SpaceID returns the Genie space this client is bound to.
func (c *Client) SpaceID() string {
	return c.spaceID
}

// Message is one completed Genie answer, text and/or query attachments.
type Message struct {
	ConversationID string
	MessageID      string
	Status         string
	Attachments    []Attachment
}

// Attachment is one piece of a Genie answer. Exactly one of Text or Query
// is set.
type Attachment struct {
	Text  *TextAttachment  `json:"text,omitempty"`
	Query *QueryAttachment `json:"query,omitempty"`
}

// TextAttachment is a narrative answer fragment.
type TextAttachment struct {
	Content string `json:"content"`
}

// QueryAttachment describes the SQL Genie generated for the prompt.
type QueryAttachment struct {
	Query       string `json:"query"`
	Description string `json:"description"`
	StatementID string `json:"statement_id"`
}

// Table is a fetched query result.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// StartConversation sends prompt as a new conversation and waits for the
// answer to complete.
func (c *Client) StartConversation(ctx context.Context, prompt string) (*Message, error) {
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/start-conversation", c.spaceID)

	var started struct {
		ConversationID string `json:"conversation_id"`
		MessageID      string `json:"message_id"`
	}
	if err := c.post(ctx, path, map[string]string{"content": prompt}, &started); err != nil {
		return nil, err
	}

	return c.waitForMessage(ctx, started.ConversationID, started.MessageID)
}

// ContinueConversation sends a follow-up prompt into an existing conversation
// and waits for the answer to complete.
func (c *Client) ContinueConversation(ctx context.Context, conversationID, prompt string) (*Message, error) {
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages", c.spaceID, conversationID)

	var started struct {
		MessageID string `json:"message_id"`
	}
	if err := c.post(ctx, path, map[string]string{"content": prompt}, &started); err != nil {
		return nil, err
	}

	return c.waitForMessage(ctx, conversationID, started.MessageID)
}

// GetQueryResult fetches the result table for a completed SQL statement.
func (c *Client) GetQueryResult(ctx context.Context, statementID string) (*Table, error) {
	path := fmt.Sprintf("/api/2.0/sql/statements/%s", statementID)

	var resp struct {
		Manifest struct {
			Schema struct {
				Columns []struct {
					Name string `json:"name"`
				} `json:"columns"`
			} `json:"schema"`
		} `json:"manifest"`
		Result struct {
			DataArray [][]string `json:"data_array"`
		} `json:"result"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	table := &Table{Rows: resp.Result.DataArray}
	for _, col := range resp.Manifest.Schema.Columns {
		table.Columns = append(table.Columns, col.Name)
	}
	return table, nil
}

// messageStates Genie reports while working on an answer.
const (
	stateCompleted = "COMPLETED"
	stateFailed    = "FAILED"
	stateCancelled = "CANCELLED"
)

// waitForMessage polls the message until it reaches a terminal state.
func (c *Client) waitForMessage(ctx context.Context, conversationID, messageID string) (*Message, error) {
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages/%s",
		c.spaceID, conversationID, messageID)

	for {
		var resp struct {
			Status      string       `json:"status"`
			Attachments []Attachment `json:"attachments"`
			Error       struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := c.get(ctx, path, &resp); err != nil {
			return nil, err
		}

		switch resp.Status {
		case stateCompleted:
			return &Message{
				ConversationID: conversationID,
				MessageID:      messageID,
				Status:         resp.Status,
				Attachments:    resp.Attachments,
			}, nil
		case stateFailed, stateCancelled:
			return nil, errs.New(errs.ErrKindQueryFailed,
				fmt.Sprintf("genie message %s: %s", resp.Status, resp.Error.Message))
		}

		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.ErrKindTimeout, "waiting for genie answer", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

// --- transport ---

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "build request", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return errs.Wrap(errs.ErrKindTimeout, "genie request cancelled", err)
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, "genie request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "read genie response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.New(errs.ErrKindQueryFailed,
			fmt.Sprintf("genie returned HTTP %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "decode genie response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
