// Package client is a Go client for the slate API. It wraps the HTTP
// endpoints, subscribes to live project updates over the websocket and keeps
// an optimistic local cache of project state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is an HTTP client for one slate API server.
type Client struct {
	baseURL    string
	userID     uuid.UUID
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithUser acts as the given user. Without it the server's default user acts.
func WithUser(id uuid.UUID) Option {
	return func(c *Client) { c.userID = id }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the default HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Unpaid  []UnpaidDocument
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slate: %d %s: %s", e.Status, e.Code, e.Message)
}

// Reason codes carried by rejected transitions.
const (
	CodeBlockedByCancellation = "BLOCKED_BY_CANCELLATION"
	CodePaymentPending        = "PAYMENT_PENDING"
	CodeConfirmationRequired  = "CONFIRMATION_REQUIRED"
	CodeNotFound              = "NOT_FOUND"
)

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// CreateProject creates a project in the proposal stage.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	var resp Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProject returns a project with its documents.
func (c *Client) GetProject(ctx context.Context, id uuid.UUID) (*ProjectDetail, error) {
	var resp ProjectDetail
	if err := c.do(ctx, http.MethodGet, projectPath(id, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListProjects lists projects. stage and special may be empty.
func (c *Client) ListProjects(ctx context.Context, stage, special string) ([]Project, error) {
	q := url.Values{}
	if stage != "" {
		q.Set("stage", stage)
	}
	if special != "" {
		q.Set("special", special)
	}
	path := "/api/v1/projects"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Projects []Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// UpdateStageStatus asks the server to move a project to another stage.
func (c *Client) UpdateStageStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*TransitionResult, error) {
	var resp TransitionResult
	if err := c.do(ctx, http.MethodPost, projectPath(id, "/stage"), change, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSpecialStatus asks the server to change a project's special status.
func (c *Client) UpdateSpecialStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*TransitionResult, error) {
	var resp TransitionResult
	if err := c.do(ctx, http.MethodPost, projectPath(id, "/special"), change, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListHistory returns a project's status history, oldest first.
func (c *Client) ListHistory(ctx context.Context, id uuid.UUID) ([]HistoryRecord, error) {
	var resp struct {
		History []HistoryRecord `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, projectPath(id, "/history"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// CheckPaymentGate asks whether the project could complete now.
func (c *Client) CheckPaymentGate(ctx context.Context, id uuid.UUID) (*PaymentGate, error) {
	var resp PaymentGate
	if err := c.do(ctx, http.MethodGet, projectPath(id, "/payment-gate"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkDocumentPaid marks a financial document as paid.
func (c *Client) MarkDocumentPaid(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	var resp Document
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents/"+documentID.String()+"/pay", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func projectPath(id uuid.UUID, suffix string) string {
	return "/api/v1/projects/" + id.String() + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != uuid.Nil {
		req.Header.Set("X-User-ID", c.userID.String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error struct {
				Code    string           `json:"code"`
				Message string           `json:"message"`
				Unpaid  []UnpaidDocument `json:"unpaid"`
			} `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.Unpaid = envelope.Error.Unpaid
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
