// Package remote provides the HTTP client for the cloud record store.
//
// The backend is an external collaborator; this client only relies on it to
// assign durable ids on create, to accept update/delete by id, to serve a
// bulk fetch per owner, and to answer with status codes that distinguish
// network, auth, and validation failures.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperr "github.com/studyflow/backend/internal/errors"
	"github.com/studyflow/backend/internal/models"
	"github.com/studyflow/backend/internal/session"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.studyflow.app
	BaseURL string

	// Timeout bounds a single request so a hung call cannot stall a drain
	// pass. Zero defaults to 15s.
	Timeout time.Duration
}

// Client performs create/read/update/delete against the cloud backend.
type Client struct {
	baseURL    string
	session    session.Provider
	httpClient *http.Client
}

// New creates a Client authenticating through the given session provider.
func New(cfg Config, sess session.Provider) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		session: sess,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

type createResponse struct {
	ID string `json:"id"`
}

// Create stores a new record and returns the server-assigned id. The
// idempotency key makes a replay after a crash return the original id
// instead of duplicating the record.
func (c *Client) Create(ctx context.Context, userID string, kind models.Kind, payload json.RawMessage, idempotencyKey string) (string, error) {
	path := fmt.Sprintf("/api/users/%s/%s", url.PathEscape(userID), kind)
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Idempotency-Key", idempotencyKey)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperr.Wrap(apperr.ErrNetwork, "malformed create response", err)
	}
	if resp.ID == "" {
		return "", apperr.New(apperr.ErrNetwork, "create response missing id")
	}
	return resp.ID, nil
}

// Update applies a partial payload to an existing remote record.
func (c *Client) Update(ctx context.Context, kind models.Kind, remoteID string, payload json.RawMessage) error {
	path := fmt.Sprintf("/api/%s/%s", kind, url.PathEscape(remoteID))
	req, err := c.newRequest(ctx, http.MethodPatch, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// Delete removes a remote record. Deleting an already-deleted record
// succeeds: the desired end state is already achieved.
func (c *Client) Delete(ctx context.Context, kind models.Kind, remoteID string) error {
	path := fmt.Sprintf("/api/%s/%s", kind, url.PathEscape(remoteID))
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	if apperr.IsNotFound(err) {
		return nil
	}
	return err
}

// FetchAll pulls every record of a kind owned by the user.
func (c *Client) FetchAll(ctx context.Context, userID string, kind models.Kind) ([]models.Record, error) {
	path := fmt.Sprintf("/api/users/%s/%s", url.PathEscape(userID), kind)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	records := []models.Record{}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, apperr.Wrap(apperr.ErrNetwork, "malformed fetch response", err)
	}
	return records, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.session.Token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request and maps the response onto the error taxonomy.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, apperr.Wrap(apperr.ErrNetwork, "failed to read response", readErr)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classifyStatus(resp.StatusCode, body)
}

func classifyStatus(status int, body []byte) error {
	msg := fmt.Sprintf("backend returned %d: %s", status, truncate(body, 256))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.New(apperr.ErrAuth, msg)
	case status == http.StatusNotFound:
		return apperr.New(apperr.ErrNotFound, msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperr.New(apperr.ErrValidation, msg)
	default:
		// 408, 429, and all 5xx are transient from the client's view.
		return apperr.New(apperr.ErrNetwork, msg)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
