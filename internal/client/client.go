// Package client is the HTTP client the CLI subcommands use to talk to a
// running queue manager.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/server"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the queue manager REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given server base URL (e.g.
// "http://127.0.0.1:8080").
func New(serverURL string) *Client {
	return &Client{
		baseURL: serverURL + "/api",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Submit enqueues a script and returns the submission receipt.
func (c *Client) Submit(ctx context.Context, scriptPath string, priority bool, taskID string) (*server.SubmitResponse, error) {
	var resp server.SubmitResponse
	err := c.do(ctx, http.MethodPost, "/submit", server.SubmitRequest{
		ScriptPath: scriptPath,
		Priority:   priority,
		TaskID:     taskID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStatus returns the queue-wide status.
func (c *Client) QueueStatus(ctx context.Context) (*server.QueueStatusResponse, error) {
	var resp server.QueueStatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskStatus returns one task's view.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*domain.TaskView, error) {
	var resp domain.TaskView
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecentTasks lists the most recently submitted tasks, newest first.
func (c *Client) RecentTasks(ctx context.Context, limit int) (*server.TaskListResponse, error) {
	var resp server.TaskListResponse
	path := "/tasks/recent?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearQueue drops all pending tasks and returns the server's message.
func (c *Client) ClearQueue(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/clear", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// LiveOutput returns the currently running task's captured output.
func (c *Client) LiveOutput(ctx context.Context) (*server.LiveOutputResponse, error) {
	var resp server.LiveOutputResponse
	if err := c.do(ctx, http.MethodGet, "/live-output", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Abort requests cancellation of one task by ID.
func (c *Client) Abort(ctx context.Context, taskID string) (*server.AbortResponse, error) {
	var resp server.AbortResponse
	err := c.do(ctx, http.MethodPost, "/tasks/abort/"+url.PathEscape(taskID), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AbortByPath requests cancellation of every task matching a script path.
func (c *Client) AbortByPath(ctx context.Context, scriptPath string) (*server.AbortByPathResponse, error) {
	var resp server.AbortByPathResponse
	err := c.do(ctx, http.MethodPost, "/tasks/abort-by-path",
		server.AbortByPathRequest{ScriptPath: scriptPath}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
