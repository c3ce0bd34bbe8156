package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trainbox/trainbox/pkg/types"
)

// Client talks to the trainbox API over HTTP, plus the execution websocket.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new trainbox API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ActiveProcesses lists currently running execution sessions.
func (c *Client) ActiveProcesses(ctx context.Context) (*types.ActiveProcesses, error) {
	var out types.ActiveProcesses
	if err := c.get(ctx, "/api/process/active", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns returns recent run-history records.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]types.RunRecord, error) {
	var out struct {
		Runs []types.RunRecord `json:"runs"`
	}
	path := "/api/runs"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// ListModels lists trained model files with their metrics.
func (c *Client) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	var out []types.ModelInfo
	if err := c.get(ctx, "/api/models", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteModel removes a model file and its sibling report/info files.
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	body, _ := json.Marshal(types.DeleteModelRequest{Name: name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/model/delete", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(b))
	}
	return nil
}

// wsURL converts the HTTP base URL to the execution websocket URL.
func (c *Client) wsURL() string {
	url := c.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/api/script/ws/execute"
}

// ExecuteScript runs a script remotely and streams every message line to
// onMessage until the terminal marker arrives or the channel closes. When ctx
// is cancelled a CANCEL token is sent and streaming continues until the
// server finishes tearing the session down. Returns an error for a failed
// execution (EXECUTION_ERROR).
func (c *Client) ExecuteScript(ctx context.Context, req types.ExecuteRequest, onMessage func(line string)) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial execution websocket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send execution request: %w", err)
	}

	// Relay the context cancellation as a CANCEL token.
	cancelSent := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.TextMessage, []byte("CANCEL"))
		case <-cancelSent:
		}
	}()
	defer close(cancelSent)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connection closed before execution finished: %w", err)
		}

		line := string(data)
		if onMessage != nil {
			onMessage(line)
		}

		switch {
		case line == "EXECUTION_FINISHED":
			return nil
		case strings.HasPrefix(line, "EXECUTION_ERROR:"):
			return fmt.Errorf("%s", strings.TrimSpace(strings.TrimPrefix(line, "EXECUTION_ERROR:")))
		}
	}
}
