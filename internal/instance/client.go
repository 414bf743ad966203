// pattern: Imperative Shell
package instance

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin HTTP client for communicating with a running droid server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithTimeout creates a Client with a custom timeout.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Branches fetches the branch list from the running server.
// Returns raw JSON bytes from GET /api/branches.
func (c *Client) Branches() ([]byte, error) {
	return c.get("/api/branches")
}

// Branch fetches a single branch's detail: run status plus the parsed
// actions, views and workflow from its Makefile.
func (c *Client) Branch(name string) ([]byte, error) {
	return c.get("/api/branches/" + url.PathEscape(name))
}

// Run starts a make action on a branch.
func (c *Client) Run(branch, action string) ([]byte, error) {
	return c.post("/api/branches/" + url.PathEscape(branch) + "/actions/" + url.PathEscape(action))
}

// Cancel kills the process running on a branch, if any.
func (c *Client) Cancel(branch string) ([]byte, error) {
	return c.post("/api/branches/" + url.PathEscape(branch) + "/cancel")
}

// Console fetches the captured console output of a branch's last run.
func (c *Client) Console(branch string) ([]byte, error) {
	return c.get("/api/branches/" + url.PathEscape(branch) + "/console")
}

// ConsoleTailURL returns the websocket URL that streams a branch's
// console as it grows.
func (c *Client) ConsoleTailURL(branch string) string {
	return "ws" + strings.TrimPrefix(c.baseURL, "http") +
		"/api/branches/" + url.PathEscape(branch) + "/console/tail"
}

// get performs a GET request and returns the response body.
func (c *Client) get(path string) ([]byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to droid: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := extractErrorMessage(body)
		return nil, fmt.Errorf("droid returned status %d: %s", resp.StatusCode, msg)
	}

	return body, nil
}

// post performs a POST request with no body and returns the response body.
func (c *Client) post(path string) ([]byte, error) {
	req, err := http.NewRequest("POST", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to droid: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(body)
		return nil, fmt.Errorf("droid returned status %d: %s", resp.StatusCode, msg)
	}

	return body, nil
}

// extractErrorMessage attempts to extract the error message from a JSON response body.
// If the body is not valid JSON or doesn't have an "error" field, returns the raw body string.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}
