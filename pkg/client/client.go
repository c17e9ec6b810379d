package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aibidi/aibidi/pkg/types"
)

// AccessKeyHeader carries the server's access key.
const AccessKeyHeader = "X-Access-Key"

// Client is an HTTP client for the aibidi terminal server.
type Client struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
}

// NewClient creates a new client. accessKey may be empty.
func NewClient(baseURL, accessKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest performs an HTTP request with access key authentication.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.accessKey != "" {
		req.Header.Set(AccessKeyHeader, c.accessKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

// decode checks the status and decodes a JSON body into out.
func decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health reports server status and the number of live sessions.
func (c *Client) Health(ctx context.Context) (*types.Health, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return nil, err
	}

	var h types.Health
	if err := decode(resp, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListSessions returns the live session count and up to limit recent
// sessions. A non-positive limit uses the server default.
func (c *Client) ListSessions(ctx context.Context, limit int) (*types.SessionList, error) {
	path := "/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	var list types.SessionList
	if err := decode(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Upload sends r as a file named name and returns the path the server stored
// it under.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/upload", w.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}

	var out types.UploadResponse
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

// UploadFile uploads a local file under its base name.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return c.Upload(ctx, filepath.Base(path), f)
}

// websocketURL maps the base URL onto the ws/wss scheme.
func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}
