package sowforgesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Sowforge HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Discovery is the API input model (partial).
type Discovery struct {
	Client struct {
		Name     string `json:"name"`
		Industry string `json:"industry"`
		Region   string `json:"region,omitempty"`
		Contact  string `json:"contact,omitempty"`
	} `json:"client"`
	Project struct {
		Title           string   `json:"title"`
		Context         string   `json:"context"`
		Objectives      []string `json:"objectives"`
		SuccessCriteria []string `json:"success_criteria"`
	} `json:"project"`
	Scope struct {
		Modules     []string `json:"modules"`
		CustomNotes string   `json:"custom_notes,omitempty"`
	} `json:"scope"`
	PricingPreference string `json:"pricing_preference,omitempty"`
}

// Document represents the API document model (partial).
type Document struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Meta     struct {
		Title      string `json:"title"`
		ClientName string `json:"client_name"`
		CreatedAt  string `json:"created_at"`
	} `json:"meta"`
	Markdown string `json:"markdown"`
}

// GenerateResult pairs the generated drafts with their origin.
type GenerateResult struct {
	SOW      Document `json:"sow"`
	Proposal Document `json:"proposal"`
	Origin   string   `json:"origin"`
}

// Workspace is the full editing state (partial).
type Workspace struct {
	SOW      *Document `json:"sow"`
	Proposal *Document `json:"proposal"`
}

// Export is an exported document payload.
type Export struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Generate produces a fresh SOW and Proposal pair from a discovery record.
func (c *Client) Generate(ctx context.Context, d Discovery) (GenerateResult, error) {
	var resp GenerateResult
	err := c.do(ctx, http.MethodPost, "v0/generate", map[string]any{"discovery": d}, &resp)
	return resp, err
}

// ParseTranscript extracts a discovery record from a call transcript.
func (c *Client) ParseTranscript(ctx context.Context, text string) (Discovery, error) {
	var resp Discovery
	err := c.do(ctx, http.MethodPost, "v0/transcript/parse", map[string]any{"text": text}, &resp)
	return resp, err
}

// GetDocument fetches one slot, "sow" or "proposal".
func (c *Client) GetDocument(ctx context.Context, slot string) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, "v0/documents/"+url.PathEscape(slot), nil, &resp)
	return resp, err
}

// GetWorkspace fetches the workspace state.
func (c *Client) GetWorkspace(ctx context.Context) (Workspace, error) {
	var resp Workspace
	err := c.do(ctx, http.MethodGet, "v0/workspace", nil, &resp)
	return resp, err
}

// SetStatus advances a document's review status.
func (c *Client) SetStatus(ctx context.Context, slot, status string) (Document, error) {
	var resp Document
	endpoint := fmt.Sprintf("v0/documents/%s/status", url.PathEscape(slot))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// ExportDocument exports a document; format is markdown, html or text.
func (c *Client) ExportDocument(ctx context.Context, slot, format string) (Export, error) {
	var resp Export
	endpoint := fmt.Sprintf("v0/documents/%s/export?format=%s", url.PathEscape(slot), url.QueryEscape(format))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
