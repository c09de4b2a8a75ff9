package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sowforge/internal/domain"
	"sowforge/internal/gen"
)

const defaultBaseURL = "https://api.openai.com"

// OpenAI calls a chat-completions endpoint and parses the strict-JSON
// response into a DocumentDraft.
type OpenAI struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	NewID      func(prefix string) string
}

func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = "gpt-4-turbo-preview"
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAI{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		NewID:      gen.NewID,
	}
}

func (c *OpenAI) Generate(ctx context.Context, d domain.Discovery) (domain.DocumentDraft, domain.DocumentDraft, error) {
	var zero domain.DocumentDraft

	discoveryJSON, err := json.Marshal(d)
	if err != nil {
		return zero, zero, fmt.Errorf("marshal discovery: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(d)},
			{"role": "user", "content": "Generate SOW for: " + string(discoveryJSON)},
		},
		"temperature": 0.7,
		"max_tokens":  4000,
	})
	if err != nil {
		return zero, zero, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return zero, zero, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return zero, zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, zero, fmt.Errorf("chat completions: status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, zero, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return zero, zero, fmt.Errorf("chat completions: no choices")
	}

	var sow domain.DocumentDraft
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &sow); err != nil {
		return zero, zero, fmt.Errorf("parse draft: %w", err)
	}
	sow.ID = c.NewID("doc")
	sow.Status = domain.StatusDraft

	proposal := sow
	proposal.ID = c.NewID("doc")
	proposal.Meta.Title = strings.Replace(sow.Meta.Title, "Statement of Work", "Proposal", 1)
	return sow, proposal, nil
}
