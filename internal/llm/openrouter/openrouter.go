// Package openrouter calls the OpenRouter chat-completions endpoint.
package openrouter

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"

	"position-analyzer/internal/store"
	"position-analyzer/internal/types"
)

const fallbackErrorMessage = "Failed to get AI response"

// Client implements interfaces.Completer over plain HTTP so the exact
// payload that was sent can be persisted next to the raw response.
type Client struct {
	http        *resty.Client
	model       string
	maxTokens   int
	temperature float32
	topP        float32
	topK        int
}

// NewClient builds a client from the LLM section of cfg. The configured
// timeout bounds every call.
func NewClient(cfg *store.Config, apiKey string) *Client {
	rc := resty.New().
		SetBaseURL(cfg.LLM.Endpoint).
		SetTimeout(cfg.LLMTimeout()).
		SetAuthToken(apiKey).
		SetHeaders(map[string]string{
			"Content-Type": "application/json",
			"HTTP-Referer": cfg.LLM.Referer,
			"X-Title":      cfg.LLM.Title,
		})

	return &Client{
		http:        rc,
		model:       cfg.LLM.Model,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
		topP:        cfg.LLM.TopP,
		topK:        cfg.LLM.TopK,
	}
}

// Payload returns the request body sent for req.
func (c *Client) Payload(req types.ChatRequest) types.Document {
	messages := make([]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}
	return types.Document{
		"model":       c.model,
		"messages":    messages,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"top_p":       c.topP,
		"top_k":       c.topK,
	}
}

// Complete posts req and returns the sent payload with the decoded response.
// Non-2xx answers become transport errors carrying the API's own message
// when the body has one.
func (c *Client) Complete(ctx context.Context, req types.ChatRequest) (*types.ChatExchange, error) {
	payload := c.Payload(req)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/chat/completions")
	if err != nil {
		return nil, types.TransportError("openrouter", 0, "request failed", err)
	}

	if !resp.IsSuccess() {
		return nil, types.TransportError("", resp.StatusCode(),
			"OpenRouter API error: "+errorMessage(resp.Body()), nil)
	}

	var received types.Document
	if err := json.Unmarshal(resp.Body(), &received); err != nil {
		return nil, types.TransportError("openrouter", resp.StatusCode(), "invalid JSON response", err)
	}

	return &types.ChatExchange{Model: c.model, Sent: payload, Received: received}, nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return fallbackErrorMessage
	}
	return e.Error.Message
}
