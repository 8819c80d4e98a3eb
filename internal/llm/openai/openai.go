// Package openai completes chat requests through any OpenAI-compatible API
// using the go-openai SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"position-analyzer/internal/store"
	"position-analyzer/internal/types"
)

type Client struct {
	client      *goopenai.Client
	model       string
	maxTokens   int
	temperature float32
	topP        float32
}

// NewClient points the SDK at cfg.LLM.Endpoint. top_k has no field in the
// OpenAI request schema and is not sent.
func NewClient(cfg *store.Config, apiKey string) *Client {
	oc := goopenai.DefaultConfig(apiKey)
	if cfg.LLM.Endpoint != "" {
		oc.BaseURL = cfg.LLM.Endpoint
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.LLMTimeout()}

	return &Client{
		client:      goopenai.NewClientWithConfig(oc),
		model:       cfg.LLM.Model,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
		topP:        cfg.LLM.TopP,
	}
}

func (c *Client) request(req types.ChatRequest) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
}

func (c *Client) Complete(ctx context.Context, req types.ChatRequest) (*types.ChatExchange, error) {
	creq := c.request(req)

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return nil, types.TransportError("", apiErr.HTTPStatusCode, "OpenAI API error: "+apiErr.Message, nil)
		}
		var reqErr *goopenai.RequestError
		if errors.As(err, &reqErr) {
			return nil, types.TransportError("openai", reqErr.HTTPStatusCode, "request failed", err)
		}
		return nil, types.TransportError("openai", 0, "request failed", err)
	}

	sent, err := toDocument(creq)
	if err != nil {
		return nil, err
	}
	received, err := toDocument(resp)
	if err != nil {
		return nil, err
	}
	return &types.ChatExchange{Model: c.model, Sent: sent, Received: received}, nil
}

func toDocument(v any) (types.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc types.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
