// Package postgrest talks to the Supabase REST (PostgREST) endpoints that
// hold position snapshots and analyzed conversations.
package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"position-analyzer/internal/logger"
	"position-analyzer/internal/types"
)

// Client is a thin PostgREST client carrying the service credentials and
// schema profile headers on every request.
type Client struct {
	http   *resty.Client
	schema string
}

// NewClient builds a client for baseURL (the project URL, without /rest/v1).
// No timeout is set; store calls rely on transport defaults.
func NewClient(baseURL, serviceKey, schema string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL+"/rest/v1").
		SetHeaders(map[string]string{
			"apikey":          serviceKey,
			"Authorization":   "Bearer " + serviceKey,
			"Content-Type":    "application/json",
			"Prefer":          "return=representation",
			"Accept-Profile":  schema,
			"Content-Profile": schema,
		})
	return &Client{http: rc, schema: schema}
}

// Schema returns the profile the client reads and writes.
func (c *Client) Schema() string {
	return c.schema
}

// Select runs GET /<table> with the given PostgREST query parameters and
// decodes the JSON array response into out.
func (c *Client) Select(ctx context.Context, op, table string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/" + table)
	logRequest(ctx, op, http.MethodGet, table, resp)
	return decode(op, resp, err, out)
}

// Insert runs POST /<table> with body and decodes the returned representation into out.
func (c *Client) Insert(ctx context.Context, op, table string, body any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/" + table)
	logRequest(ctx, op, http.MethodPost, table, resp)
	return decode(op, resp, err, out)
}

func logRequest(ctx context.Context, op, method, table string, resp *resty.Response) {
	if !logger.IsDebugEnabled() || resp == nil {
		return
	}
	logger.DebugSkip(ctx, 1, "PostgREST request",
		"op", op,
		"method", method,
		"table", table,
		"status", resp.StatusCode(),
		"duration_ms", resp.Time().Milliseconds(),
	)
}

func decode(op string, resp *resty.Response, err error, out any) error {
	if err != nil {
		return types.TransportError(op, 0, "request failed", err)
	}
	if !resp.IsSuccess() {
		return types.TransportError(op, resp.StatusCode(),
			fmt.Sprintf("%d %s: %s", resp.StatusCode(), http.StatusText(resp.StatusCode()), resp.String()), nil)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return types.TransportError(op, resp.StatusCode(), "invalid JSON response", err)
	}
	return nil
}
