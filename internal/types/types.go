package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Document is a loosely-typed JSON object. Snapshots and API payloads are
// externally defined, so they are carried as-is instead of as structs.
type Document map[string]any

// Path drills into nested objects and arrays. Array steps are given as
// their index in decimal ("0", "1", ...). It returns nil when any step is missing.
func (d Document) Path(keys ...string) any {
	var cur any = map[string]any(d)
	for _, k := range keys {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[k]
		case Document:
			cur = node[k]
		case []any:
			idx, ok := parseIndex(k)
			if !ok || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

// String returns the string at the given path, or "" when absent or not a string.
func (d Document) String(keys ...string) string {
	s, _ := d.Path(keys...).(string)
	return s
}

// Clone returns a deep copy through a JSON round trip.
func (d Document) Clone() (Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseIndex(s string) (int, bool) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ChatMessage is one role-tagged message of a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the system + user message pair sent for one symbol.
type ChatRequest struct {
	Symbol   string
	Messages []ChatMessage
}

// ChatExchange keeps the exact payload that was sent next to the raw
// response body so both can be persisted.
type ChatExchange struct {
	Model    string
	Sent     Document
	Received Document
}

// Content returns choices[0].message.content exactly as received.
func (e *ChatExchange) Content() string {
	if e == nil || e.Received == nil {
		return ""
	}
	return e.Received.String("choices", "0", "message", "content")
}

// HasContent reports whether the reply carries any non-blank text.
func (e *ChatExchange) HasContent() bool {
	return strings.TrimSpace(e.Content()) != ""
}

// Conversation is the row written to the conversations table.
type Conversation struct {
	UserID     string   `json:"user_id"`
	SymbolRoot string   `json:"symbol_root"`
	Question   string   `json:"question"`
	AIResponse string   `json:"ai_response"`
	Model      string   `json:"model"`
	PageURL    string   `json:"page_url"`
	Metadata   Document `json:"metadata"`
}

// SavedConversation is the representation the store hands back after insert.
type SavedConversation struct {
	ID  string
	Row Document
}

// Outcome is the per-symbol result of one analysis.
type Outcome struct {
	Symbol         string `json:"symbol"`
	Success        bool   `json:"success"`
	Response       string `json:"response,omitempty"`
	Error          string `json:"error,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	Model          string `json:"model,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// RunSummary aggregates the outcomes of a batch run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Results    []Outcome `json:"results"`
	Timestamp  string    `json:"timestamp"`
}

// Add records one outcome and updates the counters.
func (s *RunSummary) Add(o Outcome) {
	s.Results = append(s.Results, o)
	s.Total++
	if o.Success {
		s.Successful++
	} else {
		s.Failed++
	}
}

// Timestamp formats t the way outcomes and metadata carry it.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
