package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"position-analyzer/internal/types"
)

// ConversationStore inserts analyzed conversations.
type ConversationStore struct {
	client *Client
	table  string
}

func NewConversationStore(c *Client, table string) *ConversationStore {
	return &ConversationStore{client: c, table: table}
}

// SaveConversation inserts one row and returns the stored representation.
// PostgREST answers with an array; a bare object is accepted as well.
func (s *ConversationStore) SaveConversation(ctx context.Context, conv types.Conversation) (types.SavedConversation, error) {
	var raw json.RawMessage
	if err := s.client.Insert(ctx, "save conversation", s.table, conv, &raw); err != nil {
		return types.SavedConversation{}, err
	}

	row, err := firstRow(raw)
	if err != nil {
		return types.SavedConversation{}, types.TransportError("save conversation", 0, "unexpected insert response", err)
	}

	saved := types.SavedConversation{Row: row}
	if id, ok := row["id"]; ok && id != nil {
		saved.ID = fmt.Sprint(id)
	}
	return saved, nil
}

// firstRow decodes numbers as json.Number so bigint ids keep every digit.
func firstRow(raw json.RawMessage) (types.Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return types.Document{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if raw[0] == '[' {
		var rows []types.Document
		if err := dec.Decode(&rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return types.Document{}, nil
		}
		return rows[0], nil
	}
	var row types.Document
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}
