package interfaces

import (
	"context"

	"position-analyzer/internal/types"
)

// SymbolSource discovers the symbols of the latest position snapshot.
type SymbolSource interface {
	StockSymbols(ctx context.Context) ([]string, error)
}

// SnapshotLoader reads one symbol's cached position snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context, symbol string) (types.Document, error)
}

// Completer submits a chat request to a hosted chat-completion service.
type Completer interface {
	Complete(ctx context.Context, req types.ChatRequest) (*types.ChatExchange, error)
}

// ConversationSaver persists one analyzed conversation.
type ConversationSaver interface {
	SaveConversation(ctx context.Context, c types.Conversation) (types.SavedConversation, error)
}
