package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"position-analyzer/internal/interfaces"
	"position-analyzer/internal/journal"
	"position-analyzer/internal/llm/llmobs"
	"position-analyzer/internal/llm/openai"
	"position-analyzer/internal/llm/openrouter"
	"position-analyzer/internal/logger"
	"position-analyzer/internal/postgrest"
	"position-analyzer/internal/store"
	"position-analyzer/internal/trace"
)

// initializeSystem loads .env files and sets up logging and tracing.
func initializeSystem() error {
	// .env next to the binary wins over the one in the parent directory.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := trace.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown tracer: %v\n", err)
	}
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	logger.Debug(ctx, "Configuration loaded",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"schema", cfg.Supabase.Schema,
	)
	return cfg, nil
}

// initializeStores connects the position and conversation stores to the
// same PostgREST client.
func initializeStores(cfg *store.Config) (*postgrest.PositionStore, *postgrest.ConversationStore) {
	client := postgrest.NewClient(cfg.Secrets.SupabaseURL, cfg.Secrets.SupabaseServiceKey, cfg.Supabase.Schema)
	positions := postgrest.NewPositionStore(client,
		cfg.Supabase.PositionsTable,
		cfg.Supabase.MarketPriceTable,
		cfg.Supabase.AssetClass,
	)
	return positions, postgrest.NewConversationStore(client, cfg.Supabase.ConversationsTable)
}

// initializeCompleter picks the chat-completion provider and wraps it with
// observability middleware.
func initializeCompleter(ctx context.Context, cfg *store.Config) interfaces.Completer {
	var completer interfaces.Completer
	switch cfg.LLM.Provider {
	case store.ProviderOpenAI:
		completer = openai.NewClient(cfg, cfg.Secrets.LLMAPIKey)
	default:
		completer = openrouter.NewClient(cfg, cfg.Secrets.LLMAPIKey)
	}
	logger.Info(ctx, "Using chat-completion provider",
		"provider", cfg.LLM.Provider,
		"endpoint", cfg.LLM.Endpoint,
		"model", cfg.LLM.Model,
	)
	return llmobs.Wrap(completer)
}

// compressOldJournals gzips journal files past the configured retention.
func compressOldJournals(ctx context.Context, j *journal.Journal) {
	n, err := j.CompressOlder(journal.RetentionDaysFromEnv())
	if err != nil {
		logger.Warn(ctx, "Failed to compress old journal files", "error", err, "dir", j.Dir())
		return
	}
	if n > 0 {
		logger.Info(ctx, "Compressed old journal files", "count", n, "dir", j.Dir())
	}
}
