package llmobs

import (
	"context"
	"time"

	"position-analyzer/internal/interfaces"
	"position-analyzer/internal/logger"
	"position-analyzer/internal/trace"
	"position-analyzer/internal/types"
)

// observableCompleter wraps a Completer with observability (logging & tracing)
type observableCompleter struct {
	completer interfaces.Completer
}

// Compile-time interface check
var _ interfaces.Completer = (*observableCompleter)(nil)

// Wrap wraps a completer with observability middleware
func Wrap(completer interfaces.Completer) interfaces.Completer {
	return &observableCompleter{
		completer: completer,
	}
}

// Complete submits the chat request with observability
func (oc *observableCompleter) Complete(ctx context.Context, req types.ChatRequest) (*types.ChatExchange, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Sending chat completion request",
		"symbol", req.Symbol,
		"messages", len(req.Messages),
	)

	start := time.Now()
	exchange, err := oc.completer.Complete(ctx, req)
	latency := time.Since(start)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Chat completion failed", err,
			"symbol", req.Symbol,
			"latency_ms", latency.Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "AI response received",
		"symbol", req.Symbol,
		"model", exchange.Model,
		"characters", len(exchange.Content()),
		"latency_ms", latency.Milliseconds(),
	)

	return exchange, nil
}
