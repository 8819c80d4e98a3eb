// Package analyzer sequences discovery, snapshot loading, inference and
// persistence for one symbol or for every symbol of the latest snapshot.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"position-analyzer/internal/interfaces"
	"position-analyzer/internal/logger"
	"position-analyzer/internal/prompt"
	"position-analyzer/internal/store"
	"position-analyzer/internal/types"
)

// Stage is a step of one symbol's analysis. Symbols move forward only:
// PENDING → LOADED → PROMPTED → CALLED → SAVED, or to FAILED from any stage.
type Stage string

const (
	StagePending  Stage = "PENDING"
	StageLoaded   Stage = "LOADED"
	StagePrompted Stage = "PROMPTED"
	StageCalled   Stage = "CALLED"
	StageSaved    Stage = "SAVED"
	StageFailed   Stage = "FAILED"
)

const analysisType = "daily_json_batch"

// Pipeline runs the analysis for one user. It holds no per-symbol state.
type Pipeline struct {
	symbols   interfaces.SymbolSource
	snapshots interfaces.SnapshotLoader
	completer interfaces.Completer
	saver     interfaces.ConversationSaver
	prompts   *prompt.Builder

	model       string
	pageURLBase string
	now         func() time.Time
}

func New(cfg *store.Config, symbols interfaces.SymbolSource, snapshots interfaces.SnapshotLoader,
	completer interfaces.Completer, saver interfaces.ConversationSaver) *Pipeline {
	p := &Pipeline{
		symbols:     symbols,
		snapshots:   snapshots,
		completer:   completer,
		saver:       saver,
		model:       cfg.LLM.Model,
		pageURLBase: strings.TrimRight(cfg.PageURLBase, "/"),
		now:         time.Now,
	}
	p.prompts = &prompt.Builder{Clock: func() time.Time { return p.now() }}
	return p
}

// PageURL is the instrument page a conversation is attached to.
func (p *Pipeline) PageURL(symbol string) string {
	return p.pageURLBase + "/" + symbol
}

// AnalyzeStock runs load → prompt → call → save for symbol. Every failure is
// turned into a failed Outcome; nothing is returned as an error.
func (p *Pipeline) AnalyzeStock(ctx context.Context, symbol, userID, question string) types.Outcome {
	op := logger.StartOperation(ctx, "analyzer.AnalyzeStock", "symbol", symbol)
	ctx = op.GetContext()

	logger.Info(ctx, "Processing symbol", "symbol", symbol)

	outcome, stage, err := p.analyze(ctx, symbol, userID, question)
	if err != nil {
		outcome = types.Outcome{
			Symbol:  symbol,
			Success: false,
			Error:   failureMessage(symbol, err),
		}
		op.EndWithError(err, "stage", string(StageFailed), "failed_after", string(stage), "success", false)
		logger.Analysis(ctx, symbol, false, "failed_after", string(stage), "error", outcome.Error)
		return outcome
	}

	op.End("stage", string(StageSaved), "success", true)
	logger.Analysis(ctx, symbol, true,
		"conversation_id", outcome.ConversationID,
		"characters", len(outcome.Response),
	)
	return outcome
}

// analyze returns the last stage the symbol reached before an error stopped it.
func (p *Pipeline) analyze(ctx context.Context, symbol, userID, question string) (types.Outcome, Stage, error) {
	stage := StagePending

	snap, err := p.snapshots.Load(ctx, symbol)
	if err != nil {
		return types.Outcome{}, stage, err
	}
	stage = p.advance(ctx, symbol, StageLoaded)

	req, err := p.prompts.Build(snap, symbol, question)
	if err != nil {
		return types.Outcome{}, stage, err
	}
	stage = p.advance(ctx, symbol, StagePrompted)

	exchange, err := p.completer.Complete(ctx, req)
	if err != nil {
		return types.Outcome{}, stage, err
	}
	if !exchange.HasContent() {
		return types.Outcome{}, stage, types.EmptyResponseError("")
	}
	text := exchange.Content()
	stage = p.advance(ctx, symbol, StageCalled)

	model := p.model
	if exchange.Model != "" {
		model = exchange.Model
	}

	saved, err := p.saver.SaveConversation(ctx, types.Conversation{
		UserID:     userID,
		SymbolRoot: symbol,
		Question:   fmt.Sprintf("🤖 Automated daily analysis for %s", symbol),
		AIResponse: text,
		Model:      model,
		PageURL:    p.PageURL(symbol),
		Metadata: types.Document{
			"timestamp":     types.Timestamp(p.now()),
			"automated":     true,
			"analysis_type": analysisType,
			"position_data": snap,
			"api_payload": map[string]any{
				"request_sent_to_openrouter":        exchange.Sent,
				"response_received_from_openrouter": exchange.Received,
			},
		},
	})
	if err != nil {
		return types.Outcome{}, stage, err
	}
	stage = p.advance(ctx, symbol, StageSaved)

	return types.Outcome{
		Symbol:         symbol,
		Success:        true,
		Response:       text,
		Timestamp:      types.Timestamp(p.now()),
		Model:          model,
		ConversationID: saved.ID,
	}, stage, nil
}

func (p *Pipeline) advance(ctx context.Context, symbol string, to Stage) Stage {
	logger.Debug(ctx, "Symbol stage reached", "symbol", symbol, "stage", string(to))
	return to
}

// AnalyzeAll discovers the symbols once and analyzes them one by one in
// discovery order. A discovery failure is returned as-is and no summary is
// produced; per-symbol failures only count against the summary.
func (p *Pipeline) AnalyzeAll(ctx context.Context, userID, question string) (*types.RunSummary, error) {
	summary := &types.RunSummary{
		RunID:   uuid.NewString(),
		Results: []types.Outcome{},
	}

	logger.Info(ctx, "Starting batch processing", "run_id", summary.RunID)

	symbols, err := p.symbols.StockSymbols(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Symbol discovery failed", err, "run_id", summary.RunID)
		return nil, err
	}

	if len(symbols) == 0 {
		logger.Info(ctx, "No stock symbols found. Exiting.", "run_id", summary.RunID)
		summary.Timestamp = types.Timestamp(p.now())
		return summary, nil
	}
	logger.Info(ctx, "Discovered stock symbols", "count", len(symbols), "symbols", symbols)

	for _, sym := range symbols {
		summary.Add(p.AnalyzeStock(ctx, sym, userID, question))
	}
	summary.Timestamp = types.Timestamp(p.now())

	logger.Info(ctx, "Batch processing summary",
		"run_id", summary.RunID,
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
	)
	return summary, nil
}

func failureMessage(symbol string, err error) string {
	if types.IsNotFound(err) {
		return fmt.Sprintf("JSON file not found for %s: %v", symbol, err)
	}
	return fmt.Sprintf("Error processing %s: %v", symbol, err)
}
