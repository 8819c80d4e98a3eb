package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"position-analyzer/internal/jsonfile"
	"position-analyzer/internal/logger"
	"position-analyzer/internal/postgrest"
	"position-analyzer/internal/types"
)

// PositionReader is the subset of the position store the generator needs.
type PositionReader interface {
	LatestFetchedAt(ctx context.Context) (string, bool, error)
	StockSymbols(ctx context.Context) ([]string, error)
	StockPositions(ctx context.Context, symbol, fetchedAt string) ([]types.Document, error)
	OptionPositions(ctx context.Context, symbol, fetchedAt string, right postgrest.OptionRight) ([]types.Document, error)
	LatestMarketPrice(ctx context.Context, symbol string) (types.Document, error)
}

// Generator materializes one snapshot file per stock symbol from the
// latest positions in the store.
type Generator struct {
	reader PositionReader
	dir    string
	now    func() time.Time
}

func NewGenerator(reader PositionReader, dir string) *Generator {
	return &Generator{reader: reader, dir: dir, now: time.Now}
}

// GenerateResult lists written files and per-symbol failures.
type GenerateResult struct {
	Written []string          `json:"written"`
	Failed  map[string]string `json:"failed"`
}

// Generate writes a snapshot for every discovered symbol. Discovery errors
// abort the run; per-symbol errors are collected in the result.
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, error) {
	res := &GenerateResult{Failed: map[string]string{}}

	fetchedAt, ok, err := g.reader.LatestFetchedAt(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Info(ctx, "No positions found in store, nothing to generate")
		return res, nil
	}

	symbols, err := g.reader.StockSymbols(ctx)
	if err != nil {
		return nil, err
	}

	for _, sym := range symbols {
		op := logger.StartOperation(ctx, "snapshot.Generate", "symbol", sym)
		doc, err := g.Build(op.GetContext(), sym, fetchedAt)
		if err == nil {
			path := NewLoader(g.dir).Path(sym)
			if err = jsonfile.WriteAtomic(path, doc); err == nil {
				res.Written = append(res.Written, path)
				op.End("path", path)
				logger.Info(ctx, "JSON file generated/updated", "symbol", sym, "path", path)
				continue
			}
		}
		op.EndWithError(err, "symbol", sym)
		res.Failed[sym] = err.Error()
	}
	return res, nil
}

// Build assembles the snapshot document for symbol at fetchedAt.
func (g *Generator) Build(ctx context.Context, symbol, fetchedAt string) (types.Document, error) {
	stocks, err := g.reader.StockPositions(ctx, symbol, fetchedAt)
	if err != nil {
		return nil, err
	}
	puts, err := g.reader.OptionPositions(ctx, symbol, fetchedAt, postgrest.Put)
	if err != nil {
		return nil, err
	}
	calls, err := g.reader.OptionPositions(ctx, symbol, fetchedAt, postgrest.Call)
	if err != nil {
		return nil, err
	}

	quantity := sumAbsQuantity(stocks)
	price := decimal.Zero
	if len(stocks) > 0 {
		row, err := g.reader.LatestMarketPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if row != nil {
			price = toDecimal(row["market_price"])
		}
	}
	capital := decimal.Zero
	if !quantity.IsZero() && !price.IsZero() {
		capital = quantity.Mul(price)
	}

	return types.Document{
		"symbol":             symbol,
		"totalCapitalUsed":   capital.InexactFloat64(),
		"totalQuantity":      quantity.InexactFloat64(),
		"currentMarketPrice": price.InexactFloat64(),
		"lastUpdated":        g.now().UTC().Format(time.RFC3339Nano),
		"currentPositions":   rowsOrEmpty(stocks),
		"putPositions":       rowsOrEmpty(puts),
		"callPositions":      rowsOrEmpty(calls),
		"metadata": map[string]any{
			"totalCurrentContracts": sumAbsQuantity(stocks).InexactFloat64(),
			"totalPutContracts":     sumAbsQuantity(puts).InexactFloat64(),
			"totalCallContracts":    sumAbsQuantity(calls).InexactFloat64(),
			"accountsWithPositions": legalEntities(puts),
		},
	}, nil
}

func sumAbsQuantity(rows []types.Document) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(toDecimal(r["accounting_quantity"]).Abs())
	}
	return total
}

// toDecimal accepts the number or numeric-string forms PostgREST returns
// for numeric columns; anything else counts as zero.
func toDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero
		}
		return d
	case nil:
		return decimal.Zero
	default:
		d, err := decimal.NewFromString(fmt.Sprint(n))
		if err != nil {
			return decimal.Zero
		}
		return d
	}
}

func legalEntities(rows []types.Document) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, r := range rows {
		e := r.String("legal_entity")
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func rowsOrEmpty(rows []types.Document) []types.Document {
	if rows == nil {
		return []types.Document{}
	}
	return rows
}
