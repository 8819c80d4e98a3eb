package postgrest

import (
	"context"
	"fmt"

	"position-analyzer/internal/types"
)

const positionColumns = "id, internal_account_id, symbol, asset_class, accounting_quantity, delta, price, " +
	"market_value, unrealized_pnl, avgPrice, conid, undConid, legal_entity, " +
	"computed_cash_flow_on_entry, computed_cash_flow_on_exercise, computed_be_price"

// OptionRight selects put or call legs in the positions table, whose option
// symbols look like "META 250117 P 500".
type OptionRight string

const (
	Put  OptionRight = "P"
	Call OptionRight = "C"
)

// PositionStore reads the positions and market price tables.
type PositionStore struct {
	client     *Client
	table      string
	priceTable string
	assetClass string
}

func NewPositionStore(c *Client, table, priceTable, assetClass string) *PositionStore {
	return &PositionStore{client: c, table: table, priceTable: priceTable, assetClass: assetClass}
}

// LatestFetchedAt returns the most recent snapshot timestamp. ok is false
// when the table holds no positions at all.
func (s *PositionStore) LatestFetchedAt(ctx context.Context) (ts string, ok bool, err error) {
	var rows []types.Document
	err = s.client.Select(ctx, "fetch latest fetched_at", s.table, map[string]string{
		"select": "fetched_at",
		"order":  "fetched_at.desc",
		"limit":  "1",
	}, &rows)
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	ts = fmt.Sprint(rows[0]["fetched_at"])
	return ts, true, nil
}

// StockSymbols returns the distinct equity symbols recorded at the latest
// timestamp, in the order the store returned them. An empty store yields an
// empty set; a failing store yields an error.
func (s *PositionStore) StockSymbols(ctx context.Context) ([]string, error) {
	ts, ok, err := s.LatestFetchedAt(ctx)
	if err != nil || !ok {
		return nil, err
	}

	var rows []types.Document
	err = s.client.Select(ctx, "fetch stock symbols", s.table, map[string]string{
		"select":      "symbol",
		"asset_class": "eq." + s.assetClass,
		"fetched_at":  "eq." + ts,
	}, &rows)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		sym := row.String("symbol")
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

// StockPositions returns the equity rows for symbol at fetchedAt.
func (s *PositionStore) StockPositions(ctx context.Context, symbol, fetchedAt string) ([]types.Document, error) {
	var rows []types.Document
	err := s.client.Select(ctx, "fetch stock positions for "+symbol, s.table, map[string]string{
		"select":      positionColumns,
		"symbol":      "eq." + symbol,
		"asset_class": "eq." + s.assetClass,
		"fetched_at":  "eq." + fetchedAt,
	}, &rows)
	return rows, err
}

// OptionPositions returns the put or call legs written on symbol at fetchedAt.
func (s *PositionStore) OptionPositions(ctx context.Context, symbol, fetchedAt string, right OptionRight) ([]types.Document, error) {
	var rows []types.Document
	err := s.client.Select(ctx, fmt.Sprintf("fetch %s positions for %s", right, symbol), s.table, map[string]string{
		"select":     positionColumns,
		"symbol":     fmt.Sprintf("ilike.%s%% %s %%", symbol, right),
		"fetched_at": "eq." + fetchedAt,
	}, &rows)
	return rows, err
}

// LatestMarketPrice returns the newest market_price row for symbol, or nil if there is none.
func (s *PositionStore) LatestMarketPrice(ctx context.Context, symbol string) (types.Document, error) {
	var rows []types.Document
	err := s.client.Select(ctx, "fetch market price for "+symbol, s.priceTable, map[string]string{
		"select": "market_price",
		"symbol": "eq." + symbol,
		"order":  "id.desc",
		"limit":  "1",
	}, &rows)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}
