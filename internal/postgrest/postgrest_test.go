package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"position-analyzer/internal/types"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "service-key", "hf")
}

func TestStockSymbols_DedupesInOrder(t *testing.T) {
	calls := 0
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/rest/v1/positions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "service-key" {
			t.Errorf("Expected apikey header, got '%s'", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("Expected bearer header, got '%s'", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept-Profile") != "hf" {
			t.Errorf("Expected Accept-Profile hf, got '%s'", r.Header.Get("Accept-Profile"))
		}

		q := r.URL.Query()
		switch q.Get("select") {
		case "fetched_at":
			if q.Get("order") != "fetched_at.desc" || q.Get("limit") != "1" {
				t.Errorf("Unexpected latest query: %s", r.URL.RawQuery)
			}
			io.WriteString(w, `[{"fetched_at":"2025-01-02T10:00:00+00:00"}]`)
		case "symbol":
			if q.Get("asset_class") != "eq.STK" {
				t.Errorf("Expected asset_class filter, got '%s'", q.Get("asset_class"))
			}
			if q.Get("fetched_at") != "eq.2025-01-02T10:00:00+00:00" {
				t.Errorf("Expected fetched_at filter, got '%s'", q.Get("fetched_at"))
			}
			io.WriteString(w, `[{"symbol":"META"},{"symbol":"COIN"},{"symbol":"META"},{"symbol":"AAPL"}]`)
		default:
			t.Errorf("Unexpected select: %s", q.Get("select"))
		}
	})

	store := NewPositionStore(c, "positions", "market_price", "STK")
	symbols, err := store.StockSymbols(context.Background())
	if err != nil {
		t.Fatalf("StockSymbols failed: %v", err)
	}

	want := []string{"META", "COIN", "AAPL"}
	if len(symbols) != len(want) {
		t.Fatalf("Expected %v, got %v", want, symbols)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("Expected symbol %d to be %s, got %s", i, want[i], symbols[i])
		}
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestStockSymbols_EmptyStore(t *testing.T) {
	calls := 0
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `[]`)
	})

	symbols, err := NewPositionStore(c, "positions", "market_price", "STK").StockSymbols(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(symbols) != 0 {
		t.Errorf("Expected no symbols, got %v", symbols)
	}
	if calls != 1 {
		t.Errorf("Expected discovery to stop after 1 call, got %d", calls)
	}
}

func TestStockSymbols_ServerError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"message":"boom"}`)
	})

	_, err := NewPositionStore(c, "positions", "market_price", "STK").StockSymbols(context.Background())
	if err == nil {
		t.Fatal("Expected error on HTTP 500")
	}
	if !types.IsTransport(err) {
		t.Errorf("Expected transport error, got %v", err)
	}
	var pe *types.PipelineError
	if !asPipelineError(err, &pe) || pe.Status != http.StatusInternalServerError {
		t.Errorf("Expected status 500 on error, got %v", err)
	}
}

func TestOptionPositions_IlikeFilter(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "ilike.META% P %" {
			t.Errorf("Unexpected symbol filter '%s'", got)
		}
		io.WriteString(w, `[{"symbol":"META 250117 P 500","accounting_quantity":-2}]`)
	})

	rows, err := NewPositionStore(c, "positions", "market_price", "STK").
		OptionPositions(context.Background(), "META", "2025-01-02", Put)
	if err != nil {
		t.Fatalf("OptionPositions failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
}

func TestSaveConversation(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/rest/v1/ai_recommendations_conversations" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("Expected Prefer header, got '%s'", r.Header.Get("Prefer"))
		}
		if r.Header.Get("Content-Profile") != "hf" {
			t.Errorf("Expected Content-Profile hf, got '%s'", r.Header.Get("Content-Profile"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `[{"id":"c0ffee","symbol_root":"META"}]`)
	})

	store := NewConversationStore(c, "ai_recommendations_conversations")
	saved, err := store.SaveConversation(context.Background(), types.Conversation{
		UserID:     "user-1",
		SymbolRoot: "META",
		Question:   "q",
		AIResponse: "a",
		Model:      "m",
		PageURL:    "https://www.y2k.fund/instrument-details/META",
		Metadata:   types.Document{"automated": true},
	})
	if err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	if saved.ID != "c0ffee" {
		t.Errorf("Expected id c0ffee, got '%s'", saved.ID)
	}
	if got["symbol_root"] != "META" || got["user_id"] != "user-1" {
		t.Errorf("Unexpected insert body: %v", got)
	}
	if meta, ok := got["metadata"].(map[string]any); !ok || meta["automated"] != true {
		t.Errorf("Expected metadata in body, got %v", got["metadata"])
	}
}

func TestSaveConversation_ObjectResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":42}`)
	})

	saved, err := NewConversationStore(c, "ai_recommendations_conversations").
		SaveConversation(context.Background(), types.Conversation{SymbolRoot: "COIN"})
	if err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	if saved.ID != "42" {
		t.Errorf("Expected id 42, got '%s'", saved.ID)
	}
}

func TestSaveConversation_NumericIDs(t *testing.T) {
	for _, tc := range []struct {
		body string
		want string
	}{
		{`{"id":1234567}`, "1234567"},
		{`[{"id":1234567}]`, "1234567"},
		{`[{"id":9007199254740993}]`, "9007199254740993"},
		{`[{"id":"3f2b8c1e-0000-4000-8000-000000000001"}]`, "3f2b8c1e-0000-4000-8000-000000000001"},
	} {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, tc.body)
		})

		saved, err := NewConversationStore(c, "ai_recommendations_conversations").
			SaveConversation(context.Background(), types.Conversation{SymbolRoot: "META"})
		if err != nil {
			t.Fatalf("SaveConversation(%s) failed: %v", tc.body, err)
		}
		if saved.ID != tc.want {
			t.Errorf("For %s expected id %s, got '%s'", tc.body, tc.want, saved.ID)
		}
	}
}

func asPipelineError(err error, target **types.PipelineError) bool {
	pe, ok := err.(*types.PipelineError)
	if ok {
		*target = pe
	}
	return ok
}
