package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testUserID = "5f0c6a1e-3b2d-4c8e-9a7f-1d2e3f4a5b6c"

type harness struct {
	opts          *options
	out           bytes.Buffer
	symbols       []string
	failDiscovery bool
	inserts       int
}

// newHarness serves the position store and the completion endpoint from
// httptest servers and points configuration, secrets and the journal at them.
func newHarness(t *testing.T, symbols ...string) *harness {
	t.Helper()
	h := &harness{symbols: symbols}

	storeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/positions":
			if h.failDiscovery {
				w.WriteHeader(http.StatusServiceUnavailable)
				io.WriteString(w, `{"message":"unavailable"}`)
				return
			}
			switch r.URL.Query().Get("select") {
			case "fetched_at":
				io.WriteString(w, `[{"fetched_at":"2025-01-02T10:00:00+00:00"}]`)
			default:
				rows := make([]string, 0, len(h.symbols))
				for _, s := range h.symbols {
					rows = append(rows, fmt.Sprintf(`{"symbol":%q}`, s))
				}
				io.WriteString(w, "["+strings.Join(rows, ",")+"]")
			}
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/ai_recommendations_conversations":
			h.inserts++
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `[{"id":%d}]`, 1000+h.inserts)
		default:
			t.Errorf("Unexpected store request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(storeSrv.Close)

	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Hold."}}]}`)
	}))
	t.Cleanup(llmSrv.Close)

	dir := t.TempDir()
	snapshots := filepath.Join(dir, "output")
	if err := os.MkdirAll(snapshots, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, sym := range []string{"A", "B"} {
		body := fmt.Sprintf(`{"symbol":%q,"totalQuantity":10}`, sym)
		if err := os.WriteFile(filepath.Join(snapshots, sym+".json"), []byte(body), 0o644); err != nil {
			t.Fatalf("Failed to write snapshot: %v", err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("llm:\n  endpoint: "+llmSrv.URL+"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("SUPABASE_URL", storeSrv.URL)
	t.Setenv("SUPABASE_SERVICE_KEY", "service")
	t.Setenv("SUPABASE_SCHEMA", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("ANALYZER_LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("ANALYZER_LOG_RETENTION_DAYS", "")

	summaryDir := filepath.Join(dir, "run")
	if err := os.MkdirAll(summaryDir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	h.opts = &options{
		configPath: configPath,
		userID:     testUserID,
		outputDir:  snapshots,
		summaryDir: summaryDir,
	}
	return h
}

func (h *harness) run() error {
	return runAnalyze(context.Background(), &h.out, true, h.opts)
}

func (h *harness) summaryFiles(t *testing.T) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(h.opts.summaryDir, "batch_analysis_summary_*.json"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	return files
}

func TestRunAnalyze_BatchSuccess(t *testing.T) {
	h := newHarness(t, "A", "B")

	if err := h.run(); err != nil {
		t.Fatalf("Expected success, got %v\n%s", err, h.out.String())
	}
	if h.inserts != 2 {
		t.Errorf("Expected 2 inserts, got %d", h.inserts)
	}
	if files := h.summaryFiles(t); len(files) != 1 {
		t.Errorf("Expected 1 summary file, got %v", files)
	}
	if !strings.Contains(h.out.String(), "conversation 1001") {
		t.Errorf("Expected stored id on the console, got:\n%s", h.out.String())
	}
}

func TestRunAnalyze_BatchWithFailure(t *testing.T) {
	h := newHarness(t, "A", "C")

	err := h.run()
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("Expected errRunFailed, got %v", err)
	}
	if h.inserts != 1 {
		t.Errorf("Expected only A to be stored, got %d inserts", h.inserts)
	}
	if files := h.summaryFiles(t); len(files) != 1 {
		t.Errorf("Expected the summary to be written despite failures, got %v", files)
	}
	if !strings.Contains(h.out.String(), "JSON file not found for C") {
		t.Errorf("Expected failure reason on the console, got:\n%s", h.out.String())
	}
}

func TestRunAnalyze_NoSymbolsWritesEmptySummary(t *testing.T) {
	h := newHarness(t)

	if err := h.run(); err != nil {
		t.Fatalf("Expected success for an empty store, got %v", err)
	}
	if files := h.summaryFiles(t); len(files) != 1 {
		t.Errorf("Expected 1 summary file, got %v", files)
	}
}

func TestRunAnalyze_DiscoveryError(t *testing.T) {
	h := newHarness(t, "A")
	h.failDiscovery = true

	err := h.run()
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("Expected errRunFailed, got %v", err)
	}
	if files := h.summaryFiles(t); len(files) != 0 {
		t.Errorf("Expected no summary after a discovery error, got %v", files)
	}
	if h.inserts != 0 {
		t.Errorf("Expected no inserts, got %d", h.inserts)
	}
}

func TestRunAnalyze_SingleSymbol(t *testing.T) {
	h := newHarness(t)
	h.opts.symbol = "A"

	if err := h.run(); err != nil {
		t.Fatalf("Expected success, got %v\n%s", err, h.out.String())
	}
	if !strings.Contains(h.out.String(), "Hold.") {
		t.Errorf("Expected response text on the console, got:\n%s", h.out.String())
	}
	if files := h.summaryFiles(t); len(files) != 0 {
		t.Errorf("Single-symbol runs write no summary, got %v", files)
	}
}

func TestRunAnalyze_SingleSymbolFailure(t *testing.T) {
	h := newHarness(t)
	h.opts.symbol = "C"

	if err := h.run(); !errors.Is(err, errRunFailed) {
		t.Fatalf("Expected errRunFailed, got %v", err)
	}
	if h.inserts != 0 {
		t.Errorf("Expected no inserts, got %d", h.inserts)
	}
}

func TestRunAnalyze_MissingCredentials(t *testing.T) {
	h := newHarness(t, "A")
	t.Setenv("OPENROUTER_API_KEY", "")

	if err := h.run(); !errors.Is(err, errRunFailed) {
		t.Fatalf("Expected errRunFailed, got %v", err)
	}
	out := h.out.String()
	for _, want := range []string{"OPENROUTER_API_KEY is required", "OPENROUTER_API_KEY", "SUPABASE_URL", "SUPABASE_SERVICE_KEY"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, out)
		}
	}
	if h.inserts != 0 {
		t.Errorf("Expected no store traffic, got %d inserts", h.inserts)
	}
}
