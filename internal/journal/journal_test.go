package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"position-analyzer/internal/types"
)

func fixedJournal(t *testing.T) *Journal {
	t.Helper()
	j := New(t.TempDir())
	j.now = func() time.Time { return time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC) }
	return j
}

func TestRecord_WritesOneLinePerOutcome(t *testing.T) {
	j := fixedJournal(t)
	outcomes := []types.Outcome{
		{Symbol: "META", Success: true, Response: "Hold.", ConversationID: "c1", Model: "m"},
		{Symbol: "COIN", Error: "Error processing COIN: boom"},
	}

	if err := j.Record("run-1", outcomes); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	f, err := os.Open(filepath.Join(j.Dir(), "2025-01-02.txt"))
	if err != nil {
		t.Fatalf("Expected daily file: %v", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("Invalid journal line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || !entries[0].Success || entries[0].Characters != 5 {
		t.Errorf("Unexpected first entry %+v", entries[0])
	}
	if entries[1].Success || entries[1].Error == "" {
		t.Errorf("Unexpected second entry %+v", entries[1])
	}
	if entries[1].Time != "2025-01-02T15:04:05Z" {
		t.Errorf("Expected journal time for outcome without timestamp, got %q", entries[1].Time)
	}
}

func TestCompressOlder(t *testing.T) {
	j := fixedJournal(t)
	old := filepath.Join(j.Dir(), "2024-12-01.txt")
	fresh := filepath.Join(j.Dir(), "2025-01-02.txt")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("Failed to seed %s: %v", p, err)
		}
	}
	stale := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	recent := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(fresh, recent, recent); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	n, err := j.CompressOlder(7)
	if err != nil {
		t.Fatalf("CompressOlder failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 compressed file, got %d", n)
	}
	if _, err := os.Stat(old + ".gz"); err != nil {
		t.Errorf("Expected %s.gz: %v", old, err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("Expected original to be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Recent file must be kept: %v", err)
	}
}

func TestCompressOlder_MissingDir(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "absent"))
	n, err := j.CompressOlder(3)
	if err != nil || n != 0 {
		t.Errorf("Expected no-op on missing dir, got %d, %v", n, err)
	}
}

func TestGzipFile_FailureLeavesNoArchive(t *testing.T) {
	dir := t.TempDir()
	// A directory with a journal name opens fine but cannot be read.
	p := filepath.Join(dir, "2024-12-01.txt")
	if err := os.Mkdir(p, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	if err := gzipFile(p); err == nil {
		t.Fatal("Expected compression to fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "2024-12-01.txt" {
			t.Errorf("Unexpected leftover %s", e.Name())
		}
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("Source must survive a failed compression: %v", err)
	}
}
