// Package journal keeps a daily JSON-lines record of analysis outcomes.
package journal

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"position-analyzer/internal/types"
)

const (
	dirEnv       = "ANALYZER_LOG_DIR"
	retentionEnv = "ANALYZER_LOG_RETENTION_DAYS"
)

// Entry is one journaled outcome.
type Entry struct {
	Time           string `json:"time"`
	RunID          string `json:"run_id,omitempty"`
	Symbol         string `json:"symbol"`
	Success        bool   `json:"success"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Characters     int    `json:"characters"`
	Error          string `json:"error,omitempty"`
}

// Journal appends entries to <dir>/YYYY-MM-DD.txt.
type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

// FromEnv uses ANALYZER_LOG_DIR, defaulting to ./logs.
func FromEnv() *Journal {
	return New(os.Getenv(dirEnv))
}

// RetentionDaysFromEnv returns ANALYZER_LOG_RETENTION_DAYS, or 0 when unset
// or not a number.
func RetentionDaysFromEnv() int {
	n, err := strconv.Atoi(os.Getenv(retentionEnv))
	if err != nil {
		return 0
	}
	return n
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) dailyPath(t time.Time) string {
	return filepath.Join(j.dir, t.Format("2006-01-02")+".txt")
}

// Append writes e as one line of today's file.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	if e.Time == "" {
		e.Time = types.Timestamp(now)
	}
	p := j.dailyPath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// Record journals every outcome of a run.
func (j *Journal) Record(runID string, outcomes []types.Outcome) error {
	for _, o := range outcomes {
		if err := j.Append(FromOutcome(runID, o)); err != nil {
			return err
		}
	}
	return nil
}

func FromOutcome(runID string, o types.Outcome) Entry {
	return Entry{
		Time:           o.Timestamp,
		RunID:          runID,
		Symbol:         o.Symbol,
		Success:        o.Success,
		ConversationID: o.ConversationID,
		Model:          o.Model,
		Characters:     len(o.Response),
		Error:          o.Error,
	}
}

// CompressOlder gzips daily files last modified more than retentionDays ago
// and removes the originals. It returns the number of files compressed.
func (j *Journal) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == j.dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := gzipFile(p); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		compressed++
		return nil
	})
	return compressed, err
}

// gzipFile replaces p with p.gz. The archive is written under a temporary
// name and renamed only once complete, so an existing p.gz is always whole
// and wins over p.
func gzipFile(p string) (err error) {
	gz := p + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(p), filepath.Base(gz)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	gw := gzip.NewWriter(tmp)
	if _, err = io.Copy(gw, in); err != nil {
		return err
	}
	if err = gw.Close(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), gz); err != nil {
		return err
	}
	return os.Remove(p)
}
