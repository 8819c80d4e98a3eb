package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"position-analyzer/internal/types"
)

// Loader reads <dir>/<SYMBOL>.json snapshot files. Nothing is cached
// between calls.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Path returns the file a symbol's snapshot lives in.
func (l *Loader) Path(symbol string) string {
	return filepath.Join(l.dir, symbol+".json")
}

// Load parses the snapshot for symbol. A missing file is reported as a
// not-found error so callers can tell it apart from unreadable data.
func (l *Loader) Load(_ context.Context, symbol string) (types.Document, error) {
	path := l.Path(symbol)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.NotFoundError("load snapshot", fmt.Errorf("JSON file not found: %s", path))
		}
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var doc types.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return doc, nil
}
