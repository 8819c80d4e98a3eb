package analyzer

import (
	"fmt"
	"path/filepath"
	"time"

	"position-analyzer/internal/jsonfile"
	"position-analyzer/internal/types"
)

// SummaryFileName names the summary of a batch run finished at t.
func SummaryFileName(t time.Time) string {
	return fmt.Sprintf("batch_analysis_summary_%s.json", t.Format("20060102_150405"))
}

// WriteSummary writes summary to dir and returns the file path.
func WriteSummary(dir string, summary *types.RunSummary, t time.Time) (string, error) {
	path := filepath.Join(dir, SummaryFileName(t))
	if err := jsonfile.WriteAtomic(path, summary); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}
