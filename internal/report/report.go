// Package report renders run progress and results on the console.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"position-analyzer/internal/types"
)

// Console writes styled output to w. Colors are dropped automatically when w
// is not a terminal.
type Console struct {
	w io.Writer

	title   lipgloss.Style
	box     lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

func New(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w: w,
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1),
		box: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2),
		ok: r.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true),
		failed: r.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true),
		muted: r.NewStyle().
			Foreground(lipgloss.Color("#6B7280")),
		heading: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")),
	}
}

// Start announces a run for one symbol or for every stock in the latest snapshot.
func (c *Console) Start(symbol string) {
	target := "all stocks in latest positions"
	if symbol != "" {
		target = symbol
	}
	fmt.Fprintln(c.w, c.title.Render("📊 Automated position analysis: "+target))
}

// Outcome prints one symbol's result line, and the response text when asked.
func (c *Console) Outcome(o types.Outcome, withResponse bool) {
	if !o.Success {
		fmt.Fprintln(c.w, c.failed.Render("❌ "+o.Symbol)+" "+o.Error)
		return
	}
	line := c.ok.Render("✅ "+o.Symbol) + " " +
		c.muted.Render(fmt.Sprintf("%d chars, conversation %s", len(o.Response), o.ConversationID))
	fmt.Fprintln(c.w, line)
	if withResponse {
		fmt.Fprintln(c.w)
		fmt.Fprintln(c.w, c.heading.Render("AI RESPONSE"))
		fmt.Fprintln(c.w, o.Response)
		fmt.Fprintln(c.w)
	}
}

// Summary prints the totals of a batch run and where the summary file went.
func (c *Console) Summary(s *types.RunSummary, path string) {
	var b strings.Builder
	b.WriteString(c.heading.Render("BATCH PROCESSING SUMMARY"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Total symbols: %d\n", s.Total)
	b.WriteString(c.ok.Render(fmt.Sprintf("✅ Successful: %d", s.Successful)))
	b.WriteString("\n")
	b.WriteString(c.failed.Render(fmt.Sprintf("❌ Failed: %d", s.Failed)))

	var failures []string
	for _, o := range s.Results {
		if !o.Success {
			failures = append(failures, fmt.Sprintf("  - %s: %s", o.Symbol, o.Error))
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n\nFailed symbols:\n")
		b.WriteString(strings.Join(failures, "\n"))
	}
	if path != "" {
		b.WriteString("\n\n")
		b.WriteString(c.muted.Render("Summary saved to: " + path))
	}
	fmt.Fprintln(c.w, c.box.Render(b.String()))
}

// Snapshots prints the result of a snapshot generation run.
func (c *Console) Snapshots(written []string, failed map[string]string) {
	for _, p := range written {
		fmt.Fprintln(c.w, c.ok.Render("✅ ")+p)
	}
	for sym, msg := range failed {
		fmt.Fprintln(c.w, c.failed.Render("❌ "+sym)+" "+msg)
	}
	fmt.Fprintln(c.w, c.muted.Render(fmt.Sprintf("%d written, %d failed", len(written), len(failed))))
}

// Fatal prints a run-level failure.
func (c *Console) Fatal(msg string) {
	fmt.Fprintln(c.w, c.failed.Render("❌ "+msg))
}

// RequiredEnv lists the environment variables a run needs.
func (c *Console) RequiredEnv(names []string) {
	fmt.Fprintln(c.w, "\nMake sure these environment variables are set:")
	for _, n := range names {
		fmt.Fprintln(c.w, "  - "+n)
	}
}
