// Package report collects one record per considered task and renders the
// run summary. The report is the only mutable state shared between workers,
// so appends are synchronized; after the run it is read-only.
package report

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/vk/taskforge/internal/project"
)

// Record is the outcome of a single task.
type Record struct {
	Address  string
	Status   project.Status
	Duration time.Duration
	Output   string
	Err      error
}

// Report is an append-only sink of task records for one run.
type Report struct {
	runID   string
	started time.Time

	mu      sync.Mutex
	records []Record
}

// New creates an empty report with a fresh run ID.
func New() *Report {
	return &Report{
		runID:   uuid.NewString(),
		started: time.Now(),
	}
}

// RunID returns the unique identifier of this run.
func (r *Report) RunID() string {
	return r.runID
}

// Add appends a record. Safe for concurrent use by workers.
func (r *Report) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of all records, sorted by address for stable output.
func (r *Report) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Failed reports whether any task ended in the Failed status.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Status == project.Failed {
			return true
		}
	}
	return false
}

var (
	succeededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	addressStyle   = lipgloss.NewStyle().Bold(true)
	outputStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(4)
)

func statusStyle(s project.Status) lipgloss.Style {
	switch s {
	case project.Succeeded:
		return succeededStyle
	case project.Failed:
		return failedStyle
	default:
		return skippedStyle
	}
}

// Render writes the human-readable summary: one line per task, the captured
// output of failed tasks, and totals.
func (r *Report) Render(w io.Writer) {
	var counts [6]int
	for _, rec := range r.Records() {
		counts[rec.Status]++
		fmt.Fprintf(w, "%s  %s  (%s)\n",
			statusStyle(rec.Status).Render(fmt.Sprintf("%-9s", rec.Status)),
			addressStyle.Render(rec.Address),
			rec.Duration.Round(time.Millisecond))
		if rec.Status == project.Failed {
			if rec.Err != nil {
				fmt.Fprintln(w, outputStyle.Render("cause: "+rec.Err.Error()))
			}
			if rec.Output != "" {
				fmt.Fprintln(w, outputStyle.Render(rec.Output))
			}
		}
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d skipped (run %s, %s)\n",
		counts[project.Succeeded], counts[project.Failed], counts[project.Skipped],
		r.runID, time.Since(r.started).Round(time.Millisecond))
}
