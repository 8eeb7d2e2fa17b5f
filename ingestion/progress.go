package ingestion

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
)

// ProgressReporter writes one advisory progress line per completed batch.
type ProgressReporter struct {
	mu      sync.Mutex
	writer  io.Writer
	total   int64
	highest int64
	eta     *ETA
}

// NewProgressReporter creates a reporter for a corpus of total lines.
// A nil writer disables reporting.
func NewProgressReporter(writer io.Writer, total int64) *ProgressReporter {
	return &ProgressReporter{
		writer: writer,
		total:  total,
		eta:    NewETA(total, DefaultETAWindow),
	}
}

// Report prints the progress after consumed corpus lines. A count lower
// than one already reported is raised to it.
func (p *ProgressReporter) Report(consumed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	consumed = max(consumed, p.highest)
	p.highest = consumed
	remaining := p.eta.Tick(consumed)
	if p.writer == nil {
		return
	}

	if p.total <= 0 {
		fmt.Fprintf(p.writer, "Imported %s lines\n", humanize.Comma(consumed))
		return
	}
	percent := float64(consumed) / float64(p.total) * 100
	fmt.Fprintf(p.writer, "Imported %s lines - %.3f%% done -> Remaining %s\n",
		humanize.Comma(consumed), percent, FormatETA(remaining))
}
