package ingestion

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressReporter_Report(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, 2000000)

	p.Report(1234567)
	assert.Contains(t, buf.String(), "Imported 1,234,567 lines - 61.728% done -> Remaining ")
}

func TestProgressReporter_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, 0)

	p.Report(42)
	assert.Equal(t, "Imported 42 lines\n", buf.String())
}

func TestProgressReporter_NilWriter(t *testing.T) {
	p := NewProgressReporter(nil, 10)
	assert.NotPanics(t, func() { p.Report(5) })
}

func TestProgressReporter_NeverGoesBackwards(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, 0)

	p.Report(30)
	p.Report(20)
	p.Report(40)
	assert.Equal(t, "Imported 30 lines\nImported 30 lines\nImported 40 lines\n", buf.String())
}
