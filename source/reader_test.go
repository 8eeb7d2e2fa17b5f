package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.Next()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestReader_Next(t *testing.T) {
	r := NewReader(strings.NewReader("[\n{\"id\":\"Q1\"},\r\n{\"id\":\"Q2\"}"))

	assert.Equal(t, []string{"[", `{"id":"Q1"},`, `{"id":"Q2"}`}, readAll(t, r))
	assert.Equal(t, int64(3), r.Consumed())

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_Skip(t *testing.T) {
	r := NewReader(strings.NewReader("a\nb\nc\nd\n"), WithTotal(4))

	skipped, err := r.Skip(2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), skipped)
	assert.Equal(t, int64(2), r.Consumed())
	assert.Equal(t, int64(4), r.Total())

	assert.Equal(t, []string{"c", "d"}, readAll(t, r))
	assert.Equal(t, int64(4), r.Consumed())
}

func TestReader_SkipPastEnd(t *testing.T) {
	r := NewReader(strings.NewReader("a\nb\n"))

	skipped, err := r.Skip(10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), skipped)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_LongLine(t *testing.T) {
	long := strings.Repeat("x", defaultBufferSize+10)
	r := NewReader(strings.NewReader(long + "\nshort\n"))

	lines := readAll(t, r)
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], len(long))
	assert.Equal(t, "short", lines[1])
}

func TestReader_SkipLongLine(t *testing.T) {
	long := strings.Repeat("x", defaultBufferSize+10)
	r := NewReader(strings.NewReader(long + "\nshort\n"))

	skipped, err := r.Skip(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), skipped)
	assert.Equal(t, []string{"short"}, readAll(t, r))
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int64
	}{
		{"empty", "", 0},
		{"terminated", "a\nb\n", 2},
		{"unterminated", "a\nb", 2},
		{"blank lines", "\n\n\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "corpus.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			got, err := CountLines(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountLines_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := countLines(ctx, strings.NewReader("a\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
