// Package source provides sequential, resumable access to a line-delimited corpus.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

const defaultBufferSize = 4 << 20

// Reader hands out corpus lines in order. It never rewinds.
// Next and Skip must not be called concurrently; Consumed and Total may be.
type Reader struct {
	r        *bufio.Reader
	closer   io.Closer
	total    int64
	consumed atomic.Int64
	done     bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithTotal sets the number of lines the corpus holds.
func WithTotal(total int64) Option {
	return func(r *Reader) {
		r.total = total
	}
}

// NewReader wraps rd. Lines are read through a large buffer so records
// of several megabytes are handled without growing per call.
func NewReader(rd io.Reader, opts ...Option) *Reader {
	r := &Reader{r: bufio.NewReaderSize(rd, defaultBufferSize)}
	if c, ok := rd.(io.Closer); ok {
		r.closer = c
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open opens the corpus at path.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	return NewReader(f, opts...), nil
}

// Next returns the next line without its terminator, or io.EOF once the stream is exhausted.
func (r *Reader) Next() (string, error) {
	if r.done {
		return "", io.EOF
	}
	line, err := r.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read corpus: %w", err)
		}
		r.done = true
		if line == "" {
			return "", io.EOF
		}
	}
	r.consumed.Add(1)
	return trimEOL(line), nil
}

// Skip advances past the next n lines without materializing them and
// returns how many were skipped. Fewer than n means the stream ended.
func (r *Reader) Skip(n int64) (int64, error) {
	skipped := int64(0)
	for skipped < n && !r.done {
		_, isPrefix, err := r.r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
				break
			}
			return skipped, fmt.Errorf("skip corpus: %w", err)
		}
		if isPrefix {
			continue
		}
		skipped++
		r.consumed.Add(1)
	}
	return skipped, nil
}

// Total returns the configured corpus size, or 0 when unknown.
func (r *Reader) Total() int64 {
	return r.total
}

// Consumed returns the number of lines read or skipped so far.
func (r *Reader) Consumed() int64 {
	return r.consumed.Load()
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// CountLines counts the lines of the file at path. A final line without
// a terminator counts as a line.
func CountLines(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return countLines(ctx, f)
}

func countLines(ctx context.Context, rd io.Reader) (int64, error) {
	buf := make([]byte, defaultBufferSize)
	var count int64
	var last byte = '\n'
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		n, err := rd.Read(buf)
		if n > 0 {
			count += int64(bytes.Count(buf[:n], []byte{'\n'}))
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("count lines: %w", err)
		}
	}
	if last != '\n' {
		count++
	}
	return count, nil
}

func trimEOL(line string) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return line[:n]
}
