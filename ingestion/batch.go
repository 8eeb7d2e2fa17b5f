// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/poiesic/wikigraph/extract"
	"github.com/poiesic/wikigraph/source"
)

// Batch is the extraction output of one builder cycle.
type Batch struct {
	extract.Result

	// Records is the number of records parsed, corpus delimiters excluded.
	Records int
}

// Empty reports whether the source was exhausted before any record was read.
func (b *Batch) Empty() bool {
	return b.Records == 0
}

type rawLine struct {
	number int64
	text   string
}

// BatchBuilder pulls bounded batches of records from a single source.
type BatchBuilder struct {
	mu     sync.Mutex
	reader *source.Reader
	bucket int
}

// NewBatchBuilder creates a builder reading up to bucket records per batch.
func NewBatchBuilder(reader *source.Reader, bucket int) (*BatchBuilder, error) {
	if reader == nil {
		return nil, ErrSourceRequired
	}
	if bucket < 1 {
		return nil, ErrInvalidBucket
	}
	return &BatchBuilder{reader: reader, bucket: bucket}, nil
}

// Pull reads up to bucket records and extracts them. Reads from the source
// are serialized across callers; parsing runs outside the lock. An empty
// batch signals that the source is exhausted.
func (b *BatchBuilder) Pull(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines, err := b.read()
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	for _, line := range lines {
		record, err := extract.ParseRecord([]byte(line.text))
		if err == nil {
			err = batch.Add(record)
		}
		if err != nil {
			var perr *extract.ParseError
			if errors.As(err, &perr) {
				perr.Line = line.number
			}
			return nil, err
		}
		batch.Records++
	}
	return batch, nil
}

// read collects up to bucket non-delimiter lines.
func (b *BatchBuilder) read() ([]rawLine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := make([]rawLine, 0, b.bucket)
	for len(lines) < b.bucket {
		text, err := b.reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		normalized, ok := extract.NormalizeLine(text)
		if !ok {
			continue
		}
		lines = append(lines, rawLine{number: b.reader.Consumed(), text: normalized})
	}
	return lines, nil
}
