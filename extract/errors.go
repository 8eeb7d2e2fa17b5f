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

package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord indicates a corpus line is not a well-formed record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnknownEntityType indicates a record whose type is neither item nor property.
	ErrUnknownEntityType = errors.New("unknown entity type")
)

// ParseError reports a record that could not be parsed. It matches
// ErrMalformedRecord as well as its cause.
type ParseError struct {
	Line int64 // 1-based corpus line, 0 when unknown
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v: %v", e.Line, ErrMalformedRecord, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrMalformedRecord, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}
