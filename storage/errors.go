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

package storage

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound indicates that the requested node was not found.
	ErrNotFound = errors.New("node not found")

	// ErrConflict indicates write-write contention in the store. It is the only
	// transient failure class: the identical write may be resubmitted.
	ErrConflict = errors.New("write conflict")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")

	// ErrUnsupportedValue indicates a field value of a type the store cannot persist.
	ErrUnsupportedValue = errors.New("unsupported field value")
)

// IsTransient reports whether err is a contention failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConflict)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that a label or relation name is a plain identifier.
// Labels and relations are runtime strings derived from corpus data, so backends
// that splice them into queries must reject anything else.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: bad identifier %q", ErrInvalidQuery, name)
	}
	return nil
}

// ValidateLabels checks every label with ValidateIdentifier and requires at least one.
func ValidateLabels(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("%w: at least one label required", ErrInvalidQuery)
	}
	for _, label := range labels {
		if err := ValidateIdentifier(label); err != nil {
			return err
		}
	}
	return nil
}
