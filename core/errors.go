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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidLink indicates a ReferenceLink failed validation.
	ErrInvalidLink = errors.New("invalid reference link")

	// ErrInvalidLiteral indicates a LiteralClaimItem failed validation.
	ErrInvalidLiteral = errors.New("invalid literal claim")

	// ErrEmptyID indicates an identifier field is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrInvalidEntityKind indicates an unknown EntityKind value.
	ErrInvalidEntityKind = errors.New("invalid entity kind")

	// ErrInvalidIDPrefix indicates a reference target id does not match its kind.
	ErrInvalidIDPrefix = errors.New("id prefix does not match entity kind")

	// ErrEmptyRelation indicates a relation name is empty.
	ErrEmptyRelation = errors.New("relation cannot be empty")
)
