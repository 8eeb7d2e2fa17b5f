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

import (
	"fmt"
	"strings"
)

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Id must not be empty
//   - Kind must be item or property
//   - Id must carry the prefix of its kind ("Q" or "P")
//
// NOT validated:
//   - Label (entities without an English label are kept)
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyID)
	}

	if err := ValidateEntityKind(entity.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	if !strings.HasPrefix(entity.Id, entity.Kind.IDPrefix()) {
		return fmt.Errorf("%w: %w: %s", ErrInvalidEntity, ErrInvalidIDPrefix, entity.Id)
	}

	return nil
}

// ValidateEntityKind checks that kind is one of the known kinds.
func ValidateEntityKind(kind EntityKind) error {
	switch kind {
	case EntityKindItem, EntityKindProperty:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEntityKind, kind)
	}
}

// ValidateReferenceLink validates a ReferenceLink.
//
// Validation rules:
//   - StartId, EndId and ClaimId must not be empty
//   - Relation must be CLAIM_ITEM or CLAIM_PROPERTY
//   - EndId must be prefixed with "Q" for CLAIM_ITEM and "P" for CLAIM_PROPERTY
func ValidateReferenceLink(link *ReferenceLink) error {
	if link == nil {
		return fmt.Errorf("%w: link is nil", ErrInvalidLink)
	}

	if link.StartId == "" || link.EndId == "" || link.ClaimId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLink, ErrEmptyID)
	}

	var want EntityKind
	switch link.Relation {
	case RelationItem:
		want = EntityKindItem
	case RelationProperty:
		want = EntityKindProperty
	case "":
		return fmt.Errorf("%w: %w", ErrInvalidLink, ErrEmptyRelation)
	default:
		return fmt.Errorf("%w: unknown relation %q", ErrInvalidLink, link.Relation)
	}

	if !strings.HasPrefix(link.EndId, want.IDPrefix()) {
		return fmt.Errorf("%w: %w: %s", ErrInvalidLink, ErrInvalidIDPrefix, link.EndId)
	}

	return nil
}

// ValidateLiteralClaimItem validates a LiteralClaimItem.
func ValidateLiteralClaimItem(item *LiteralClaimItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidLiteral)
	}

	if item.StartId == "" || item.ClaimId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLiteral, ErrEmptyID)
	}

	if item.Relation == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLiteral, ErrEmptyRelation)
	}

	if item.GeneratedLabel == "" {
		return fmt.Errorf("%w: generated label cannot be empty", ErrInvalidLiteral)
	}

	return nil
}
