package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier used for keys that have no natural id,
// such as edges.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EntityKind identifies the kind of a top-level corpus record.
type EntityKind string

const (
	// EntityKindItem is a regular entity ("Q" ids).
	EntityKindItem EntityKind = "item"
	// EntityKindProperty is a property entity ("P" ids).
	EntityKindProperty EntityKind = "property"
)

// Label returns the store label used for nodes of this kind.
func (k EntityKind) Label() string {
	switch k {
	case EntityKindItem:
		return LabelItem
	case EntityKindProperty:
		return LabelProperty
	default:
		return ""
	}
}

// IDPrefix returns the prefix applied to numeric ids referencing this kind.
func (k EntityKind) IDPrefix() string {
	switch k {
	case EntityKindItem:
		return "Q"
	case EntityKindProperty:
		return "P"
	default:
		return ""
	}
}

// Store labels and relations shared by the stages and the backends.
const (
	LabelEntity   = "Entity"
	LabelItem     = "Item"
	LabelProperty = "Property"
	LabelClaim    = "Claim"

	RelationItem     = "CLAIM_ITEM"
	RelationProperty = "CLAIM_PROPERTY"
)

// Entity is a normalized item or property, ready to become one graph node.
// Id is stable across runs and is the upsert key.
type Entity struct {
	Id           string
	Kind         EntityKind
	Label        string
	Slug         string
	Descriptions []string
	Aliases      []string
	Datatype     string // properties only
}

// Fields returns the node properties persisted for the entity.
func (e *Entity) Fields() map[string]any {
	fields := map[string]any{
		"id":           e.Id,
		"label":        e.Label,
		"slug":         e.Slug,
		"descriptions": nonNil(e.Descriptions),
		"aliases":      nonNil(e.Aliases),
	}
	if e.Kind == EntityKindProperty {
		fields["datatype"] = e.Datatype
	}
	return fields
}

// Claim is a retained statement attached to an entity.
type Claim struct {
	Id            string
	OwnerEntityId string
	PropertyId    string
	Datatype      string
	RawValue      any
}

// ReferenceLink is a claim whose value points at another entity.
type ReferenceLink struct {
	StartId          string
	EndId            string
	Relation         string
	SourcePropertyId string
	ClaimId          string
}

// LiteralClaimItem is a claim whose value becomes a generated node.
type LiteralClaimItem struct {
	StartId          string
	Relation         string
	SourcePropertyId string
	ClaimId          string
	GeneratedLabel   string
	ValuePayload     map[string]any
}

// Key returns the group key of the item under the given relation name.
func (l *LiteralClaimItem) Key(relation string) GroupKey {
	return GroupKey{Label: l.GeneratedLabel, Relation: relation}
}

// GroupKey co-locates literal claims that produce structurally identical writes.
type GroupKey struct {
	Label    string
	Relation string
}

// String renders the key as "Label/RELATION".
func (k GroupKey) String() string {
	return k.Label + "/" + k.Relation
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
