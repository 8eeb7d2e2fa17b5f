// Package extract turns raw corpus lines into normalized entities and
// classified claims.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/poiesic/wikigraph/core"
)

// Claim datatypes that reference another entity.
const (
	DatatypeItem     = "wikibase-item"
	DatatypeProperty = "wikibase-property"
)

const (
	snakTypeValue = "value"
	claimKindStmt = "statement"
	language      = "en"
)

// Record is one parsed corpus line.
type Record struct {
	Entity core.Entity
	Claims []core.Claim
}

// Result accumulates the extraction output of one batch.
type Result struct {
	Entities          []core.Entity
	ReferenceLinks    []core.ReferenceLink
	LiteralClaimItems []core.LiteralClaimItem
}

// NormalizeLine trims a raw corpus line and strips a trailing list separator.
// It reports false for corpus delimiters such as "[" and "]", which are skipped.
func NormalizeLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, ",")
	if len(line) < 2 {
		return "", false
	}
	return line, true
}

// ParseRecord parses one normalized line. Failures are returned as *ParseError.
func ParseRecord(data []byte) (*Record, error) {
	if !json.Valid(data) {
		return nil, &ParseError{Err: errors.New("invalid JSON")}
	}

	kind, err := jsonparser.GetString(data, "type")
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("type: %w", err)}
	}
	id, err := jsonparser.GetString(data, "id")
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("id: %w", err)}
	}

	entity := core.Entity{Id: id, Kind: core.EntityKind(kind)}
	if err := core.ValidateEntityKind(entity.Kind); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("%w: %q", ErrUnknownEntityType, kind)}
	}
	if entity.Kind == core.EntityKindProperty {
		entity.Datatype, _ = jsonparser.GetString(data, "datatype")
	}

	labels, err := languageValues(data, "labels", language)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("labels: %w", err)}
	}
	if len(labels) > 0 {
		entity.Label = labels[0]
	}
	entity.Slug = EntitySlug(entity.Label)
	if entity.Descriptions, err = languageValues(data, "descriptions", language); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("descriptions: %w", err)}
	}
	if entity.Aliases, err = languageValues(data, "aliases", language); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("aliases: %w", err)}
	}
	if err := core.ValidateEntity(&entity); err != nil {
		return nil, &ParseError{Err: err}
	}

	claims, err := parseClaims(data, entity.Id)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("claims: %w", err)}
	}

	return &Record{Entity: entity, Claims: claims}, nil
}

// Add classifies the record's claims and appends everything to r.
func (r *Result) Add(record *Record) error {
	r.Entities = append(r.Entities, record.Entity)
	for _, claim := range record.Claims {
		link, item, err := Classify(claim)
		if err != nil {
			return &ParseError{Err: err}
		}
		switch {
		case link != nil:
			r.ReferenceLinks = append(r.ReferenceLinks, *link)
		case item != nil:
			r.LiteralClaimItems = append(r.LiteralClaimItems, *item)
		}
	}
	return nil
}

// Classify dispatches a claim by datatype. Reference datatypes yield a link,
// other datatypes a literal item; claims without a datatype yield neither.
func Classify(claim core.Claim) (*core.ReferenceLink, *core.LiteralClaimItem, error) {
	switch claim.Datatype {
	case "":
		return nil, nil, nil
	case DatatypeItem, DatatypeProperty:
		kind, relation := core.EntityKindItem, core.RelationItem
		if claim.Datatype == DatatypeProperty {
			kind, relation = core.EntityKindProperty, core.RelationProperty
		}
		link := &core.ReferenceLink{
			StartId:          claim.OwnerEntityId,
			EndId:            referenceTarget(claim.RawValue, kind),
			Relation:         relation,
			SourcePropertyId: claim.PropertyId,
			ClaimId:          claim.Id,
		}
		if err := core.ValidateReferenceLink(link); err != nil {
			return nil, nil, fmt.Errorf("claim %s: %w", claim.Id, err)
		}
		return link, nil, nil
	default:
		item := &core.LiteralClaimItem{
			StartId:          claim.OwnerEntityId,
			Relation:         Relationify(claim.Datatype),
			SourcePropertyId: claim.PropertyId,
			ClaimId:          claim.Id,
			GeneratedLabel:   Labelify(claim.Datatype),
			ValuePayload:     payload(claim.RawValue),
		}
		if err := core.ValidateLiteralClaimItem(item); err != nil {
			return nil, nil, fmt.Errorf("claim %s: %w", claim.Id, err)
		}
		return nil, item, nil
	}
}

// referenceTarget prefixes the numeric id of the referenced entity, falling
// back to the value's own id.
func referenceTarget(value any, kind core.EntityKind) string {
	obj, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	switch n := obj["numeric-id"].(type) {
	case int64:
		return kind.IDPrefix() + strconv.FormatInt(n, 10)
	case float64:
		return kind.IDPrefix() + strconv.FormatFloat(n, 'f', -1, 64)
	}
	id, _ := obj["id"].(string)
	return id
}

func payload(value any) map[string]any {
	if obj, ok := value.(map[string]any); ok {
		return obj
	}
	if value == nil {
		return map[string]any{}
	}
	return map[string]any{"value": value}
}

// languageValues reads a language map entry that is either a single
// {"value": ...} object or an array of them. Empty values are dropped.
func languageValues(data []byte, keys ...string) ([]string, error) {
	value, typ, _, err := jsonparser.Get(data, keys...)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := []string{}
	switch typ {
	case jsonparser.Object:
		if s, _ := jsonparser.GetString(value, "value"); s != "" {
			out = append(out, s)
		}
	case jsonparser.Array:
		_, err = jsonparser.ArrayEach(value, func(entry []byte, _ jsonparser.ValueType, _ int, _ error) {
			if s, _ := jsonparser.GetString(entry, "value"); s != "" {
				out = append(out, s)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// parseClaims keeps the value-state statements of every property.
func parseClaims(data []byte, owner string) ([]core.Claim, error) {
	value, typ, _, err := jsonparser.Get(data, "claims")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Entities without claims carry an empty array.
	if typ != jsonparser.Object {
		return nil, nil
	}

	var claims []core.Claim
	err = jsonparser.ObjectEach(value, func(_ []byte, statements []byte, typ jsonparser.ValueType, _ int) error {
		if typ != jsonparser.Array {
			return nil
		}
		var stmtErr error
		_, err := jsonparser.ArrayEach(statements, func(stmt []byte, _ jsonparser.ValueType, _ int, _ error) {
			if stmtErr != nil {
				return
			}
			claim, ok, err := parseClaim(stmt, owner)
			if err != nil {
				stmtErr = err
				return
			}
			if ok {
				claims = append(claims, claim)
			}
		})
		if err != nil {
			return err
		}
		return stmtErr
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func parseClaim(stmt []byte, owner string) (core.Claim, bool, error) {
	if kind, _ := jsonparser.GetString(stmt, "type"); kind != claimKindStmt {
		return core.Claim{}, false, nil
	}
	if snak, _ := jsonparser.GetString(stmt, "mainsnak", "snaktype"); snak != snakTypeValue {
		return core.Claim{}, false, nil
	}

	claim := core.Claim{OwnerEntityId: owner}
	claim.Id, _ = jsonparser.GetString(stmt, "id")
	claim.PropertyId, _ = jsonparser.GetString(stmt, "mainsnak", "property")
	claim.Datatype, _ = jsonparser.GetString(stmt, "mainsnak", "datatype")

	raw, typ, _, err := jsonparser.Get(stmt, "mainsnak", "datavalue", "value")
	if err != nil {
		return core.Claim{}, false, fmt.Errorf("claim %s value: %w", claim.Id, err)
	}
	claim.RawValue, err = decodeValue(raw, typ)
	if err != nil {
		return core.Claim{}, false, fmt.Errorf("claim %s value: %w", claim.Id, err)
	}
	return claim, true, nil
}

// decodeValue converts a JSON value to a storable Go value. Objects become
// flat maps whose nested objects and arrays are kept as raw JSON text.
func decodeValue(raw []byte, typ jsonparser.ValueType) (any, error) {
	switch typ {
	case jsonparser.String:
		return jsonparser.ParseString(raw)
	case jsonparser.Number:
		if n, err := jsonparser.ParseInt(raw); err == nil {
			return n, nil
		}
		return jsonparser.ParseFloat(raw)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(raw)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Array:
		return string(raw), nil
	case jsonparser.Object:
		obj := map[string]any{}
		err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, typ jsonparser.ValueType, _ int) error {
			var v any
			switch typ {
			case jsonparser.Object, jsonparser.Array:
				v = string(value)
			default:
				var err error
				if v, err = decodeValue(value, typ); err != nil {
					return err
				}
			}
			if v != nil {
				obj[string(key)] = v
			}
			return nil
		})
		return obj, err
	default:
		return nil, fmt.Errorf("unsupported value type %s", typ)
	}
}
