package extract

import (
	"errors"
	"testing"

	"github.com/poiesic/wikigraph/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemLine = `{"type":"item","id":"Q42",
 "labels":{"en":{"language":"en","value":"Douglas Adams"}},
 "descriptions":{"en":[{"language":"en","value":"English writer"},{"language":"en","value":""}]},
 "aliases":{"en":[{"language":"en","value":"Douglas Noël Adams"},{"language":"en","value":"DNA"}]},
 "claims":{
  "P31":[{"type":"statement","id":"Q42$1","mainsnak":{"snaktype":"value","property":"P31","datatype":"wikibase-item","datavalue":{"value":{"entity-type":"item","numeric-id":5,"id":"Q5"},"type":"wikibase-entityid"}}}],
  "P1687":[{"type":"statement","id":"Q42$2","mainsnak":{"snaktype":"value","property":"P1687","datatype":"wikibase-property","datavalue":{"value":{"entity-type":"property","numeric-id":1082},"type":"wikibase-entityid"}}}],
  "P1477":[{"type":"statement","id":"Q42$3","mainsnak":{"snaktype":"value","property":"P1477","datatype":"string","datavalue":{"value":"hello","type":"string"}}}],
  "P625":[{"type":"statement","id":"Q42$4","mainsnak":{"snaktype":"value","property":"P625","datatype":"globe-coordinate","datavalue":{"value":{"latitude":51.5,"longitude":-0.1,"precision":0.1,"globe":"http://www.wikidata.org/entity/Q2","extra":{"a":1}},"type":"globecoordinate"}}}],
  "P19":[{"type":"statement","id":"Q42$5","mainsnak":{"snaktype":"somevalue","property":"P19","datatype":"wikibase-item"}}],
  "P20":[{"type":"statement","id":"Q42$6","mainsnak":{"snaktype":"novalue","property":"P20","datatype":"wikibase-item"}}],
  "P21":[{"type":"claim","id":"Q42$7","mainsnak":{"snaktype":"value","property":"P21","datatype":"string","datavalue":{"value":"x","type":"string"}}}],
  "P22":[{"type":"statement","id":"Q42$8","mainsnak":{"snaktype":"value","property":"P22","datavalue":{"value":"no datatype","type":"string"}}}]
 }}`

func parseLine(t *testing.T, line string) *Record {
	t.Helper()
	normalized, ok := NormalizeLine(line)
	require.True(t, ok)
	record, err := ParseRecord([]byte(normalized))
	require.NoError(t, err)
	return record
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"[", "", false},
		{"]", "", false},
		{"", "", false},
		{"   \t", "", false},
		{`  {"id":"Q1"},  `, `{"id":"Q1"}`, true},
		{`{"id":"Q1"}`, `{"id":"Q1"}`, true},
	}
	for _, tt := range tests {
		got, ok := NormalizeLine(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseRecord_Item(t *testing.T) {
	record := parseLine(t, itemLine)

	assert.Equal(t, core.Entity{
		Id:           "Q42",
		Kind:         core.EntityKindItem,
		Label:        "Douglas Adams",
		Slug:         "douglas-adams",
		Descriptions: []string{"English writer"},
		Aliases:      []string{"Douglas Noël Adams", "DNA"},
	}, record.Entity)

	// Only value-state statements are kept.
	ids := make([]string, 0, len(record.Claims))
	for _, claim := range record.Claims {
		ids = append(ids, claim.Id)
		assert.Equal(t, "Q42", claim.OwnerEntityId)
	}
	assert.ElementsMatch(t, []string{"Q42$1", "Q42$2", "Q42$3", "Q42$4", "Q42$8"}, ids)
}

func TestParseRecord_Property(t *testing.T) {
	record := parseLine(t, `{"type":"property","id":"P31","datatype":"wikibase-item","labels":{"en":{"value":"instance of"}},"claims":[]},`)

	assert.Equal(t, core.EntityKindProperty, record.Entity.Kind)
	assert.Equal(t, "instance of", record.Entity.Label)
	assert.Equal(t, "wikibase-item", record.Entity.Datatype)
	assert.Equal(t, []string{}, record.Entity.Descriptions)
	assert.Equal(t, []string{}, record.Entity.Aliases)
	assert.Empty(t, record.Claims)
}

func TestParseRecord_NoLabel(t *testing.T) {
	record := parseLine(t, `{"type":"item","id":"Q1"}`)
	assert.Equal(t, "", record.Entity.Label)
	assert.Equal(t, "", record.Entity.Slug)
}

func TestParseRecord_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		is   error
	}{
		{"truncated", `{"type":"item","id":`, ErrMalformedRecord},
		{"unknown type", `{"type":"lexeme","id":"L1"}`, ErrUnknownEntityType},
		{"missing id", `{"type":"item"}`, ErrMalformedRecord},
		{"wrong prefix", `{"type":"item","id":"P1"}`, core.ErrInvalidIDPrefix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord([]byte(tt.line))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
			assert.ErrorIs(t, err, ErrMalformedRecord)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestResultAdd_Classification(t *testing.T) {
	var result Result
	require.NoError(t, result.Add(parseLine(t, itemLine)))

	require.Len(t, result.Entities, 1)
	require.Len(t, result.ReferenceLinks, 2)
	require.Len(t, result.LiteralClaimItems, 2)

	links := map[string]core.ReferenceLink{}
	for _, link := range result.ReferenceLinks {
		links[link.ClaimId] = link
	}
	assert.Equal(t, core.ReferenceLink{
		StartId: "Q42", EndId: "Q5", Relation: core.RelationItem, SourcePropertyId: "P31", ClaimId: "Q42$1",
	}, links["Q42$1"])
	assert.Equal(t, "P1082", links["Q42$2"].EndId)
	assert.Equal(t, core.RelationProperty, links["Q42$2"].Relation)

	items := map[string]core.LiteralClaimItem{}
	for _, item := range result.LiteralClaimItems {
		items[item.ClaimId] = item
	}
	str := items["Q42$3"]
	assert.Equal(t, "String", str.GeneratedLabel)
	assert.Equal(t, "STRING", str.Relation)
	assert.Equal(t, map[string]any{"value": "hello"}, str.ValuePayload)

	geo := items["Q42$4"]
	assert.Equal(t, "GlobeCoordinate", geo.GeneratedLabel)
	assert.Equal(t, "GLOBE_COORDINATE", geo.Relation)
	assert.Equal(t, 51.5, geo.ValuePayload["latitude"])
	assert.Equal(t, "http://www.wikidata.org/entity/Q2", geo.ValuePayload["globe"])
	assert.Equal(t, `{"a":1}`, geo.ValuePayload["extra"])
}

func TestClassify(t *testing.T) {
	t.Run("no datatype", func(t *testing.T) {
		link, item, err := Classify(core.Claim{Id: "c", OwnerEntityId: "Q1", RawValue: "x"})
		require.NoError(t, err)
		assert.Nil(t, link)
		assert.Nil(t, item)
	})

	t.Run("reference id fallback", func(t *testing.T) {
		link, _, err := Classify(core.Claim{
			Id: "c", OwnerEntityId: "Q1", PropertyId: "P31", Datatype: DatatypeItem,
			RawValue: map[string]any{"id": "Q7"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Q7", link.EndId)
	})

	t.Run("reference prefix mismatch", func(t *testing.T) {
		_, _, err := Classify(core.Claim{
			Id: "c", OwnerEntityId: "Q1", Datatype: DatatypeProperty,
			RawValue: map[string]any{"id": "Q7"},
		})
		assert.ErrorIs(t, err, core.ErrInvalidIDPrefix)
	})

	t.Run("geo-shape literal", func(t *testing.T) {
		_, item, err := Classify(core.Claim{
			Id: "c", OwnerEntityId: "Q1", PropertyId: "P3896", Datatype: "geo-shape",
			RawValue: "Data:Berlin.map",
		})
		require.NoError(t, err)
		assert.Equal(t, "GeoShape", item.GeneratedLabel)
		assert.Equal(t, "GEO_SHAPE", item.Relation)
		assert.Equal(t, map[string]any{"value": "Data:Berlin.map"}, item.ValuePayload)
	})

	t.Run("numeric literal", func(t *testing.T) {
		_, item, err := Classify(core.Claim{Id: "c", OwnerEntityId: "Q1", Datatype: "number", RawValue: int64(3)})
		require.NoError(t, err)
		assert.Equal(t, int64(3), item.ValuePayload["value"])
	})
}
