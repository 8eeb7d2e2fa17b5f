package extract

import (
	"strings"
	"testing"

	"github.com/poiesic/wikigraph/storage"
	"github.com/stretchr/testify/assert"
)

func TestLabelify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"geo-shape", "GeoShape"},
		{"string", "String"},
		{"globe-coordinate", "GlobeCoordinate"},
		{"external-id", "ExternalId"},
		{"wikibase:lexeme", "WikibaseLexeme"},
		{"musical_NOTATION", "MusicalNotation"},
		{"  spaced  out ", "SpacedOut"},
		{"3d-model", "_3dModel"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Labelify(tt.in))
			assert.Equal(t, Labelify(tt.in), Labelify(tt.in))
		})
	}
}

func TestRelationify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"geo-shape", "GEO_SHAPE"},
		{"string", "STRING"},
		{"globe-coordinate", "GLOBE_COORDINATE"},
		{"wikibase:lexeme", "WIKIBASE_LEXEME"},
		{"a__b", "A_B"},
		{"musical_NOTATION", "MUSICAL_NOTATION"},
		{"  spaced  out ", "SPACED_OUT"},
		{"3d-model", "_3D_MODEL"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Relationify(tt.in))
		})
	}
}

func TestRelationify_MatchesLabelTokens(t *testing.T) {
	for _, datatype := range []string{"wikibase:lexeme", "geo-shape", "a__b", "tabular-data", "math"} {
		label := Labelify(datatype)
		relation := Relationify(datatype)
		assert.Equal(t, strings.ToUpper(label), strings.ReplaceAll(relation, "_", ""), datatype)
	}
}

func TestPropertyRelation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"instance of", "INSTANCE_OF"},
		{"ISO 639-1 code", "ISO_639_1_CODE"},
		{"2D rendering", "_2D_RENDERING"},
		{"coördinate location", "COORDINATE_LOCATION"},
		{"named after (person)", "NAMED_AFTER_PERSON"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PropertyRelation(tt.in))
		})
	}
}

func TestNames_AreStoreIdentifiers(t *testing.T) {
	for _, datatype := range []string{"3d-model", "geo-shape", "wikibase:lexeme", "2d-shape"} {
		assert.NoError(t, storage.ValidateIdentifier(Labelify(datatype)), datatype)
		assert.NoError(t, storage.ValidateIdentifier(Relationify(datatype)), datatype)
	}
	assert.NoError(t, storage.ValidateIdentifier(PropertyRelation("3D model")))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "Sao-Paulo", Slugify("São Paulo", '-'))
	assert.Equal(t, "a-b", Slugify("  a  -  b  ", '-'))
	assert.Equal(t, "ab", Slugify("a_b", '-'))
	assert.Equal(t, "a_b", Slugify("a_b", '_'))
	assert.Equal(t, "", Slugify("!!!", '-'))
}

func TestEntitySlug(t *testing.T) {
	assert.Equal(t, "douglas-adams", EntitySlug("Douglas Adams"))
	assert.Equal(t, "zurich", EntitySlug("Zürich"))
	assert.Equal(t, "", EntitySlug(""))
}
