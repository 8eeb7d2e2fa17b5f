package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/wikigraph/core"
	"github.com/poiesic/wikigraph/extract"
	"github.com/poiesic/wikigraph/storage"
)

// PropertyNameCache maps property ids to relation names derived from the
// persisted property labels. It is read-only once loaded.
type PropertyNameCache struct {
	names map[string]string
}

// LoadPropertyNameCache scans every property node in store.
// Properties whose label yields no relation name are left unmapped.
func LoadPropertyNameCache(ctx context.Context, store storage.GraphStore) (*PropertyNameCache, error) {
	names := make(map[string]string)
	err := store.MatchAll(ctx, []string{core.LabelEntity, core.LabelProperty}, func(ref storage.NodeRef) error {
		if relation := extract.PropertyRelation(ref.Label); relation != "" {
			names[ref.Id] = relation
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load property names: %w", err)
	}
	return &PropertyNameCache{names: names}, nil
}

// Relation returns the relation name for propertyId, or fallback when unmapped.
func (c *PropertyNameCache) Relation(propertyId, fallback string) string {
	if c != nil {
		if name, ok := c.names[propertyId]; ok {
			return name
		}
	}
	return fallback
}

// Len returns the number of mapped properties.
func (c *PropertyNameCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}
