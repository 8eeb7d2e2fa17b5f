package ingestion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/poiesic/wikigraph/core"
	"github.com/poiesic/wikigraph/storage"
	"golang.org/x/sync/errgroup"
)

// entityReferencePrefix marks literal fields that point at an entity URL.
const entityReferencePrefix = "http"

// derivedRewires turn entity URLs held by generated nodes into edges.
var derivedRewires = []storage.Rewire{
	{Label: "Quantity", Field: "unit", Relation: "UNIT_TYPE", TargetLabel: core.LabelEntity, Prefix: entityReferencePrefix},
	{Label: "GlobeCoordinate", Field: "globe", Relation: "GLOBE_TYPE", TargetLabel: core.LabelEntity, Prefix: entityReferencePrefix},
}

// schemaBootstrapper is implemented by stores that can create their key constraints.
type schemaBootstrapper interface {
	EnsureSchema(ctx context.Context)
}

func (p *Pipeline) runClear(ctx context.Context) error {
	return p.writer.Do(ctx, "clear", p.store.Clear)
}

func (p *Pipeline) runEntities(ctx context.Context) error {
	if s, ok := p.store.(schemaBootstrapper); ok {
		s.EnsureSchema(ctx)
	}
	return p.stream(ctx, StageEntities, p.writeEntities)
}

// writeEntities upserts a batch's entities, one write per kind.
func (p *Pipeline) writeEntities(ctx context.Context, batch *Batch) error {
	byKind := map[core.EntityKind][]storage.Node{}
	for i := range batch.Entities {
		entity := &batch.Entities[i]
		byKind[entity.Kind] = append(byKind[entity.Kind], storage.Node{Key: entity.Id, Fields: entity.Fields()})
	}
	for _, kind := range []core.EntityKind{core.EntityKindItem, core.EntityKindProperty} {
		labels := []string{core.LabelEntity, kind.Label()}
		if err := p.writer.UpsertNodes(ctx, storage.CreateIfAbsent, labels, byKind[kind]); err != nil {
			return fmt.Errorf("upsert %s entities: %w", kind, err)
		}
	}
	return nil
}

func (p *Pipeline) runClaims(ctx context.Context) error {
	cache, err := LoadPropertyNameCache(ctx, p.store)
	if err != nil {
		return err
	}
	p.logger.Info("property names loaded", "properties", cache.Len())

	stash := NewStash(p.metrics)
	err = p.stream(ctx, StageClaims, func(ctx context.Context, batch *Batch) error {
		if err := p.writeLinks(ctx, cache, batch.ReferenceLinks); err != nil {
			return err
		}
		for _, item := range batch.LiteralClaimItems {
			stash.Push(item.Key(cache.Relation(item.SourcePropertyId, item.Relation)), item)
		}
		return p.writeGroups(ctx, stash.Flush(p.bucket))
	})
	if err != nil {
		return err
	}

	remainder := stash.FlushRemainder()
	p.logger.Debug("flushing stash remainder", "groups", len(remainder))
	return p.writeGroups(ctx, remainder)
}

// writeLinks merges reference links, one write per relation.
func (p *Pipeline) writeLinks(ctx context.Context, cache *PropertyNameCache, links []core.ReferenceLink) error {
	byRelation := map[string][]storage.Edge{}
	for _, link := range links {
		relation := cache.Relation(link.SourcePropertyId, link.Relation)
		byRelation[relation] = append(byRelation[relation], storage.Edge{
			StartKey: link.StartId,
			EndKey:   link.EndId,
			Property: link.SourcePropertyId,
			ClaimId:  link.ClaimId,
		})
	}

	relations := make([]string, 0, len(byRelation))
	for relation := range byRelation {
		relations = append(relations, relation)
	}
	sort.Strings(relations)

	for _, relation := range relations {
		if err := p.writer.MergeEdges(ctx, relation, core.LabelEntity, core.LabelEntity, byRelation[relation]); err != nil {
			return fmt.Errorf("merge %s links: %w", relation, err)
		}
	}
	return nil
}

// writeGroups writes flushed stash groups with bounded concurrency.
func (p *Pipeline) writeGroups(ctx context.Context, groups []Group) error {
	if len(groups) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.groupConcurrency)
	for _, group := range groups {
		g.Go(func() error {
			return p.writeGroup(ctx, group)
		})
	}
	return g.Wait()
}

// writeGroup upserts a group's generated nodes, then links them to their owners.
func (p *Pipeline) writeGroup(ctx context.Context, group Group) error {
	nodes := make([]storage.Node, 0, len(group.Items))
	edges := make([]storage.Edge, 0, len(group.Items))
	for _, item := range group.Items {
		nodes = append(nodes, storage.Node{Key: item.ClaimId, Fields: item.ValuePayload})
		edges = append(edges, storage.Edge{
			StartKey: item.StartId,
			EndKey:   item.ClaimId,
			Property: item.SourcePropertyId,
			ClaimId:  item.ClaimId,
		})
	}

	labels := []string{group.Key.Label, core.LabelClaim}
	if err := p.writer.UpsertNodes(ctx, storage.MergeOverwrite, labels, nodes); err != nil {
		return fmt.Errorf("upsert %s nodes: %w", group.Key, err)
	}
	if err := p.writer.MergeEdges(ctx, group.Key.Relation, core.LabelEntity, core.LabelClaim, edges); err != nil {
		return fmt.Errorf("merge %s edges: %w", group.Key, err)
	}
	return nil
}

func (p *Pipeline) runDerive(ctx context.Context) error {
	for _, rewire := range derivedRewires {
		start := time.Now()
		rewired, err := p.writer.RunStructuralUpdate(ctx, rewire)
		if err != nil {
			return fmt.Errorf("link %s.%s: %w", rewire.Label, rewire.Field, err)
		}
		if p.verbose {
			p.logger.Info("structural update applied",
				"label", rewire.Label,
				"relation", rewire.Relation,
				"rewired", rewired,
				"elapsed", time.Since(start).Round(time.Millisecond))
		}
	}
	return nil
}
