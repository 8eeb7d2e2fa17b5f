package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/poiesic/wikigraph/core"
	"github.com/poiesic/wikigraph/extract"
	"github.com/poiesic/wikigraph/storage"
	"github.com/poiesic/wikigraph/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	itemAlpha = `{"type":"item","id":"Q1","labels":{"en":{"language":"en","value":"Alpha"}},"claims":{` +
		`"P31":[{"type":"statement","id":"Q1$ref","mainsnak":{"snaktype":"value","property":"P31","datatype":"wikibase-item","datavalue":{"value":{"entity-type":"item","numeric-id":2},"type":"wikibase-entityid"}}}],` +
		`"P1":[{"type":"statement","id":"Q1$str","mainsnak":{"snaktype":"value","property":"P1","datatype":"string","datavalue":{"value":"hello","type":"string"}}}]}}`
	itemBeta = `{"type":"item","id":"Q2","labels":{"en":{"language":"en","value":"Beta"}},"claims":{` +
		`"P2":[{"type":"statement","id":"Q2$qty","mainsnak":{"snaktype":"value","property":"P2","datatype":"quantity","datavalue":{"value":{"amount":"+5","unit":"http://www.wikidata.org/entity/Q1"},"type":"quantity"}}}]}}`
	propNickname = `{"type":"property","id":"P1","datatype":"string","labels":{"en":{"language":"en","value":"nickname"}},"claims":{}}`
)

func writeCorpus(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func defaultCorpus(t *testing.T) string {
	return writeCorpus(t, "[", itemAlpha+",", itemBeta+",", propNickname, "]")
}

func newTestPipeline(t *testing.T, store storage.GraphStore, corpus string, opts ...Option) *Pipeline {
	t.Helper()
	base := []Option{
		WithCorpus(corpus),
		WithBucket(10),
		WithConcurrency(1),
		WithWorkerJitter(0),
		WithRetryPolicy(testPolicy(3)),
	}
	p, err := NewPipeline(store, append(base, opts...)...)
	require.NoError(t, err)
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(&recordingStore{}, WithBucket(0))
	assert.ErrorIs(t, err, ErrInvalidBucket)

	_, err = NewPipeline(&recordingStore{}, WithConcurrency(0))
	assert.ErrorIs(t, err, ErrInvalidConcurrency)

	_, err = NewPipeline(&recordingStore{}, WithRetryPolicy(RetryPolicy{}))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestPipeline_EndToEndWrites(t *testing.T) {
	store := &recordingStore{}
	corpus := writeCorpus(t, "[", itemAlpha+",", `{"type":"item","id":"Q2"},`, propNickname, "]")
	p := newTestPipeline(t, store, corpus, WithStages(StageSet{Entities: true, Claims: true, Derive: true}))

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 0, store.cleared)

	var entityIds []string
	var generated []upsertCall
	for _, call := range store.upserts {
		switch call.mode {
		case storage.CreateIfAbsent:
			assert.Equal(t, core.LabelEntity, call.labels[0])
			for _, node := range call.nodes {
				entityIds = append(entityIds, node.Key)
			}
		case storage.MergeOverwrite:
			generated = append(generated, call)
		}
	}
	sort.Strings(entityIds)
	assert.Equal(t, []string{"P1", "Q1", "Q2"}, entityIds)

	require.Len(t, generated, 1)
	assert.Equal(t, []string{"String", core.LabelClaim}, generated[0].labels)
	require.Len(t, generated[0].nodes, 1)
	assert.Equal(t, "Q1$str", generated[0].nodes[0].Key)
	assert.Equal(t, map[string]any{"value": "hello"}, generated[0].nodes[0].Fields)

	require.Len(t, store.merges, 2)
	byRelation := map[string]mergeCall{}
	for _, call := range store.merges {
		byRelation[call.relation] = call
	}
	link := byRelation[core.RelationItem]
	require.Len(t, link.edges, 1)
	assert.Equal(t, storage.Edge{StartKey: "Q1", EndKey: "Q2", Property: "P31", ClaimId: "Q1$ref"}, link.edges[0])

	literal := byRelation["STRING"]
	assert.Equal(t, core.LabelEntity, literal.startLabel)
	assert.Equal(t, core.LabelClaim, literal.endLabel)
	require.Len(t, literal.edges, 1)
	assert.Equal(t, "Q1$str", literal.edges[0].EndKey)

	assert.Len(t, store.rewires, 2)
}

func TestPipeline_MappedPropertyRelation(t *testing.T) {
	store := &recordingStore{properties: []storage.NodeRef{{Id: "P1", Label: "nickname"}, {Id: "P9", Label: ""}}}
	p := newTestPipeline(t, store, defaultCorpus(t), WithStages(StageSet{Claims: true}))

	require.NoError(t, p.Run(context.Background()))

	relations := map[string]bool{}
	for _, call := range store.merges {
		relations[call.relation] = true
	}
	assert.True(t, relations["NICKNAME"])
	assert.True(t, relations[core.RelationItem])
	assert.True(t, relations["QUANTITY"])
	assert.False(t, relations["STRING"])
}

func TestPipeline_Badger(t *testing.T) {
	ctx := context.Background()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	p := newTestPipeline(t, store, defaultCorpus(t), WithConcurrency(2), WithBucket(1))
	require.NoError(t, p.Run(ctx))

	alpha, err := store.GetNode(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", alpha.Fields["label"])
	assert.Equal(t, "alpha", alpha.Fields["slug"])
	assert.True(t, alpha.HasLabels(core.LabelEntity, core.LabelItem))

	prop, err := store.GetNode(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "string", prop.Fields["datatype"])

	str, err := store.GetNode(ctx, "Q1$str")
	require.NoError(t, err)
	assert.Equal(t, "hello", str.Fields["value"])
	assert.True(t, str.HasLabels("String", core.LabelClaim))

	edges, err := store.EdgesFrom(ctx, "Q1")
	require.NoError(t, err)
	targets := map[string]string{}
	for _, edge := range edges {
		targets[edge.Relation] = edge.EndKey
	}
	assert.Equal(t, map[string]string{core.RelationItem: "Q2", "NICKNAME": "Q1$str"}, targets)

	// Derive rewired the quantity unit into an edge.
	qty, err := store.GetNode(ctx, "Q2$qty")
	require.NoError(t, err)
	assert.NotContains(t, qty.Fields, "unit")
	assert.Equal(t, "+5", qty.Fields["amount"])
	unitEdges, err := store.EdgesFrom(ctx, "Q2$qty")
	require.NoError(t, err)
	require.Len(t, unitEdges, 1)
	assert.Equal(t, "UNIT_TYPE", unitEdges[0].Relation)
	assert.Equal(t, "Q1", unitEdges[0].EndKey)
}

func TestPipeline_EntitiesIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	corpus := defaultCorpus(t)
	p := newTestPipeline(t, store, corpus, WithStages(StageSet{Entities: true}))
	require.NoError(t, p.Run(ctx))
	first, err := store.Stats(ctx)
	require.NoError(t, err)

	// A second run over a corpus with changed labels must not overwrite.
	changed := writeCorpus(t, strings.Replace(itemAlpha, "Alpha", "Changed", 1))
	p = newTestPipeline(t, store, changed, WithStages(StageSet{Entities: true}))
	require.NoError(t, p.Run(ctx))
	p = newTestPipeline(t, store, corpus, WithStages(StageSet{Entities: true}))
	require.NoError(t, p.Run(ctx))

	second, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	alpha, err := store.GetNode(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", alpha.Fields["label"])
}

func TestPipeline_StageErrorAbortsLaterStages(t *testing.T) {
	boom := errors.New("constraint violation")
	store := &recordingStore{
		upsertHook: func(upsertCall) error { return boom },
	}
	p := newTestPipeline(t, store, defaultCorpus(t))

	err := p.Run(context.Background())
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageEntities, stageErr.Stage)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, store.cleared)
	assert.Empty(t, store.merges)
	assert.Empty(t, store.rewires)
}

func TestPipeline_MalformedRecordIsFatal(t *testing.T) {
	store := &recordingStore{}
	corpus := writeCorpus(t, "[", itemAlpha+",", `{"type":"item","id":`, "]")
	p := newTestPipeline(t, store, corpus, WithStages(StageSet{Entities: true, Derive: true}))

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, extract.ErrMalformedRecord)
	assert.Empty(t, store.rewires)
}

func TestPipeline_Skip(t *testing.T) {
	store := &recordingStore{}
	p := newTestPipeline(t, store, defaultCorpus(t), WithSkip(2), WithStages(StageSet{Entities: true}))

	require.NoError(t, p.Run(context.Background()))

	var ids []string
	for _, call := range store.upserts {
		for _, node := range call.nodes {
			ids = append(ids, node.Key)
		}
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"P1", "Q2"}, ids)
}

func TestPipeline_TransientConflictsRetried(t *testing.T) {
	failures := 0
	store := &recordingStore{}
	store.upsertHook = func(upsertCall) error {
		store.mu.Lock()
		defer store.mu.Unlock()
		if failures < 2 {
			failures++
			return storage.ErrConflict
		}
		return nil
	}
	p := newTestPipeline(t, store, defaultCorpus(t), WithStages(StageSet{Entities: true}))

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 3, store.nodeCount())
}

func TestPipeline_ClearRetriesConflicts(t *testing.T) {
	attempts := 0
	store := &recordingStore{}
	store.clearHook = func() error {
		attempts++
		if attempts < 3 {
			return storage.ErrConflict
		}
		return nil
	}
	p := newTestPipeline(t, store, defaultCorpus(t), WithStages(StageSet{Clear: true}))

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, store.cleared)
}

func TestPipeline_ClearExhaustsRetries(t *testing.T) {
	store := &recordingStore{}
	store.clearHook = func() error { return storage.ErrConflict }
	p := newTestPipeline(t, store, defaultCorpus(t), WithStages(StageSet{Clear: true, Entities: true}))

	err := p.Run(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageClear, stageErr.Stage)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 0, store.nodeCount())
}

func TestPipeline_MissingCorpus(t *testing.T) {
	p, err := NewPipeline(&recordingStore{}, WithStages(StageSet{Entities: true}))
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrSourceRequired)
}
