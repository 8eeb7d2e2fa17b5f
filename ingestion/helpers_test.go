package ingestion

import (
	"context"
	"sync"

	"github.com/poiesic/wikigraph/storage"
)

// recordingStore implements storage.GraphStore, recording calls and
// optionally failing them through hooks.
type recordingStore struct {
	mu sync.Mutex

	upserts []upsertCall
	merges  []mergeCall
	rewires []storage.Rewire
	cleared int

	properties []storage.NodeRef

	upsertHook func(call upsertCall) error
	mergeHook  func(call mergeCall) error
	clearHook  func() error
}

type upsertCall struct {
	mode   storage.UpsertMode
	labels []string
	nodes  []storage.Node
}

type mergeCall struct {
	relation   string
	startLabel string
	endLabel   string
	edges      []storage.Edge
}

var _ storage.GraphStore = (*recordingStore)(nil)

func (s *recordingStore) Clear(ctx context.Context) error {
	if s.clearHook != nil {
		if err := s.clearHook(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	return nil
}

func (s *recordingStore) UpsertNodes(ctx context.Context, mode storage.UpsertMode, labels []string, nodes []storage.Node) error {
	call := upsertCall{mode: mode, labels: labels, nodes: nodes}
	if s.upsertHook != nil {
		if err := s.upsertHook(call); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, call)
	return nil
}

func (s *recordingStore) MergeEdges(ctx context.Context, relation, startLabel, endLabel string, edges []storage.Edge) error {
	call := mergeCall{relation: relation, startLabel: startLabel, endLabel: endLabel, edges: edges}
	if s.mergeHook != nil {
		if err := s.mergeHook(call); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merges = append(s.merges, call)
	return nil
}

func (s *recordingStore) MatchAll(ctx context.Context, labels []string, fn func(storage.NodeRef) error) error {
	for _, ref := range s.properties {
		if err := fn(ref); err != nil {
			return err
		}
	}
	return nil
}

func (s *recordingStore) RunStructuralUpdate(ctx context.Context, rewire storage.Rewire) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewires = append(s.rewires, rewire)
	return 0, nil
}

func (s *recordingStore) Close() error {
	return nil
}

func (s *recordingStore) nodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.upserts {
		n += len(call.nodes)
	}
	return n
}

func (s *recordingStore) edgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.merges {
		n += len(call.edges)
	}
	return n
}
