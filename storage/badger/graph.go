package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/wikigraph/storage"
)

const (
	// rewireChunkSize bounds the number of nodes rewritten per transaction.
	rewireChunkSize = 500
	// ctxCheckInterval is how many scanned keys pass between context checks.
	ctxCheckInterval = 1024
)

// GraphStore implements storage.GraphStore on BadgerDB.
type GraphStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore.
func NewGraphStore(backend *Backend) *GraphStore {
	return &GraphStore{
		backend: backend,
		logger:  backend.logger,
	}
}

// Close closes the underlying backend.
func (s *GraphStore) Close() error {
	return s.backend.Close()
}

// Clear removes every node and edge.
func (s *GraphStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.DropAll()
}

// UpsertNodes upserts nodes in one transaction.
func (s *GraphStore) UpsertNodes(ctx context.Context, mode storage.UpsertMode, labels []string, nodes []storage.Node) error {
	if err := storage.ValidateLabels(labels); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.backend.Update(func(tx *badger.Txn) error {
		for _, node := range nodes {
			if node.Key == "" {
				return fmt.Errorf("%w: empty node key", storage.ErrInvalidQuery)
			}

			existing, err := readNode(tx, node.Key)
			if err != nil {
				return err
			}

			var record *storage.NodeRecord
			switch {
			case existing == nil:
				record = &storage.NodeRecord{
					Key:    node.Key,
					Labels: append([]string(nil), labels...),
					Fields: make(map[string]any, len(node.Fields)+1),
				}
			case mode == storage.CreateIfAbsent:
				continue
			default:
				record = existing
				record.Labels = unionLabels(record.Labels, labels)
			}

			for name, value := range node.Fields {
				normalized, err := storage.NormalizeValue(value)
				if err != nil {
					return fmt.Errorf("node %s field %q: %w", node.Key, name, err)
				}
				record.Fields[name] = normalized
			}
			record.Fields[storage.KeyField] = node.Key

			if err := writeNode(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
}

// MergeEdges creates missing edges between existing nodes.
func (s *GraphStore) MergeEdges(ctx context.Context, relation, startLabel, endLabel string, edges []storage.Edge) error {
	if err := storage.ValidateIdentifier(relation); err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.backend.Update(func(tx *badger.Txn) error {
		for _, edge := range edges {
			ok, err := nodeExists(tx, edge.StartKey, startLabel)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			ok, err = nodeExists(tx, edge.EndKey, endLabel)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			if err := mergeEdge(tx, &storage.EdgeRecord{
				StartKey: edge.StartKey,
				EndKey:   edge.EndKey,
				Relation: relation,
				Property: edge.Property,
				ClaimId:  edge.ClaimId,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// MatchAll streams every node carrying all labels to fn.
func (s *GraphStore) MatchAll(ctx context.Context, labels []string, fn func(storage.NodeRef) error) error {
	if err := storage.ValidateLabels(labels); err != nil {
		return err
	}

	return s.backend.View(func(tx *badger.Txn) error {
		return scanLabel(ctx, tx, labels[0], func(record *storage.NodeRecord) error {
			if !record.HasLabels(labels...) {
				return nil
			}
			label, _ := record.Fields["label"].(string)
			return fn(storage.NodeRef{Id: record.Key, Label: label})
		})
	})
}

// rewireTarget pairs a node with the entity its field points at.
type rewireTarget struct {
	nodeKey   string
	targetKey string
}

// RunStructuralUpdate applies rewire in two phases: a read-only scan collects the
// nodes to rewrite, then chunked write transactions apply the edges and drop the field.
func (s *GraphStore) RunStructuralUpdate(ctx context.Context, rewire storage.Rewire) (int, error) {
	for _, name := range []string{rewire.Label, rewire.Relation, rewire.TargetLabel} {
		if err := storage.ValidateIdentifier(name); err != nil {
			return 0, err
		}
	}
	if rewire.Field == "" {
		return 0, fmt.Errorf("%w: rewire field required", storage.ErrInvalidQuery)
	}

	var targets []rewireTarget
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanLabel(ctx, tx, rewire.Label, func(record *storage.NodeRecord) error {
			targetKey, ok := rewireTargetKey(record, rewire)
			if !ok {
				return nil
			}
			exists, err := nodeExists(tx, targetKey, rewire.TargetLabel)
			if err != nil || !exists {
				return err
			}
			targets = append(targets, rewireTarget{nodeKey: record.Key, targetKey: targetKey})
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	rewired := 0
	for start := 0; start < len(targets); start += rewireChunkSize {
		if err := ctx.Err(); err != nil {
			return rewired, err
		}
		end := min(start+rewireChunkSize, len(targets))
		chunk := targets[start:end]

		applied := 0
		err := s.backend.Update(func(tx *badger.Txn) error {
			applied = 0
			for _, target := range chunk {
				record, err := readNode(tx, target.nodeKey)
				if err != nil {
					return err
				}
				// Rewired by a previous run or removed meanwhile.
				if record == nil {
					continue
				}
				if _, ok := rewireTargetKey(record, rewire); !ok {
					continue
				}
				delete(record.Fields, rewire.Field)
				if err := writeNode(tx, record); err != nil {
					return err
				}
				if err := mergeEdge(tx, &storage.EdgeRecord{
					StartKey: target.nodeKey,
					EndKey:   target.targetKey,
					Relation: rewire.Relation,
				}); err != nil {
					return err
				}
				applied++
			}
			return nil
		})
		if err != nil {
			return rewired, err
		}
		rewired += applied
	}

	s.logger.Debug("structural update applied", "label", rewire.Label, "field", rewire.Field, "rewired", rewired)
	return rewired, nil
}

// GetNode returns the stored record for key or storage.ErrNotFound.
func (s *GraphStore) GetNode(ctx context.Context, key string) (*storage.NodeRecord, error) {
	var record *storage.NodeRecord
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		record, err = readNode(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// EdgesFrom returns every edge leaving start.
func (s *GraphStore) EdgesFrom(ctx context.Context, start string) ([]*storage.EdgeRecord, error) {
	var edges []*storage.EdgeRecord
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEdgeStartPrefix(start)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				edge, err := storage.UnmarshalEdgeRecord(val)
				if err != nil {
					return err
				}
				edges = append(edges, edge)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// Stats holds node counts per label and edge counts per relation.
type Stats struct {
	Nodes     int
	Edges     int
	Labels    map[string]int
	Relations map[string]int
}

// Stats scans the whole store and counts nodes and edges.
func (s *GraphStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Labels: map[string]int{}, Relations: map[string]int{}}
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		iter := tx.NewIterator(opts)
		defer iter.Close()

		scanned := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			scanned++
			if scanned%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			key := iter.Item().Key()
			switch {
			case bytes.HasPrefix(key, []byte(nodePrefix)):
				stats.Nodes++
			case bytes.HasPrefix(key, []byte(labelPrefix)):
				rest := key[len(labelPrefix):]
				if i := bytes.IndexByte(rest, ':'); i > 0 {
					stats.Labels[string(rest[:i])]++
				}
			case bytes.HasPrefix(key, []byte(edgePrefix)):
				err := iter.Item().Value(func(val []byte) error {
					edge, err := storage.UnmarshalEdgeRecord(val)
					if err != nil {
						return err
					}
					stats.Edges++
					stats.Relations[edge.Relation]++
					return nil
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// rewireTargetKey extracts the referenced entity id from the rewire field.
func rewireTargetKey(record *storage.NodeRecord, rewire storage.Rewire) (string, bool) {
	value, ok := record.Fields[rewire.Field].(string)
	if !ok || !strings.HasPrefix(value, rewire.Prefix) {
		return "", false
	}
	target := strings.TrimSpace(value[strings.LastIndex(value, "/")+1:])
	return target, target != ""
}

// scanLabel calls fn for every node in the label index.
func scanLabel(ctx context.Context, tx *badger.Txn, label string, fn func(*storage.NodeRecord) error) error {
	prefix := makeLabelPrefix(label)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	scanned := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		scanned++
		if scanned%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		key := string(iter.Item().Key()[len(prefix):])
		record, err := readNode(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			continue
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// readNode loads a node record, returning nil when it does not exist.
func readNode(tx *badger.Txn, key string) (*storage.NodeRecord, error) {
	item, err := tx.Get(makeNodeKey(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *storage.NodeRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalNodeRecord(val)
		return err
	})
	return record, err
}

// writeNode stores a node record and its label index entries.
func writeNode(tx *badger.Txn, record *storage.NodeRecord) error {
	value, err := storage.MarshalNodeRecord(record)
	if err != nil {
		return err
	}
	if err := tx.Set(makeNodeKey(record.Key), value); err != nil {
		return err
	}
	for _, label := range record.Labels {
		if err := tx.Set(makeLabelKey(label, record.Key), nil); err != nil {
			return err
		}
	}
	return nil
}

// nodeExists reports whether key exists and carries label (if given).
func nodeExists(tx *badger.Txn, key, label string) (bool, error) {
	if label == "" {
		_, err := tx.Get(makeNodeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	_, err := tx.Get(makeLabelKey(label, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// mergeEdge writes edge unless an edge with the same identity exists.
func mergeEdge(tx *badger.Txn, edge *storage.EdgeRecord) error {
	key := makeEdgeKey(edge.StartKey, makeEdgeID(edge.StartKey, edge.Relation, edge.EndKey, edge.Property))
	_, err := tx.Get(key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return tx.Set(key, storage.MarshalEdgeRecord(edge))
}

// unionLabels appends the labels of add missing from have.
func unionLabels(have, add []string) []string {
	out := append([]string(nil), have...)
	for _, label := range add {
		found := false
		for _, existing := range out {
			if existing == label {
				found = true
				break
			}
		}
		if !found {
			out = append(out, label)
		}
	}
	return out
}
