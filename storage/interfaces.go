package storage

import (
	"context"
)

// UpsertMode selects how UpsertNodes treats a node that already exists.
type UpsertMode int

const (
	// CreateIfAbsent leaves an existing node's fields untouched.
	CreateIfAbsent UpsertMode = iota
	// MergeOverwrite overwrites the given fields on an existing node and keeps the rest.
	MergeOverwrite
)

func (m UpsertMode) String() string {
	switch m {
	case CreateIfAbsent:
		return "create-if-absent"
	case MergeOverwrite:
		return "merge-overwrite"
	default:
		return "unknown"
	}
}

// KeyField is the node property holding the upsert key.
const KeyField = "id"

// Node is one node to upsert. Key is stored under KeyField.
// Field values must be strings, int64, float64, bool or []string.
type Node struct {
	Key    string
	Fields map[string]any
}

// Edge is one edge to merge. Its identity is (StartKey, relation, EndKey, Property).
type Edge struct {
	StartKey string
	EndKey   string
	Property string // source property id, stored as "by"
	ClaimId  string // stored as "claim"
}

// NodeRef is the minimal projection returned by MatchAll.
type NodeRef struct {
	Id    string
	Label string
}

// Rewire describes a whole-store transformation: every node labeled Label whose
// Field is a string starting with Prefix gets an edge Relation to the TargetLabel
// node whose id is the last "/" segment of the field; the field is then removed.
// Nodes whose target does not exist are left untouched.
type Rewire struct {
	Label       string
	Field       string
	Relation    string
	TargetLabel string
	Prefix      string
}

// GraphStore is the store contract the ingestion engine writes through.
// Implementations must be safe for concurrent use.
type GraphStore interface {
	// Clear removes every node and edge.
	Clear(ctx context.Context) error

	// UpsertNodes upserts nodes carrying all of the given labels, keyed by Node.Key.
	UpsertNodes(ctx context.Context, mode UpsertMode, labels []string, nodes []Node) error

	// MergeEdges creates-if-absent edges of the given relation between existing nodes.
	// startLabel and endLabel narrow the endpoint lookup. Edges with a missing
	// endpoint are skipped.
	MergeEdges(ctx context.Context, relation, startLabel, endLabel string, edges []Edge) error

	// MatchAll streams every node carrying all of the given labels to fn.
	// Iteration stops on the first error returned by fn.
	MatchAll(ctx context.Context, labels []string, fn func(NodeRef) error) error

	// RunStructuralUpdate applies a Rewire and returns the number of rewired nodes.
	RunStructuralUpdate(ctx context.Context, rewire Rewire) (int, error)

	// Close releases the store's resources.
	Close() error
}
