package neo4j

import (
	"fmt"
	"strings"

	"github.com/poiesic/wikigraph/storage"
)

// quote backtick-quotes a validated identifier.
func quote(name string) string {
	return "`" + name + "`"
}

// labelExpr renders ":`A`:`B`" for a validated label set.
func labelExpr(labels []string) (string, error) {
	if err := storage.ValidateLabels(labels); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, label := range labels {
		sb.WriteString(":")
		sb.WriteString(quote(label))
	}
	return sb.String(), nil
}

// nodePattern renders "(v:`Label` {id: expr})"; an empty label matches any node.
func nodePattern(variable, label, keyExpr string) (string, error) {
	if label == "" {
		return fmt.Sprintf("(%s {%s: %s})", variable, storage.KeyField, keyExpr), nil
	}
	if err := storage.ValidateIdentifier(label); err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s:%s {%s: %s})", variable, quote(label), storage.KeyField, keyExpr), nil
}

func upsertNodesQuery(mode storage.UpsertMode, labels []string) (string, error) {
	expr, err := labelExpr(labels)
	if err != nil {
		return "", err
	}
	var set string
	switch mode {
	case storage.CreateIfAbsent:
		set = "ON CREATE SET n += row.fields"
	case storage.MergeOverwrite:
		set = "SET n += row.fields"
	default:
		return "", fmt.Errorf("%w: upsert mode %d", storage.ErrInvalidQuery, mode)
	}
	return fmt.Sprintf("UNWIND $rows AS row\nMERGE (n%s {%s: row.key})\n%s",
		expr, storage.KeyField, set), nil
}

func mergeEdgesQuery(relation, startLabel, endLabel string) (string, error) {
	if err := storage.ValidateIdentifier(relation); err != nil {
		return "", err
	}
	start, err := nodePattern("a", startLabel, "row.start")
	if err != nil {
		return "", err
	}
	end, err := nodePattern("b", endLabel, "row.end")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UNWIND $rows AS row\nMATCH %s\nMATCH %s\nMERGE (a)-[r:%s {by: row.by}]->(b)\nSET r.claim = row.claim",
		start, end, quote(relation)), nil
}

func matchAllQuery(labels []string) (string, error) {
	expr, err := labelExpr(labels)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n%s)\nRETURN n.%s AS id, n.label AS label", expr, storage.KeyField), nil
}

func rewireQuery(rewire storage.Rewire) (string, error) {
	for _, name := range []string{rewire.Label, rewire.Field, rewire.Relation, rewire.TargetLabel} {
		if err := storage.ValidateIdentifier(name); err != nil {
			return "", err
		}
	}
	field := "n." + quote(rewire.Field)
	target, err := nodePattern("t", rewire.TargetLabel, "target")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`MATCH (n:%s)
WHERE %s STARTS WITH $prefix
WITH n, trim(last(split(%s, '/'))) AS target
MATCH %s
MERGE (n)-[:%s]->(t)
REMOVE %s
RETURN count(n) AS rewired`,
		quote(rewire.Label), field, field, target, quote(rewire.Relation), field), nil
}

const clearQuery = "MATCH (n)\nWITH n LIMIT $limit\nDETACH DELETE n\nRETURN count(*) AS deleted"

// schemaQueries create the uniqueness constraints backing upsert keys.
var schemaQueries = []string{
	"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE",
	"CREATE CONSTRAINT claim_id_unique IF NOT EXISTS FOR (n:Claim) REQUIRE n.id IS UNIQUE",
}

func nodeRows(nodes []storage.Node) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		if node.Key == "" {
			return nil, fmt.Errorf("%w: empty node key", storage.ErrInvalidQuery)
		}
		fields := make(map[string]any, len(node.Fields)+1)
		for name, value := range node.Fields {
			normalized, err := storage.NormalizeValue(value)
			if err != nil {
				return nil, fmt.Errorf("node %s field %q: %w", node.Key, name, err)
			}
			fields[name] = normalized
		}
		fields[storage.KeyField] = node.Key
		rows = append(rows, map[string]any{"key": node.Key, "fields": fields})
	}
	return rows, nil
}

func edgeRows(edges []storage.Edge) []map[string]any {
	rows := make([]map[string]any, 0, len(edges))
	for _, edge := range edges {
		rows = append(rows, map[string]any{
			"start": edge.StartKey,
			"end":   edge.EndKey,
			"by":    edge.Property,
			"claim": edge.ClaimId,
		})
	}
	return rows
}
