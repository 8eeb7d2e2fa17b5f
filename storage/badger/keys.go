package badger

import (
	"encoding/binary"

	"github.com/poiesic/wikigraph/core"
)

// Key prefixes for different data types
const (
	nodePrefix  = "nod:"
	labelPrefix = "lbl:"
	edgePrefix  = "edg:"
)

// makeNodeKey generates the primary key of a node.
func makeNodeKey(key string) []byte {
	return []byte(nodePrefix + key)
}

// makeLabelKey generates a label index key.
// Format: prefix:label:nodeKey
func makeLabelKey(label, key string) []byte {
	return []byte(labelPrefix + label + ":" + key)
}

// makeLabelPrefix generates the scan prefix for every node carrying label.
func makeLabelPrefix(label string) []byte {
	return []byte(labelPrefix + label + ":")
}

// makeEdgeID derives the identity of an edge from its endpoints, relation and source property.
func makeEdgeID(start, relation, end, property string) core.ID {
	return core.IDFromContent(start + "\x00" + relation + "\x00" + end + "\x00" + property)
}

// makeEdgeKey generates a composite key for an edge.
// Format: prefix:startKey\x00edgeID
func makeEdgeKey(start string, id core.ID) []byte {
	prefixSize := len(edgePrefix) + len(start) + 1
	buf := make([]byte, prefixSize+8)
	offset := copy(buf, edgePrefix)
	offset += copy(buf[offset:], start)
	buf[offset] = 0
	offset++
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeEdgeStartPrefix generates the scan prefix for every edge leaving start.
func makeEdgeStartPrefix(start string) []byte {
	return []byte(edgePrefix + start + "\x00")
}
