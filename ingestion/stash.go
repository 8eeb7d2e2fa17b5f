package ingestion

import (
	"sort"
	"sync"

	"github.com/poiesic/wikigraph/core"
	"github.com/poiesic/wikigraph/metrics"
)

// Group is the set of literal claim items flushed for one key.
type Group struct {
	Key   core.GroupKey
	Items []core.LiteralClaimItem
}

// Stash buffers literal claim items by group key across batches and workers.
// Flushing a group snapshots and clears it under the same lock as Push, so no
// item is lost or returned twice.
type Stash struct {
	mu      sync.Mutex
	groups  map[core.GroupKey][]core.LiteralClaimItem
	size    int
	metrics *metrics.Metrics
}

// NewStash creates an empty stash.
func NewStash(m *metrics.Metrics) *Stash {
	return &Stash{
		groups:  make(map[core.GroupKey][]core.LiteralClaimItem),
		metrics: m,
	}
}

// Push appends item to the group for key.
func (s *Stash) Push(key core.GroupKey, item core.LiteralClaimItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[key] = append(s.groups[key], item)
	s.size++
	s.metrics.StashAdd(1)
}

// Flush removes and returns every group holding at least threshold items.
// Smaller groups keep accumulating. Groups are returned in key order.
func (s *Stash) Flush(threshold int) []Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Group
	flushed := 0
	for key, items := range s.groups {
		if len(items) == 0 || len(items) < threshold {
			continue
		}
		out = append(out, Group{Key: key, Items: items})
		flushed += len(items)
		delete(s.groups, key)
	}
	s.size -= flushed
	s.metrics.StashAdd(-flushed)

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// FlushRemainder removes and returns every non-empty group.
func (s *Stash) FlushRemainder() []Group {
	return s.Flush(0)
}

// Len returns the number of buffered items.
func (s *Stash) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}
