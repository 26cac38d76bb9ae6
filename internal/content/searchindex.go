package content

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SearchIndex caches a scanned collection together with tokenized search
// documents. Readers always see one complete snapshot; Rebuild replaces it
// with a single atomic swap and never mutates a published snapshot.
type SearchIndex struct {
	source *Index

	current atomic.Pointer[searchSnapshot]
	// mu serializes builds so an older scan never replaces a newer one.
	mu sync.Mutex
}

type searchSnapshot struct {
	coll     *Collection
	docs     []searchDoc
	postings postingIndex
}

// RebuildStats reports what a rebuild produced.
type RebuildStats struct {
	Items    int           `json:"items"`
	Tokens   int           `json:"tokens"`
	Duration time.Duration `json:"duration_ns"`
	BuiltAt  time.Time     `json:"built_at"`
}

// NewSearchIndex wraps idx. The first snapshot is built lazily on first use.
func NewSearchIndex(idx *Index) *SearchIndex {
	return &SearchIndex{source: idx}
}

// Rebuild rescans the content roots and publishes a fresh snapshot.
func (s *SearchIndex) Rebuild() RebuildStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	snap := buildSnapshot(s.source.Collection())
	s.current.Store(snap)
	return RebuildStats{
		Items:    snap.coll.Len(),
		Tokens:   len(snap.postings.vocab),
		Duration: time.Since(start),
		BuiltAt:  snap.coll.BuiltAt(),
	}
}

func buildSnapshot(coll *Collection) *searchSnapshot {
	docs := buildDocs(coll.items)
	return &searchSnapshot{coll: coll, docs: docs, postings: newPostingIndex(docs)}
}

func (s *SearchIndex) snapshot() *searchSnapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	snap := buildSnapshot(s.source.Collection())
	s.current.Store(snap)
	return snap
}

// Collection returns the current snapshot's collection.
func (s *SearchIndex) Collection() *Collection { return s.snapshot().coll }

// BuiltAt returns when the current snapshot was scanned.
func (s *SearchIndex) BuiltAt() time.Time { return s.snapshot().coll.BuiltAt() }

// Search is Collection.Search over the cached snapshot.
func (s *SearchIndex) Search(query string, limit int) []Result {
	return s.SearchWith(query, SearchOptions{Limit: limit})
}

// SearchWith is Collection.SearchWith over the cached snapshot. The token
// postings only narrow the candidates; matching is still by substring, so
// results equal an uncached search of the same snapshot.
func (s *SearchIndex) SearchWith(query string, opts SearchOptions) []Result {
	snap := s.snapshot()
	q := lower(strings.TrimSpace(query))
	return rank(snap.coll.items, snap.docs, snap.postings.candidates(q), q, opts)
}

// ListAll returns every item of the current snapshot.
func (s *SearchIndex) ListAll() []Summary { return s.Collection().ListAll() }

// GetBySlug looks an item up in the current snapshot.
func (s *SearchIndex) GetBySlug(slug, category, subtopic string) (Item, error) {
	return s.Collection().GetBySlug(slug, category, subtopic)
}

// ListByTag filters the current snapshot by tag.
func (s *SearchIndex) ListByTag(tag string) []Summary { return s.Collection().ListByTag(tag) }

// ListByCategory filters the current snapshot by category and subtopic.
func (s *SearchIndex) ListByCategory(category, subtopic string) []Summary {
	return s.Collection().ListByCategory(category, subtopic)
}

// AllTags returns the sorted tags of the current snapshot.
func (s *SearchIndex) AllTags() []string { return s.Collection().AllTags() }
