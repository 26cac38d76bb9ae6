// Package content discovers Markdown and MDX articles under one or more
// content roots and answers listing, lookup and search queries over them.
//
// Layout on disk is root/<category>/<slug>.md or
// root/<category>/<subtopic>/<slug>.mdx. Folder names give the display
// casing of categories and subtopics; matching always goes through
// Canonicalize.
package content

// Reader is the read side shared by the live Index and the cached
// SearchIndex.
type Reader interface {
	Collection() *Collection
	ListAll() []Summary
	GetBySlug(slug, category, subtopic string) (Item, error)
	ListByTag(tag string) []Summary
	ListByCategory(category, subtopic string) []Summary
	Search(query string, limit int) []Result
	SearchWith(query string, opts SearchOptions) []Result
	AllTags() []string
}

var (
	_ Reader = (*Index)(nil)
	_ Reader = (*SearchIndex)(nil)
)

// Index reads the content roots from disk on every call. Nothing is cached
// between calls, so every answer reflects the files as they are now.
type Index struct {
	roots []Root
	opts  Options
}

// New returns an Index over roots.
func New(roots []Root, opts Options) *Index {
	return &Index{roots: roots, opts: opts}
}

// Roots returns the configured roots in scan order.
func (x *Index) Roots() []Root { return x.roots }

// Collection scans all roots and returns a fresh snapshot.
func (x *Index) Collection() *Collection { return Scan(x.roots, x.opts) }

// ListAll returns every item, newest first.
func (x *Index) ListAll() []Summary { return x.Collection().ListAll() }

// GetBySlug resolves one item or returns ErrNotFound.
func (x *Index) GetBySlug(slug, category, subtopic string) (Item, error) {
	return x.Collection().GetBySlug(slug, category, subtopic)
}

// ListByTag returns items carrying tag.
func (x *Index) ListByTag(tag string) []Summary { return x.Collection().ListByTag(tag) }

// ListByCategory returns items of a category and optional subtopic.
func (x *Index) ListByCategory(category, subtopic string) []Summary {
	return x.Collection().ListByCategory(category, subtopic)
}

// Search runs a ranked substring search.
func (x *Index) Search(query string, limit int) []Result { return x.Collection().Search(query, limit) }

// SearchWith runs a ranked substring search with scope options.
func (x *Index) SearchWith(query string, opts SearchOptions) []Result {
	return x.Collection().SearchWith(query, opts)
}

// AllTags returns the distinct tags, sorted.
func (x *Index) AllTags() []string { return x.Collection().AllTags() }
