package content

import (
	"sort"
	"time"
)

// Collection is an immutable, date-ordered snapshot of scanned items.
// It is safe for concurrent readers.
type Collection struct {
	items   []Item
	byID    map[string]int
	builtAt time.Time
}

func newCollection(items []Item, builtAt time.Time) *Collection {
	sortByDate(items)
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID()] = i
	}
	return &Collection{items: items, byID: byID, builtAt: builtAt}
}

// NewCollection builds a collection from items that did not come from a
// scan, such as test fixtures.
func NewCollection(items []Item) *Collection {
	cp := make([]Item, len(items))
	copy(cp, items)
	return newCollection(cp, time.Now())
}

// Len returns the number of items.
func (c *Collection) Len() int { return len(c.items) }

// BuiltAt returns when the snapshot was taken.
func (c *Collection) BuiltAt() time.Time { return c.builtAt }

// Items returns the items in listing order. Callers must not modify them.
func (c *Collection) Items() []Item { return c.items }

// Get returns the item with the given category/subtopic/slug identity.
func (c *Collection) Get(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// ListAll returns every item, newest first.
func (c *Collection) ListAll() []Summary {
	return summaries(c.items, func(Item) bool { return true })
}

// GetBySlug finds an item by slug, optionally narrowed by category and
// subtopic. All three are compared in canonical form.
//
// Without a category the first item in listing order with that slug wins.
// With a category but no subtopic, an item placed directly under the
// category is preferred over one inside a subtopic.
func (c *Collection) GetBySlug(slug, category, subtopic string) (Item, error) {
	key := Canonicalize(slug)
	if key == "" {
		return Item{}, ErrNotFound
	}
	cat := Canonicalize(category)
	sub := Canonicalize(subtopic)

	if cat != "" {
		if sub != "" {
			if it, ok := c.Get(cat + "/" + sub + "/" + key); ok {
				return it, nil
			}
			return Item{}, ErrNotFound
		}
		if it, ok := c.Get(cat + "/" + key); ok {
			return it, nil
		}
	}
	for _, it := range c.items {
		if it.Slug == key && (cat == "" || it.Category.Key == cat) {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

// ListByTag returns items carrying tag, compared case-insensitively.
func (c *Collection) ListByTag(tag string) []Summary {
	return summaries(c.items, func(it Item) bool { return it.HasTag(tag) })
}

// ListByCategory returns the items of a category, or of one of its
// subtopics when subtopic is non-empty.
func (c *Collection) ListByCategory(category, subtopic string) []Summary {
	cat := Canonicalize(category)
	if cat == "" {
		return []Summary{}
	}
	sub := Canonicalize(subtopic)
	return summaries(c.items, func(it Item) bool {
		return it.Category.Key == cat && (sub == "" || it.Subtopic.Key == sub)
	})
}

// AllTags returns the distinct tag strings, sorted.
func (c *Collection) AllTags() []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, it := range c.items {
		for _, t := range it.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// TagCount is a tag grouped by canonical key with the number of items
// carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// TagCounts groups tags by canonical key, most used first. The display
// spelling is the one on the newest item.
func (c *Collection) TagCounts() []TagCount {
	pos := make(map[string]int)
	var out []TagCount
	for _, it := range c.items {
		for _, t := range it.Tags {
			key := Canonicalize(t)
			if key == "" {
				continue
			}
			if i, ok := pos[key]; ok {
				out[i].Count++
				continue
			}
			pos[key] = len(out)
			out = append(out, TagCount{Tag: t, Slug: key, Count: 1})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Slug < out[j].Slug
	})
	if out == nil {
		return []TagCount{}
	}
	return out
}

// CategoryInfo describes one category and the subtopics found under it.
type CategoryInfo struct {
	Label
	Count     int         `json:"count"`
	Subtopics []TopicInfo `json:"subtopics"`
}

// TopicInfo is a subtopic and its item count.
type TopicInfo struct {
	Label
	Count int `json:"count"`
}

// Categories lists categories sorted by key, each with its subtopics.
func (c *Collection) Categories() []CategoryInfo {
	pos := make(map[string]int)
	subPos := make(map[string]int)
	out := []CategoryInfo{}
	for _, it := range c.items {
		i, ok := pos[it.Category.Key]
		if !ok {
			i = len(out)
			pos[it.Category.Key] = i
			out = append(out, CategoryInfo{Label: it.Category, Subtopics: []TopicInfo{}})
		}
		out[i].Count++
		if it.Subtopic.IsZero() {
			continue
		}
		k := it.Category.Key + "/" + it.Subtopic.Key
		if j, ok := subPos[k]; ok {
			out[i].Subtopics[j].Count++
			continue
		}
		subPos[k] = len(out[i].Subtopics)
		out[i].Subtopics = append(out[i].Subtopics, TopicInfo{Label: it.Subtopic, Count: 1})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	for _, ci := range out {
		sort.Slice(ci.Subtopics, func(i, j int) bool { return ci.Subtopics[i].Key < ci.Subtopics[j].Key })
	}
	return out
}

// Subtopics lists the subtopics of one category, sorted by key.
func (c *Collection) Subtopics(category string) []TopicInfo {
	key := Canonicalize(category)
	for _, ci := range c.Categories() {
		if ci.Key == key {
			return ci.Subtopics
		}
	}
	return []TopicInfo{}
}

// Related returns up to n items sharing tags or placement with the item
// identified by id. Shared tags weigh most; ties keep listing order.
func (c *Collection) Related(id string, n int) []Summary {
	target, ok := c.Get(id)
	if !ok || n <= 0 {
		return []Summary{}
	}
	type scored struct {
		pos   int
		score int
	}
	var cands []scored
	for i, it := range c.items {
		if it.ID() == id {
			continue
		}
		score := 0
		for _, t := range target.Tags {
			if it.HasTag(t) {
				score += 2
			}
		}
		if it.Category.Key == target.Category.Key {
			score++
			if !it.Subtopic.IsZero() && it.Subtopic.Key == target.Subtopic.Key {
				score++
			}
		}
		if score > 0 {
			cands = append(cands, scored{pos: i, score: score})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	out := make([]Summary, 0, min(n, len(cands)))
	for _, s := range cands {
		if len(out) == n {
			break
		}
		out = append(out, c.items[s.pos].Summary())
	}
	return out
}

// Search runs a substring search with the default options and the given
// limit. A non-positive limit uses DefaultSearchLimit.
func (c *Collection) Search(query string, limit int) []Result {
	return c.SearchWith(query, SearchOptions{Limit: limit})
}

// SearchWith runs a substring search over title, description, tags and
// body. Title and description hits rank first, then tag hits, then body
// hits; inside a tier results keep listing order.
func (c *Collection) SearchWith(query string, opts SearchOptions) []Result {
	return rank(c.items, buildDocs(c.items), nil, query, opts)
}

func summaries(items []Item, keep func(Item) bool) []Summary {
	out := []Summary{}
	for _, it := range items {
		if keep(it) {
			out = append(out, it.Summary())
		}
	}
	return out
}
