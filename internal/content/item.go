package content

import (
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned by single-item lookups when no file resolves to
// the requested identity.
var ErrNotFound = errors.New("content: not found")

// DefaultWordsPerMinute is the reading speed used for reading-time labels.
const DefaultWordsPerMinute = 200

// heroKeys are front matter keys for the hero image, first match wins.
var heroKeys = []string{"heroUrl", "hero", "image", "cover", "thumbnail", "banner"}

// imageExts are the sibling image extensions probed for a hero image.
var imageExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// Item is a parsed content file.
type Item struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Tags        []string  `json:"tags"`
	Category    Label     `json:"category"`
	Subtopic    Label     `json:"subtopic"`
	Body        string    `json:"body,omitempty"`
	WordCount   int       `json:"word_count"`
	ReadingTime string    `json:"reading_time"`
	HeroImage   string    `json:"hero_image,omitempty"`
	Root        string    `json:"root"`
	Path        string    `json:"path"`
}

// Summary is an Item without its body, used in listings.
type Summary struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Tags        []string  `json:"tags"`
	Category    Label     `json:"category"`
	Subtopic    Label     `json:"subtopic"`
	WordCount   int       `json:"word_count"`
	ReadingTime string    `json:"reading_time"`
	HeroImage   string    `json:"hero_image,omitempty"`
	URL         string    `json:"url"`
}

// ID is the item's identity: category/subtopic/slug, or category/slug.
func (it Item) ID() string {
	return path.Join(it.Category.Key, it.Subtopic.Key, it.Slug)
}

// URLPath is the public page path for the item.
func (it Item) URLPath() string {
	return "/category/" + it.ID()
}

// Summary projects the item without its body.
func (it Item) Summary() Summary {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return Summary{
		ID:          it.ID(),
		Slug:        it.Slug,
		Title:       it.Title,
		Description: it.Description,
		Date:        it.Date,
		Tags:        tags,
		Category:    it.Category,
		Subtopic:    it.Subtopic,
		WordCount:   it.WordCount,
		ReadingTime: it.ReadingTime,
		HeroImage:   it.HeroImage,
		URL:         it.URLPath(),
	}
}

// HasTag reports whether the item carries tag, comparing case-insensitively
// and by canonical key.
func (it Item) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	key := Canonicalize(tag)
	for _, t := range it.Tags {
		if strings.EqualFold(t, tag) || (key != "" && Canonicalize(t) == key) {
			return true
		}
	}
	return false
}

// WordCount counts whitespace-delimited tokens.
func WordCount(body string) int {
	return len(strings.Fields(body))
}

// ReadingTime returns a "N min read" label, rounding up, never below one
// minute. A non-positive wpm uses DefaultWordsPerMinute.
func ReadingTime(words, wpm int) string {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	minutes := int(math.Ceil(float64(words) / float64(wpm)))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate parses the date formats found in front matter.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// cleanTags trims, drops empties and removes case-insensitive duplicates,
// keeping the first spelling.
func cleanTags(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
