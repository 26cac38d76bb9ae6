package content

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Search defaults.
const (
	DefaultSearchLimit   = 20
	DefaultExcerptRadius = 120
)

// SearchOptions narrows and shapes a search.
type SearchOptions struct {
	Limit int
	// Category and Tag restrict results to one section or tag.
	Category string
	Tag      string
	// Radius is the number of characters kept on each side of the match
	// in the excerpt.
	Radius int
}

func (o SearchOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultSearchLimit
	}
	return o.Limit
}

func (o SearchOptions) radius() int {
	if o.Radius <= 0 {
		return DefaultExcerptRadius
	}
	return o.Radius
}

// Match tiers, best first. MatchAll marks results of an empty query.
const (
	MatchTitle = "title"
	MatchTag   = "tag"
	MatchBody  = "body"
	MatchAll   = "all"
)

// Result is a search hit.
type Result struct {
	Summary
	Excerpt string `json:"excerpt"`
	Match   string `json:"match"`
}

var (
	reCodeFence  = regexp.MustCompile("(?s)```.*?```")
	reMDXLine    = regexp.MustCompile(`(?m)^\s*(import|export)\s.*$`)
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reHeading    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	reBlockquote = regexp.MustCompile(`(?m)^\s{0,3}>\s?`)
	reHTMLTag    = regexp.MustCompile(`</?[A-Za-z][^>]*>`)
	reEmphasis   = regexp.MustCompile(`\*\*|__|~~|\*`)
	reUnderscore = regexp.MustCompile(`(^|\W)_([^_\n]+)_(\W|$)`)
	reSpace      = regexp.MustCompile(`\s+`)
)

// StripMarkdown reduces Markdown/MDX to plain text for excerpts and
// matching.
func StripMarkdown(md string) string {
	s := reCodeFence.ReplaceAllString(md, " ")
	s = reMDXLine.ReplaceAllString(s, " ")
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reInlineCode.ReplaceAllString(s, "$1")
	s = reHeading.ReplaceAllString(s, "")
	s = reBlockquote.ReplaceAllString(s, "")
	s = reHTMLTag.ReplaceAllString(s, " ")
	s = reEmphasis.ReplaceAllString(s, "")
	s = reUnderscore.ReplaceAllString(s, "$1$2$3")
	s = reSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Excerpt returns the plain text around the first case-insensitive
// occurrence of query, with "…" where the text was cut. Without an
// occurrence it returns the first 2*radius characters.
func Excerpt(plain, query string, radius int) string {
	return excerpt(plain, lower(plain), lower(strings.TrimSpace(query)), radius)
}

func excerpt(plain, plainLower, q string, radius int) string {
	if radius <= 0 {
		radius = DefaultExcerptRadius
	}
	runes := []rune(plain)
	if q != "" {
		if i := strings.Index(plainLower, q); i >= 0 {
			// lower maps rune for rune, so rune offsets carry over to plain.
			start := utf8.RuneCountInString(plainLower[:i])
			end := start + utf8.RuneCountInString(q)
			from := max(0, start-radius)
			to := min(len(runes), end+radius)
			var b strings.Builder
			if from > 0 {
				b.WriteString("…")
			}
			b.WriteString(strings.TrimSpace(string(runes[from:to])))
			if to < len(runes) {
				b.WriteString("…")
			}
			return b.String()
		}
	}
	if len(runes) <= 2*radius {
		return plain
	}
	return strings.TrimSpace(string(runes[:2*radius])) + "…"
}

// lower lowercases rune for rune, keeping the rune count of s.
func lower(s string) string {
	return strings.Map(unicode.ToLower, s)
}

// searchDoc is the matchable form of one item.
type searchDoc struct {
	title      string
	desc       string
	tags       []string
	plain      string
	plainLower string
}

func newSearchDoc(it Item) searchDoc {
	plain := StripMarkdown(it.Body)
	tags := make([]string, len(it.Tags))
	for i, t := range it.Tags {
		tags[i] = lower(t)
	}
	return searchDoc{
		title:      lower(it.Title),
		desc:       lower(it.Description),
		tags:       tags,
		plain:      plain,
		plainLower: lower(plain),
	}
}

func buildDocs(items []Item) []searchDoc {
	docs := make([]searchDoc, len(items))
	for i, it := range items {
		docs[i] = newSearchDoc(it)
	}
	return docs
}

// tier classifies how doc matches q, or returns "" for no match.
func (d searchDoc) tier(q string) string {
	if strings.Contains(d.title, q) || strings.Contains(d.desc, q) {
		return MatchTitle
	}
	for _, t := range d.tags {
		if strings.Contains(t, q) {
			return MatchTag
		}
	}
	if strings.Contains(d.plainLower, q) {
		return MatchBody
	}
	return ""
}

// rank runs a substring search over docs. candidates, when non-nil, lists
// the only doc positions that can match, in ascending order. Results are
// grouped by tier; inside a tier they keep listing order. A blank query
// returns the first items in listing order.
func rank(items []Item, docs []searchDoc, candidates []int, query string, opts SearchOptions) []Result {
	q := lower(strings.TrimSpace(query))
	if q == "" {
		candidates = nil
	}
	if candidates == nil {
		candidates = make([]int, len(docs))
		for i := range docs {
			candidates[i] = i
		}
	}
	category := Canonicalize(opts.Category)

	var tiers [3][]int
	kinds := [3]string{MatchTitle, MatchTag, MatchBody}
	for _, i := range candidates {
		it := items[i]
		if category != "" && it.Category.Key != category {
			continue
		}
		if opts.Tag != "" && !it.HasTag(opts.Tag) {
			continue
		}
		if q == "" {
			tiers[0] = append(tiers[0], i)
			continue
		}
		switch docs[i].tier(q) {
		case MatchTitle:
			tiers[0] = append(tiers[0], i)
		case MatchTag:
			tiers[1] = append(tiers[1], i)
		case MatchBody:
			tiers[2] = append(tiers[2], i)
		}
	}

	limit := opts.limit()
	if q == "" {
		kinds[0] = MatchAll
	}
	out := make([]Result, 0, min(limit, len(tiers[0])+len(tiers[1])+len(tiers[2])))
	for t, positions := range tiers {
		for _, i := range positions {
			if len(out) >= limit {
				return out
			}
			d := docs[i]
			out = append(out, Result{
				Summary: items[i].Summary(),
				Excerpt: excerpt(d.plain, d.plainLower, q, opts.radius()),
				Match:   kinds[t],
			})
		}
	}
	return out
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// tokens splits lowered text into maximal letter/digit runs.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isTokenRune(r) })
}

// queryTerms returns the tokens of q that any matching text must contain
// whole (those with a separator on both sides inside q), and the trailing
// token that a matching text must contain as a token prefix (present only
// when q has a separator before it).
func queryTerms(q string) (whole []string, prefix string) {
	runes := []rune(q)
	for i := 0; i < len(runes); {
		if !isTokenRune(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isTokenRune(runes[j]) {
			j++
		}
		tok := string(runes[i:j])
		switch {
		case i > 0 && j < len(runes):
			whole = append(whole, tok)
		case i > 0 && j == len(runes):
			prefix = tok
		}
		i = j
	}
	return whole, prefix
}

// postingIndex maps each token to the ascending positions of docs that
// contain it.
type postingIndex struct {
	postings map[string][]int
	vocab    []string
}

func newPostingIndex(docs []searchDoc) postingIndex {
	postings := make(map[string][]int)
	for i, d := range docs {
		seen := make(map[string]bool)
		add := func(text string) {
			for _, tok := range tokens(text) {
				if !seen[tok] {
					seen[tok] = true
					postings[tok] = append(postings[tok], i)
				}
			}
		}
		add(d.title)
		add(d.desc)
		for _, t := range d.tags {
			add(t)
		}
		add(d.plainLower)
	}
	vocab := make([]string, 0, len(postings))
	for tok := range postings {
		vocab = append(vocab, tok)
	}
	sort.Strings(vocab)
	return postingIndex{postings: postings, vocab: vocab}
}

// candidates narrows the docs that can contain q. It returns nil when q
// carries no usable term, meaning every doc is a candidate.
func (p postingIndex) candidates(q string) []int {
	whole, prefix := queryTerms(q)
	if len(whole) == 0 && prefix == "" {
		return nil
	}
	var set []int
	first := true
	narrow := func(list []int) {
		if first {
			set = list
			first = false
			return
		}
		set = intersect(set, list)
	}
	for _, tok := range whole {
		narrow(p.postings[tok])
	}
	if prefix != "" {
		var union []int
		for i := sort.SearchStrings(p.vocab, prefix); i < len(p.vocab) && strings.HasPrefix(p.vocab[i], prefix); i++ {
			union = merge(union, p.postings[p.vocab[i]])
		}
		narrow(union)
	}
	if set == nil {
		return []int{}
	}
	return set
}

func intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func merge(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
