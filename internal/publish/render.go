package publish

import (
	"fmt"
	"strings"
	"time"

	"github.com/sgx-labs/breakdown/internal/llm"
)

// FromArticle turns a generated article into a draft filed under category
// and subtopic.
func FromArticle(a llm.Article, category, subtopic string) Draft {
	d := Draft{
		Title:       a.Title,
		Description: a.Dek,
		Category:    category,
		Subtopic:    subtopic,
		Tags:        a.Tags,
		Body:        a.BodyMarkdown,
	}
	for _, src := range a.Sources {
		d.Sources = append(d.Sources, Source{
			Title: src.Title, URL: src.URL, Publisher: src.Publisher, Date: src.Date,
		})
	}
	return d
}

// Render returns the file text Publish would write for d. A zero Date is
// replaced with the current time.
func Render(d Draft) string {
	date := d.Date
	if date.IsZero() {
		date = time.Now()
	}
	return render(d, date.UTC())
}

// render builds the file text: flat front matter, the body, then a
// Sources section.
func render(d Draft, date time.Time) string {
	var b strings.Builder
	b.WriteString("---\n")
	field(&b, "title", d.Title)
	field(&b, "description", d.Description)
	field(&b, "date", date.Format(time.RFC3339))
	field(&b, "category", d.Category)
	field(&b, "subtopic", d.Subtopic)
	if tags := cleanTags(d.Tags); len(tags) > 0 {
		quoted := make([]string, len(tags))
		for i, t := range tags {
			quoted[i] = quote(t)
		}
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(quoted, ", "))
	}
	field(&b, "cover", d.Cover)
	b.WriteString("---\n\n")

	body := strings.TrimSpace(strings.ReplaceAll(d.Body, "\r\n", "\n"))
	if !strings.HasPrefix(body, "# ") {
		fmt.Fprintf(&b, "# %s\n\n", oneLine(d.Title))
		if desc := oneLine(d.Description); desc != "" {
			fmt.Fprintf(&b, "> %s\n\n", desc)
		}
	}
	b.WriteString(body)
	b.WriteString("\n\n## Sources\n\n")
	for i, s := range d.Sources {
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, oneLine(s.Title), strings.TrimSpace(s.URL))
		var meta []string
		if s.Publisher != "" {
			meta = append(meta, oneLine(s.Publisher))
		}
		if s.Date != "" {
			meta = append(meta, oneLine(s.Date))
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " - %s", strings.Join(meta, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func field(b *strings.Builder, key, value string) {
	value = oneLine(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", key, quote(value))
}

// quote wraps v for the flat front matter reader, which strips one pair
// of matching quotes and does not unescape.
func quote(v string) string {
	if strings.Contains(v, `"`) {
		return "'" + v + "'"
	}
	return `"` + v + `"`
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanTags(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		t = oneLine(strings.NewReplacer(",", " ", "[", "", "]", "", `"`, "", "'", "").Replace(t))
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
