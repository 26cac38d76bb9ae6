package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/google/uuid"

	"github.com/sgx-labs/breakdown/internal/content"
)

// draftMeta is the YAML front matter accepted on uploaded drafts.
type draftMeta struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Dek         string   `yaml:"dek"`
	Category    string   `yaml:"category"`
	Topic       string   `yaml:"topic"`
	Subtopic    string   `yaml:"subtopic"`
	Tags        any      `yaml:"tags"`
	Sources     []Source `yaml:"sources"`
	Cover       string   `yaml:"cover"`
	Image       string   `yaml:"image"`
	Date        string   `yaml:"date"`
}

var (
	sourcesHeading = regexp.MustCompile(`(?im)^#{2,3}\s+sources\s*$`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
)

// ParseDraft reads a markdown draft with optional YAML front matter.
// Sources come from the front matter or, failing that, from links under a
// trailing "## Sources" heading, which is removed from the body.
func ParseDraft(r io.Reader) (Draft, error) {
	var meta draftMeta
	body, err := frontmatter.Parse(r, &meta)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: front matter: %v", ErrInvalidDraft, err)
	}

	d := Draft{
		Title:       strings.TrimSpace(meta.Title),
		Description: firstNonEmpty(meta.Description, meta.Dek),
		Category:    firstNonEmpty(meta.Category, meta.Topic),
		Subtopic:    strings.TrimSpace(meta.Subtopic),
		Tags:        tagList(meta.Tags),
		Sources:     meta.Sources,
		Cover:       firstNonEmpty(meta.Cover, meta.Image),
	}
	if t, ok := content.ParseDate(meta.Date); ok {
		d.Date = t
	}

	text := strings.ReplaceAll(string(body), "\r\n", "\n")
	if loc := sourcesHeading.FindStringIndex(text); loc != nil {
		if len(d.Sources) == 0 {
			for _, m := range mdLink.FindAllStringSubmatch(text[loc[1]:], -1) {
				d.Sources = append(d.Sources, Source{Title: m[1], URL: m[2]})
			}
		}
		text = text[:loc[0]]
	}
	text = strings.TrimSpace(text)

	// A leading H1 doubles as the title.
	if first, rest, _ := strings.Cut(text, "\n"); strings.HasPrefix(first, "# ") {
		if d.Title == "" {
			d.Title = strings.TrimSpace(strings.TrimPrefix(first, "# "))
		}
		text = strings.TrimSpace(rest)
	}
	d.Body = text
	return d, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func tagList(v any) []string {
	switch t := v.(type) {
	case string:
		parts := strings.Split(t, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// SaveDraft writes text to dir/<uuid>-<topic>.md and returns the path.
func SaveDraft(dir, topic, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty draft", ErrInvalidDraft)
	}
	name := content.Canonicalize(topic)
	if name == "" {
		name = "draft"
	}
	if len(name) > 60 {
		name = strings.Trim(name[:60], "-")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create drafts dir: %w", err)
	}
	p := filepath.Join(dir, uuid.NewString()+"-"+name+".md")
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write draft: %w", err)
	}
	return p, nil
}
