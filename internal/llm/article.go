package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Word targets for generated articles.
const (
	WordsPerMinute = 200
	MinWords       = 300
	MaxWords       = 3000
)

// SourceHint is reference material handed to the generator.
type SourceHint struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Brief describes the article to generate.
type Brief struct {
	Topic      string       `json:"topic"`
	Category   string       `json:"category"`
	Subtopic   string       `json:"subtopic,omitempty"`
	Guidelines string       `json:"guidelines,omitempty"`
	Minutes    int          `json:"minutes,omitempty"`
	Sources    []SourceHint `json:"sources,omitempty"`
}

// Source is a citation returned by the generator.
type Source struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Publisher string `json:"publisher,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Article is a generated draft.
type Article struct {
	Title        string   `json:"title"`
	Dek          string   `json:"dek"`
	BodyMarkdown string   `json:"body_markdown"`
	Sources      []Source `json:"sources"`
	Tags         []string `json:"tags"`
	ImagePrompt  string   `json:"image_prompt"`
}

// Words counts the words of the article body.
func (a Article) Words() int { return len(strings.Fields(a.BodyMarkdown)) }

// MinutesToWords converts a reading time into a word target.
func MinutesToWords(minutes int) int {
	return clampWords(minutes * WordsPerMinute)
}

func clampWords(w int) int {
	if w < MinWords {
		return MinWords
	}
	if w > MaxWords {
		return MaxWords
	}
	return w
}

const articleSystem = "You are a senior U.S. health benefits and compliance writer. " +
	"You write for HR leaders, CFOs and benefits administrators. " +
	"Respond with a single JSON object and nothing else."

// GenerateArticle drafts an article for b. When the first draft is
// shorter than 75% of the word target, one rewrite pass asks for a longer
// version; the longer of the two is returned.
func GenerateArticle(ctx context.Context, c Client, b Brief) (Article, error) {
	if c == nil {
		return Article{}, ErrNoProvider
	}
	if strings.TrimSpace(b.Topic) == "" {
		return Article{}, fmt.Errorf("generate article: topic is required")
	}
	target := MinutesToWords(b.Minutes)
	if b.Minutes <= 0 {
		target = clampWords(5 * WordsPerMinute)
	}

	raw, err := c.Complete(ctx, Request{System: articleSystem, Prompt: articlePrompt(b, target), JSON: true, Temperature: 0.5})
	if err != nil {
		return Article{}, fmt.Errorf("generate article: %w", err)
	}
	art, err := parseArticle(raw)
	if err != nil {
		return Article{}, err
	}

	if art.Words()*4 < target*3 {
		raw, err := c.Complete(ctx, Request{System: articleSystem, Prompt: rewritePrompt(art, target), JSON: true, Temperature: 0.4})
		if err == nil {
			if longer, err := parseArticle(raw); err == nil && longer.Words() > art.Words() {
				art = longer
			}
		}
	}
	return art, nil
}

func articlePrompt(b Brief, target int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a clear, accurate article titled or themed: %q.\n", b.Topic)
	fmt.Fprintf(&sb, "Category: %s", b.Category)
	if b.Subtopic != "" {
		fmt.Fprintf(&sb, " / %s", b.Subtopic)
	}
	fmt.Fprintf(&sb, "\nLength: about %d words.\n", target)
	sb.WriteString("Structure the body in Markdown with H2 sections: What's happening, Why it matters, What to do. ")
	sb.WriteString("Do not include an H1. Include a short disclaimer that this is not legal advice.\n")
	if b.Guidelines != "" {
		fmt.Fprintf(&sb, "Author guidelines: %s\n", b.Guidelines)
	}
	if len(b.Sources) > 0 {
		sb.WriteString("\nUse these sources for factual claims and cite at least two of them:\n")
		for i, s := range b.Sources {
			fmt.Fprintf(&sb, "(%d) %s %s\n", i+1, s.Title, s.URL)
			if s.Text != "" {
				text := s.Text
				if len(text) > 3000 {
					text = text[:3000]
				}
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
	} else {
		sb.WriteString("\nCite at least two reputable sources such as IRS, DOL, HHS or CMS guidance, with URLs.\n")
	}
	sb.WriteString("\nReturn JSON with keys: title, dek (one sentence), body_markdown, ")
	sb.WriteString("sources (array of {title, url, publisher, date}), tags (3 to 6 strings), image_prompt.\n")
	return sb.String()
}

func rewritePrompt(a Article, target int) string {
	current, _ := json.Marshal(a)
	return fmt.Sprintf("The following article JSON has %d words in body_markdown; expand it to about %d words "+
		"without changing its facts or sources. Return the full article JSON with the same keys.\n\n%s",
		a.Words(), target, current)
}

func parseArticle(raw string) (Article, error) {
	js, ok := ExtractJSON(raw)
	if !ok {
		return Article{}, fmt.Errorf("generate article: response is not JSON")
	}
	var a Article
	if err := json.Unmarshal([]byte(js), &a); err != nil {
		return Article{}, fmt.Errorf("generate article: decode: %w", err)
	}
	a.Title = strings.TrimSpace(a.Title)
	a.BodyMarkdown = strings.TrimSpace(a.BodyMarkdown)
	if a.Title == "" || a.BodyMarkdown == "" {
		return Article{}, fmt.Errorf("generate article: response missing title or body")
	}
	return a, nil
}

// ExtractJSON finds the JSON object in s: the whole string, a fenced
// block, or the outermost braces.
func ExtractJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return s, true
	}
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			if inner := strings.TrimSpace(rest[:j]); json.Valid([]byte(inner)) {
				return inner, true
			}
		}
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		if inner := s[start : end+1]; json.Valid([]byte(inner)) {
			return inner, true
		}
	}
	return "", false
}
