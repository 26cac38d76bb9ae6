// Package render turns article Markdown into sanitized HTML.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Heading is one entry of an article's table of contents.
type Heading struct {
	Level int    `json:"level"`
	ID    string `json:"id"`
	Text  string `json:"text"`
}

// Renderer converts Markdown (and MDX bodies) to safe HTML. It is safe
// for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New returns a Renderer with GFM, typographer and heading IDs. Raw HTML
// passes through goldmark and is then sanitized with the UGC policy.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &Renderer{md: md, policy: p}
}

var defaultRenderer = New()

// Markdown renders body with the default Renderer.
func Markdown(body string) (string, error) { return defaultRenderer.Markdown(body) }

// TOC returns the H2 and H3 headings of body.
func TOC(body string) []Heading { return defaultRenderer.TOC(body) }

var mdxLine = regexp.MustCompile(`(?m)^(import|export)\s.*$\n?`)

// prepare drops MDX import/export lines and a leading H1, which the page
// renders from the title.
func prepare(body string) []byte {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = mdxLine.ReplaceAllString(body, "")
	trimmed := strings.TrimLeft(body, " \t\n")
	if strings.HasPrefix(trimmed, "# ") {
		_, rest, _ := strings.Cut(trimmed, "\n")
		body = rest
	}
	return []byte(body)
}

// Markdown renders body to sanitized HTML.
func (r *Renderer) Markdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(prepare(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String())), nil
}

// TOC walks the parsed document for level 2 and 3 headings.
func (r *Renderer) TOC(body string) []Heading {
	src := prepare(body)
	doc := r.md.Parser().Parse(text.NewReader(src))
	var out []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level == 2 || h.Level == 3 {
			var id string
			if v, ok := h.AttributeString("id"); ok {
				if b, ok := v.([]byte); ok {
					id = string(b)
				}
			}
			out = append(out, Heading{Level: h.Level, ID: id, Text: nodeText(h, src)})
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
