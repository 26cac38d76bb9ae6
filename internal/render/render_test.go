package render

import (
	"reflect"
	"strings"
	"testing"
)

func TestMarkdownDropsLeadingH1AndSanitizes(t *testing.T) {
	body := "import Chart from './chart'\n\n# COBRA Basics\n\n## What's happening\n\nSee [DOL](https://www.dol.gov).\n\n<script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	html, err := Markdown(body)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<h1") {
		t.Errorf("leading H1 should be dropped:\n%s", html)
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "import Chart") {
		t.Errorf("unsafe or MDX content kept:\n%s", html)
	}
	if !strings.Contains(html, `<h2 id="whats-happening">`) {
		t.Errorf("heading id missing:\n%s", html)
	}
	if !strings.Contains(html, `rel="nofollow noopener"`) && !strings.Contains(html, `rel="nofollow`) {
		t.Errorf("links should be nofollow:\n%s", html)
	}
	if !strings.Contains(html, "<table>") {
		t.Errorf("GFM table missing:\n%s", html)
	}
}

func TestMarkdownKeepsLaterH1(t *testing.T) {
	html, err := Markdown("Intro.\n\n# Not first\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<h1") {
		t.Errorf("only a leading H1 is dropped:\n%s", html)
	}
}

func TestMarkdownSanitizesRawHTML(t *testing.T) {
	got, err := Markdown(`<p onclick="x()">hi</p><img src="javascript:alert(1)">`)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "onclick") || strings.Contains(got, "javascript:") {
		t.Errorf("Markdown = %q", got)
	}
	if !strings.Contains(got, "hi") {
		t.Errorf("text content dropped: %q", got)
	}
}

func TestTOC(t *testing.T) {
	body := "# Title\n\n## Why it **matters**\n\ntext\n\n### Employer steps\n\n#### Too deep\n\n## What to do\n"
	want := []Heading{
		{Level: 2, ID: "why-it-matters", Text: "Why it matters"},
		{Level: 3, ID: "employer-steps", Text: "Employer steps"},
		{Level: 2, ID: "what-to-do", Text: "What to do"},
	}
	if got := TOC(body); !reflect.DeepEqual(got, want) {
		t.Errorf("TOC = %+v", got)
	}
}
