package publish

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/sgx-labs/breakdown/internal/llm"
)

func TestParseDraftYAMLSources(t *testing.T) {
	text := `---
title: HSA Limits for 2026
dek: New contribution caps.
topic: Tax
tags: [HSA, Limits]
date: 2026-01-05
sources:
  - title: IRS Rev. Proc.
    url: https://www.irs.gov/rp
    publisher: IRS
  - title: Plan notice
    url: https://example.com/n
---
Body text here.
`
	d, err := ParseDraft(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "HSA Limits for 2026" || d.Description != "New contribution caps." || d.Category != "Tax" {
		t.Errorf("draft = %+v", d)
	}
	if !reflect.DeepEqual(d.Tags, []string{"HSA", "Limits"}) {
		t.Errorf("tags = %#v", d.Tags)
	}
	if len(d.Sources) != 2 || d.Sources[0].Publisher != "IRS" {
		t.Errorf("sources = %+v", d.Sources)
	}
	if d.Date.IsZero() {
		t.Error("date should parse")
	}
	if d.Body != "Body text here." {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParseDraftBodySources(t *testing.T) {
	text := "# Dental Waiting Periods\n\nMost plans wait six months.\n\n## Sources\n\n1. [ADA](https://ada.org/x)\n2. [NADP report](http://nadp.org/r) - NADP\n"
	d, err := ParseDraft(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "Dental Waiting Periods" {
		t.Errorf("title = %q", d.Title)
	}
	want := []Source{{Title: "ADA", URL: "https://ada.org/x"}, {Title: "NADP report", URL: "http://nadp.org/r"}}
	if !reflect.DeepEqual(d.Sources, want) {
		t.Errorf("sources = %+v", d.Sources)
	}
	if d.Body != "Most plans wait six months." {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParseDraftCommaTags(t *testing.T) {
	d, err := ParseDraft(strings.NewReader("---\ntags: \"a, b\"\n---\nx"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.Tags, []string{"a", "b"}) {
		t.Errorf("tags = %#v", d.Tags)
	}
}

func TestSaveDraft(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drafts")
	p, err := SaveDraft(dir, "Open Enrollment & You", "draft text")
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Base(p)
	if !regexp.MustCompile(`^[0-9a-f-]{36}-open-enrollment-and-you\.md$`).MatchString(name) {
		t.Errorf("name = %q", name)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "draft text" {
		t.Errorf("data = %q", data)
	}

	if p, err := SaveDraft(dir, "", "x"); err != nil || !strings.HasSuffix(p, "-draft.md") {
		t.Errorf("untitled draft = %q, %v", p, err)
	}
	if _, err := SaveDraft(dir, "t", "  "); !errors.Is(err, ErrInvalidDraft) {
		t.Errorf("empty draft err = %v", err)
	}
}

func TestFromArticleRendersParseableDraft(t *testing.T) {
	a := llm.Article{
		Title:        "COBRA Notice Timing",
		Dek:          "Who sends what, and when.",
		BodyMarkdown: "## Deadlines\n\nEmployers have 30 days.",
		Tags:         []string{"COBRA"},
		Sources: []llm.Source{
			{Title: "DOL model notice", URL: "https://www.dol.gov/cobra", Publisher: "DOL"},
			{Title: "IRS regs", URL: "https://www.irs.gov/cobra"},
		},
	}
	d := FromArticle(a, "Compliance", "cobra")
	if d.Category != "Compliance" || d.Subtopic != "cobra" || len(d.Sources) != 2 {
		t.Fatalf("draft = %+v", d)
	}

	back, err := ParseDraft(strings.NewReader(Render(d)))
	if err != nil {
		t.Fatal(err)
	}
	if back.Title != a.Title || back.Description != a.Dek || len(back.Sources) != 2 {
		t.Errorf("parsed back = %+v", back)
	}
	if back.Sources[1].URL != "https://www.irs.gov/cobra" {
		t.Errorf("sources = %+v", back.Sources)
	}
}
