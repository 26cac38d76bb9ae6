package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sgx-labs/breakdown/internal/content"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 4); got != "ab  " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("héllo", 3); got != "hél" {
		t.Errorf("padRight truncation = %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("one\n two\t three"); got != "one two three" {
		t.Errorf("Excerpt = %q", got)
	}
	long := strings.Repeat("a", excerptWidth+10)
	if got := Excerpt(long); runeLen(got) != excerptWidth+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("long excerpt = %d runes", runeLen(got))
	}
}

func TestSummaries(t *testing.T) {
	var buf bytes.Buffer
	Summaries(&buf, []content.Summary{{
		ID:          "compliance/cobra-basics",
		Title:       "COBRA Basics",
		Date:        time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		ReadingTime: "3 min read",
		Tags:        []string{"COBRA", "Notices"},
	}})
	out := buf.String()
	for _, want := range []string{"1. ", "COBRA Basics", "compliance/cobra-basics", "2025-04-02", "3 min read", "COBRA, Notices"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}

	buf.Reset()
	Summaries(&buf, nil)
	if !strings.Contains(buf.String(), "No articles found.") {
		t.Errorf("empty listing = %q", buf.String())
	}
}

func TestResults(t *testing.T) {
	var buf bytes.Buffer
	Results(&buf, []content.Result{{
		Summary: content.Summary{ID: "tax/hsa-limits", Title: "HSA Limits"},
		Excerpt: "...contribution\nlimits rise...",
		Match:   "title",
	}})
	out := buf.String()
	if !strings.Contains(out, "[title]") || !strings.Contains(out, "...contribution limits rise...") {
		t.Errorf("results = %q", out)
	}

	buf.Reset()
	Results(&buf, nil)
	if !strings.Contains(buf.String(), "No results found.") {
		t.Errorf("empty results = %q", buf.String())
	}
}
