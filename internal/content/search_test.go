package content

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func day(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

func searchFixture() *Collection {
	return NewCollection([]Item{
		{Slug: "body-new", Title: "Plan Year Checklist", Date: day(20), Category: NewLabel("benefits"),
			Body: "Remember the **deductible** resets in January."},
		{Slug: "title-old", Title: "Deductible Basics", Date: day(2), Category: NewLabel("benefits"),
			Body: "Start here."},
		{Slug: "tag-mid", Title: "HSA Limits", Date: day(10), Category: NewLabel("tax"),
			Tags: []string{"Deductible"}, Body: "Contribution limits rise."},
		{Slug: "desc-mid", Title: "Choosing a Plan", Description: "How the deductible works", Date: day(12),
			Category: NewLabel("benefits"), Tags: []string{"Plans"}, Body: "Compare options."},
		{Slug: "none", Title: "Dental Coverage", Date: day(15), Category: NewLabel("dental"), Body: "Cleanings twice a year."},
	})
}

func slugs(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Slug
	}
	return out
}

func TestSearchTiers(t *testing.T) {
	rs := searchFixture().Search("DEDUCTIBLE", 0)
	want := []string{"desc-mid", "title-old", "tag-mid", "body-new"}
	if got := slugs(rs); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if rs[0].Match != MatchTitle || rs[2].Match != MatchTag || rs[3].Match != MatchBody {
		t.Errorf("match kinds = %s %s %s %s", rs[0].Match, rs[1].Match, rs[2].Match, rs[3].Match)
	}
	if !strings.Contains(rs[3].Excerpt, "deductible") || strings.Contains(rs[3].Excerpt, "**") {
		t.Errorf("body excerpt = %q", rs[3].Excerpt)
	}
}

func TestSearchLimitAndScope(t *testing.T) {
	c := searchFixture()
	if got := slugs(c.Search("deductible", 2)); !reflect.DeepEqual(got, []string{"desc-mid", "title-old"}) {
		t.Errorf("limited = %v", got)
	}
	if got := slugs(c.SearchWith("deductible", SearchOptions{Category: "TAX"})); !reflect.DeepEqual(got, []string{"tag-mid"}) {
		t.Errorf("category scope = %v", got)
	}
	if got := slugs(c.SearchWith("deductible", SearchOptions{Tag: "plans"})); !reflect.DeepEqual(got, []string{"desc-mid"}) {
		t.Errorf("tag scope = %v", got)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := searchFixture()
	for _, q := range []string{"", "   "} {
		rs := c.SearchWith(q, SearchOptions{Limit: 3, Radius: 4})
		if got, want := slugs(rs), []string{"body-new", "none", "desc-mid"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Search(%q) = %v, want %v", q, got, want)
			continue
		}
		if rs[0].Match != MatchAll {
			t.Errorf("match = %q", rs[0].Match)
		}
		if rs[0].Excerpt != "Remember…" {
			t.Errorf("excerpt = %q", rs[0].Excerpt)
		}
	}

	if got := slugs(c.SearchWith("", SearchOptions{Category: "benefits"})); !reflect.DeepEqual(got, []string{"body-new", "desc-mid", "title-old"}) {
		t.Errorf("category scope = %v", got)
	}
}

func TestSearchNoMatch(t *testing.T) {
	if rs := searchFixture().Search("vision", 0); len(rs) != 0 {
		t.Errorf("unexpected results %v", slugs(rs))
	}
}

func TestExcerpt(t *testing.T) {
	plain := strings.Repeat("a", 50) + " Open Enrollment " + strings.Repeat("b", 50)

	got := Excerpt(plain, "open enrollment", 10)
	want := "…aaaaaaaaa Open Enrollment bbbbbbbbb…"
	if got != want {
		t.Errorf("Excerpt = %q, want %q", got, want)
	}

	if got := Excerpt("Short ACA text", "aca", 120); got != "Short ACA text" {
		t.Errorf("uncut excerpt = %q", got)
	}

	long := strings.Repeat("x", 300)
	if got := Excerpt(long, "missing", 100); got != strings.Repeat("x", 200)+"…" {
		t.Errorf("fallback excerpt len = %d", len([]rune(got)))
	}
	if got := Excerpt("tiny", "missing", 100); got != "tiny" {
		t.Errorf("tiny fallback = %q", got)
	}
}

func TestExcerptRunes(t *testing.T) {
	plain := "Überprüfung der Prämie für COBRA Versicherung"
	got := Excerpt(plain, "cobra", 4)
	if got != "…für COBRA Ver…" {
		t.Errorf("Excerpt = %q", got)
	}
}

func TestStripMarkdown(t *testing.T) {
	md := "import Chart from './chart'\n\n# Heading\n\nSome **bold** and _italic_ text with a [link](https://x.test) and ![alt text](/a.png).\n\n> quoted `code`\n\n```go\nfmt.Println(\"hidden\")\n```\n\n<Callout type=\"info\">Note</Callout>\n"
	got := StripMarkdown(md)
	want := "Heading Some bold and italic text with a link and alt text. quoted code Note"
	if got != want {
		t.Errorf("StripMarkdown =\n%q\nwant\n%q", got, want)
	}
}

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		q      string
		whole  []string
		prefix string
	}{
		{"aca", nil, ""},
		{"open enrollment", nil, "enrollment"},
		{"the aca requires", []string{"aca"}, "requires"},
		{"aca.", nil, ""},
		{"-x y z-", []string{"x", "y", "z"}, ""},
	}
	for _, tt := range tests {
		whole, prefix := queryTerms(tt.q)
		if !reflect.DeepEqual(whole, tt.whole) || prefix != tt.prefix {
			t.Errorf("queryTerms(%q) = %v %q, want %v %q", tt.q, whole, prefix, tt.whole, tt.prefix)
		}
	}
}

func TestIntersectMerge(t *testing.T) {
	if got := intersect([]int{1, 3, 5, 7}, []int{3, 4, 7}); !reflect.DeepEqual(got, []int{3, 7}) {
		t.Errorf("intersect = %v", got)
	}
	if got := merge([]int{1, 5}, []int{2, 5, 9}); !reflect.DeepEqual(got, []int{1, 2, 5, 9}) {
		t.Errorf("merge = %v", got)
	}
}
