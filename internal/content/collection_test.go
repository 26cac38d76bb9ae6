package content

import (
	"reflect"
	"testing"
)

func summaryIDs(ss []Summary) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.ID
	}
	return out
}

func TestListAllNewestFirst(t *testing.T) {
	all := New([]Root{testRoot()}, testOptions()).ListAll()
	if len(all) < 2 {
		t.Fatalf("expected several items, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Date.After(all[i-1].Date) {
			t.Errorf("%s (%v) listed after older %s (%v)", all[i].ID, all[i].Date, all[i-1].ID, all[i-1].Date)
		}
	}
}

func TestListByTag(t *testing.T) {
	idx := New([]Root{testRoot()}, testOptions())

	tests := []struct {
		tag  string
		want []string
	}{
		{"ACA", []string{"compliance/aca/open-enrollment"}},
		{"aca", []string{"compliance/aca/open-enrollment"}},
		{" Aca ", []string{"compliance/aca/open-enrollment"}},
		{"AC", []string{}},
		{"compliance", []string{"compliance/cobra-basics", "compliance/aca/open-enrollment"}},
		{"COMPLIANCE", []string{"compliance/cobra-basics", "compliance/aca/open-enrollment"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			if got := summaryIDs(idx.ListByTag(tt.tag)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListByTag(%q) = %v, want %v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestListByCategory(t *testing.T) {
	idx := New([]Root{testRoot()}, testOptions())

	tests := []struct {
		name     string
		category string
		subtopic string
		want     []string
	}{
		{"folder with symbols", "Courts & Regs", "", []string{"courts-and-regs/ruling"}},
		{"canonical key", "courts-and-regs", "", []string{"courts-and-regs/ruling"}},
		{"whole category", "COMPLIANCE", "", []string{"compliance/cobra-basics", "compliance/aca/open-enrollment"}},
		{"subtopic", "compliance", "ACA", []string{"compliance/aca/open-enrollment"}},
		{"front matter placement", "Wellness", "mental health", []string{"wellness/mental-health/loose"}},
		{"unknown", "vision", "", []string{}},
		{"blank", "  ", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summaryIDs(idx.ListByCategory(tt.category, tt.subtopic)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListByCategory(%q, %q) = %v, want %v", tt.category, tt.subtopic, got, tt.want)
			}
		})
	}
}

func TestAllTags(t *testing.T) {
	got := New([]Root{testRoot()}, testOptions()).AllTags()
	want := []string{"ACA", "COBRA", "Compliance", "Courts", "compliance"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllTags = %v, want %v", got, want)
	}

	c := NewCollection([]Item{
		{Slug: "a", Category: NewLabel("tax"), Tags: []string{"HSA", "FSA"}, Date: day(3)},
		{Slug: "b", Category: NewLabel("tax"), Tags: []string{"HSA"}, Date: day(2)},
		{Slug: "c", Category: NewLabel("tax"), Date: day(1)},
	})
	if got := c.AllTags(); !reflect.DeepEqual(got, []string{"FSA", "HSA"}) {
		t.Errorf("AllTags = %v", got)
	}
	if got := NewCollection(nil).AllTags(); got == nil || len(got) != 0 {
		t.Errorf("empty AllTags = %#v", got)
	}
}
