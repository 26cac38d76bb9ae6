package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSearchCmd_JSON(t *testing.T) {
	site := setupCommandTestSite(t)

	out, err := runCommand(t, site, "search", "cobra", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var results []struct {
		ID    string `json:"id"`
		Match string `json:"match"`
	}
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(results) != 1 || results[0].ID != "compliance/cobra/election-deadlines" || results[0].Match != "title" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchCmd_Text(t *testing.T) {
	site := setupCommandTestSite(t)

	out, err := runCommand(t, site, "search", "contribution", "limits")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "HSA Limits") || !strings.Contains(out, "tax/hsa-limits") {
		t.Errorf("output = %q", out)
	}

	out, err = runCommand(t, site, "search", "dental")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No results found.") {
		t.Errorf("no-match output = %q", out)
	}
}

func TestSearchCmd_Empty(t *testing.T) {
	site := setupCommandTestSite(t)
	_, err := runCommand(t, site, "search", "   ")
	if err == nil || !isUserError(err) {
		t.Errorf("expected user error, got %v", err)
	}
}

func TestListCmd(t *testing.T) {
	site := setupCommandTestSite(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"all", []string{"list", "--json"}, []string{"compliance/cobra/election-deadlines", "tax/hsa-limits"}},
		{"tag", []string{"list", "--tag", "hsa", "--json"}, []string{"tax/hsa-limits"}},
		{"category", []string{"list", "--category", "Compliance", "--subtopic", "COBRA", "--json"}, []string{"compliance/cobra/election-deadlines"}},
		{"category and tag", []string{"list", "--category", "compliance", "--tag", "hsa", "--json"}, []string{}},
		{"limit", []string{"list", "--limit", "1", "--json"}, []string{"compliance/cobra/election-deadlines"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, site, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			var items []struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal([]byte(out), &items); err != nil {
				t.Fatalf("decode %q: %v", out, err)
			}
			got := make([]string, len(items))
			for i, it := range items {
				got[i] = it.ID
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := runCommand(t, site, "list", "--subtopic", "cobra"); err == nil {
		t.Error("--subtopic without --category should fail")
	}
}

func TestTagsCmd(t *testing.T) {
	site := setupCommandTestSite(t)
	out, err := runCommand(t, site, "tags", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var tags []struct {
		Slug  string `json:"slug"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &tags); err != nil {
		t.Fatal(err)
	}
	if len(tags) != 3 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestShowCmd(t *testing.T) {
	site := setupCommandTestSite(t)

	out, err := runCommand(t, site, "show", "election-deadlines", "--category", "compliance")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"COBRA Election Deadlines", "compliance/cobra/election-deadlines", "60 days to elect"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}

	_, err = runCommand(t, site, "show", "election-deadlines", "--category", "tax")
	if err == nil || !isUserError(err) {
		t.Errorf("expected not-found user error, got %v", err)
	}
}
