package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/store"
)

func writeArticle(t *testing.T, dir, rel, text string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

// setupHandlerTest points the package state at a temp content root and an
// in-memory database. withDB=false leaves db nil.
func setupHandlerTest(t *testing.T, withDB bool) string {
	t.Helper()
	t.Setenv("BREAKDOWN_DATA_DIR", t.TempDir())

	dir := filepath.Join(t.TempDir(), "content")
	writeArticle(t, dir, "compliance/cobra/election-deadlines.md",
		"---\ntitle: COBRA Election Deadlines\ntags: [COBRA, Notices]\ndate: 2025-03-01\ndescription: Sixty days to elect.\n---\nQualified beneficiaries get 60 days to elect continuation coverage.\n")
	writeArticle(t, dir, "compliance/cobra/premium-rules.md",
		"---\ntitle: COBRA Premium Rules\ntags: [COBRA]\ndate: 2025-02-01\n---\nPlans may charge 102 percent of the premium.\n")
	writeArticle(t, dir, "tax/hsa-limits.md",
		"---\ntitle: HSA Limits\ntags: [HSA, Notices]\ndate: 2025-01-01\n---\nContribution limits rise each year.\n")

	index = content.NewSearchIndex(content.New([]content.Root{content.DirRoot(dir)}, content.Options{}))

	reindexMu.Lock()
	lastReindexTime = time.Time{}
	reindexMu.Unlock()

	db = nil
	if withDB {
		testDB, err := store.OpenMemory()
		if err != nil {
			t.Fatalf("OpenMemory: %v", err)
		}
		db = testDB
	}
	t.Cleanup(func() {
		if db != nil {
			db.Close()
		}
		db = nil
		index = nil
	})
	return dir
}

// resultText extracts the text from a CallToolResult.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if len(result.Content) == 0 {
		t.Fatal("expected at least one content item")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func summaryIDs(t *testing.T, text string) []string {
	t.Helper()
	var items []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// --- search_articles ---

func TestHandleSearchArticles(t *testing.T) {
	setupHandlerTest(t, false)

	result, _, err := handleSearchArticles(context.Background(), nil, searchInput{Query: "cobra"})
	if err != nil {
		t.Fatal(err)
	}
	got := summaryIDs(t, resultText(t, result))
	if len(got) != 2 || got[0] != "compliance/cobra/election-deadlines" {
		t.Errorf("results = %v", got)
	}

	result, _, _ = handleSearchArticles(context.Background(), nil, searchInput{Query: "limits", Category: "compliance"})
	if text := resultText(t, result); !strings.Contains(text, "No articles found") {
		t.Errorf("scoped search = %q", text)
	}

	result, _, _ = handleSearchArticles(context.Background(), nil, searchInput{Query: "   "})
	if text := resultText(t, result); !strings.Contains(text, "query is required") {
		t.Errorf("empty query = %q", text)
	}
}

func TestHandleSearchArticles_Limit(t *testing.T) {
	setupHandlerTest(t, false)
	result, _, _ := handleSearchArticles(context.Background(), nil, searchInput{Query: "cobra", Limit: 1})
	if got := summaryIDs(t, resultText(t, result)); len(got) != 1 {
		t.Errorf("limited results = %v", got)
	}
}

// --- get_article ---

func TestHandleGetArticle(t *testing.T) {
	setupHandlerTest(t, false)

	result, _, _ := handleGetArticle(context.Background(), nil, getInput{Slug: "Election Deadlines", Category: "Compliance"})
	text := resultText(t, result)
	for _, want := range []string{
		"# COBRA Election Deadlines",
		"id: compliance/cobra/election-deadlines",
		"url: /category/compliance/cobra/election-deadlines",
		"tags: COBRA, Notices",
		"60 days to elect",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}

	result, _, _ = handleGetArticle(context.Background(), nil, getInput{Slug: "election-deadlines", Category: "tax"})
	if text := resultText(t, result); text != "Article not found." {
		t.Errorf("wrong category = %q", text)
	}
	result, _, _ = handleGetArticle(context.Background(), nil, getInput{})
	if text := resultText(t, result); !strings.Contains(text, "slug is required") {
		t.Errorf("empty slug = %q", text)
	}
}

// --- list_articles / list_tags ---

func TestHandleListArticles(t *testing.T) {
	setupHandlerTest(t, false)

	tests := []struct {
		name  string
		input listInput
		want  []string
	}{
		{"all", listInput{}, []string{"compliance/cobra/election-deadlines", "compliance/cobra/premium-rules", "tax/hsa-limits"}},
		{"limit", listInput{Limit: 1}, []string{"compliance/cobra/election-deadlines"}},
		{"tag", listInput{Tag: "notices"}, []string{"compliance/cobra/election-deadlines", "tax/hsa-limits"}},
		{"category", listInput{Category: "TAX"}, []string{"tax/hsa-limits"}},
		{"category and tag", listInput{Category: "compliance", Subtopic: "cobra", Tag: "Notices"}, []string{"compliance/cobra/election-deadlines"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, _ := handleListArticles(context.Background(), nil, tt.input)
			got := summaryIDs(t, resultText(t, result))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	result, _, _ := handleListArticles(context.Background(), nil, listInput{Tag: "dental"})
	if text := resultText(t, result); text != "No articles match." {
		t.Errorf("no match = %q", text)
	}
}

func TestHandleListTags(t *testing.T) {
	setupHandlerTest(t, false)
	result, _, _ := handleListTags(context.Background(), nil, emptyInput{})
	var tags []content.TagCount
	if err := json.Unmarshal([]byte(resultText(t, result)), &tags); err != nil {
		t.Fatal(err)
	}
	if len(tags) != 3 || tags[0].Slug != "cobra" || tags[0].Count != 2 {
		t.Errorf("tags = %+v", tags)
	}
}

// --- related_articles ---

func TestHandleRelatedArticles_TagFallback(t *testing.T) {
	setupHandlerTest(t, false)

	result, _, _ := handleRelatedArticles(context.Background(), nil, relatedInput{ID: "compliance/cobra/premium-rules"})
	got := summaryIDs(t, resultText(t, result))
	if len(got) == 0 || got[0] != "compliance/cobra/election-deadlines" {
		t.Errorf("related = %v", got)
	}

	result, _, _ = handleRelatedArticles(context.Background(), nil, relatedInput{ID: "nope"})
	if text := resultText(t, result); !strings.Contains(text, "No article with id") {
		t.Errorf("unknown id = %q", text)
	}
}

func TestHandleRelatedArticles_UsesVectorsAfterReindex(t *testing.T) {
	setupHandlerTest(t, true)

	if _, _, err := handleReindex(context.Background(), nil, reindexInput{}); err != nil {
		t.Fatal(err)
	}
	result, _, _ := handleRelatedArticles(context.Background(), nil, relatedInput{ID: "compliance/cobra/premium-rules", Limit: 2})
	got := summaryIDs(t, resultText(t, result))
	if len(got) != 2 {
		t.Fatalf("related = %v", got)
	}
	if got[0] != "compliance/cobra/election-deadlines" {
		t.Errorf("nearest = %q", got[0])
	}
}

// --- reindex / index_stats ---

func TestHandleReindex_PicksUpNewArticles(t *testing.T) {
	dir := setupHandlerTest(t, true)

	writeArticle(t, dir, "dental/cleanings.md", "---\ntitle: Cleanings\n---\nTwice a year.\n")
	result, _, _ := handleReindex(context.Background(), nil, reindexInput{Force: true})
	var res struct {
		Rebuild struct {
			Items int `json:"items"`
		} `json:"rebuild"`
		Sync struct {
			NewlyIndexed int `json:"newly_indexed"`
		} `json:"sync"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Rebuild.Items != 4 || res.Sync.NewlyIndexed != 4 {
		t.Errorf("reindex = %+v", res)
	}

	result, _, _ = handleSearchArticles(context.Background(), nil, searchInput{Query: "twice"})
	if got := summaryIDs(t, resultText(t, result)); len(got) != 1 {
		t.Errorf("new article not searchable: %v", got)
	}
}

func TestHandleReindex_Cooldown(t *testing.T) {
	setupHandlerTest(t, false)

	reindexMu.Lock()
	lastReindexTime = time.Now()
	reindexMu.Unlock()

	result, _, err := handleReindex(context.Background(), nil, reindexInput{Force: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "cooldown") {
		t.Errorf("expected cooldown message, got: %s", text)
	}
}

func TestHandleIndexStats(t *testing.T) {
	setupHandlerTest(t, true)
	handleReindex(context.Background(), nil, reindexInput{})

	result, _, _ := handleIndexStats(context.Background(), nil, emptyInput{})
	var stats map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &stats); err != nil {
		t.Fatal(err)
	}
	if stats["articles_in_search_index"].(float64) != 3 {
		t.Errorf("stats = %v", stats)
	}
	if stats["total_articles_in_index"].(float64) != 3 {
		t.Errorf("db stats = %v", stats)
	}
}

func TestClampTopK(t *testing.T) {
	tests := []struct{ in, def, want int }{
		{0, 10, 10},
		{-3, 5, 5},
		{7, 10, 7},
		{500, 10, 100},
	}
	for _, tt := range tests {
		if got := clampTopK(tt.in, tt.def); got != tt.want {
			t.Errorf("clampTopK(%d, %d) = %d, want %d", tt.in, tt.def, got, tt.want)
		}
	}
}
