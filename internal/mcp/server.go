// Package mcp implements the Breakdown MCP server over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/indexer"
	"github.com/sgx-labs/breakdown/internal/store"
)

var (
	index           *content.SearchIndex
	db              *store.DB
	lastReindexTime time.Time
	reindexMu       sync.Mutex
)

const reindexCooldown = 60 * time.Second

// Version is set by the caller (main) before calling Serve.
var Version = "dev"

// Serve runs the MCP server on stdio until ctx is done. database may be
// nil, in which case related_articles uses shared tags and reindex only
// rebuilds the search snapshot.
func Serve(ctx context.Context, idx *content.SearchIndex, database *store.DB) error {
	index = idx
	db = database

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "breakdown",
		Version: Version,
	}, nil)

	registerTools(server)

	return server.Run(ctx, &mcp.StdioTransport{})
}

func registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_articles",
		Description: "Search published benefits articles by title, description, tags and body. Title and description matches rank first, then tags, then body text.\n\nArgs:\n  query: Text to look for (e.g. 'COBRA notice', 'HSA limits')\n  limit: Number of results (default 10, max 100)\n  category: Only search one category (e.g. 'compliance')\n  tag: Only search articles with this tag\n\nReturns ranked results with excerpts.",
	}, handleSearchArticles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_article",
		Description: "Read one article in full. Use this after search_articles or list_articles.\n\nArgs:\n  slug: Article slug or title (e.g. 'open-enrollment')\n  category: Optional category to disambiguate\n  subtopic: Optional subtopic to disambiguate\n\nReturns the article metadata and Markdown body.",
	}, handleGetArticle)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_articles",
		Description: "List articles newest first, optionally filtered.\n\nArgs:\n  tag: Only articles with this tag\n  category: Only articles in this category\n  subtopic: Only articles in this subtopic (needs category)\n  limit: Number of articles (default 20, max 100)\n\nReturns article summaries.",
	}, handleListArticles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tags",
		Description: "List every tag with the number of articles using it, most used first.",
	}, handleListTags)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "related_articles",
		Description: "Find articles related to a given one, using stored term vectors when indexed and shared tags otherwise.\n\nArgs:\n  id: Article id as returned by other tools (category/subtopic/slug)\n  limit: Number of articles (default 5, max 100)",
	}, handleRelatedArticles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reindex",
		Description: "Rescan the content folders and refresh the search index and article database. Use this after articles were added or edited. Incremental by default.\n\nArgs:\n  force: Rewrite every stored article regardless of changes (default false)\n\nReturns indexing statistics.",
	}, handleReindex)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report the size and freshness of the article index: article counts, last reindex time and database size.",
	}, handleIndexStats)
}

// Tool input types

type searchInput struct {
	Query    string `json:"query" jsonschema:"Text to search for"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Number of results (default 10, max 100)"`
	Category string `json:"category,omitempty" jsonschema:"Restrict to one category"`
	Tag      string `json:"tag,omitempty" jsonschema:"Restrict to one tag"`
}

type getInput struct {
	Slug     string `json:"slug" jsonschema:"Article slug or title"`
	Category string `json:"category,omitempty" jsonschema:"Category of the article"`
	Subtopic string `json:"subtopic,omitempty" jsonschema:"Subtopic of the article"`
}

type listInput struct {
	Tag      string `json:"tag,omitempty" jsonschema:"Filter by tag"`
	Category string `json:"category,omitempty" jsonschema:"Filter by category"`
	Subtopic string `json:"subtopic,omitempty" jsonschema:"Filter by subtopic"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Number of articles (default 20, max 100)"`
}

type relatedInput struct {
	ID    string `json:"id" jsonschema:"Article id (category/subtopic/slug)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Number of articles (default 5, max 100)"`
}

type reindexInput struct {
	Force bool `json:"force" jsonschema:"Rewrite every stored article regardless of changes"`
}

type emptyInput struct{}

// Tool handlers

func handleSearchArticles(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return textResult("Error: query is required."), nil, nil
	}
	results := index.SearchWith(query, content.SearchOptions{
		Limit:    clampTopK(input.Limit, 10),
		Category: input.Category,
		Tag:      input.Tag,
	})
	if len(results) == 0 {
		return textResult("No articles found. If articles were just added, try running reindex() first."), nil, nil
	}
	return jsonResult(results), nil, nil
}

func handleGetArticle(ctx context.Context, req *mcp.CallToolRequest, input getInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Slug) == "" {
		return textResult("Error: slug is required."), nil, nil
	}
	it, err := index.GetBySlug(input.Slug, input.Category, input.Subtopic)
	if errors.Is(err, content.ErrNotFound) {
		return textResult("Article not found."), nil, nil
	}
	if err != nil {
		return textResult("Error reading article."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", it.Title)
	fmt.Fprintf(&b, "id: %s\nurl: %s\n", it.ID(), it.URLPath())
	if !it.Date.IsZero() {
		fmt.Fprintf(&b, "date: %s\n", it.Date.Format("2006-01-02"))
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(it.Tags, ", "))
	}
	if it.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", it.Description)
	}
	fmt.Fprintf(&b, "reading time: %s\n\n", it.ReadingTime)
	b.WriteString(it.Body)
	return textResult(b.String()), nil, nil
}

func handleListArticles(ctx context.Context, req *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, any, error) {
	var items []content.Summary
	switch {
	case input.Category != "":
		items = index.ListByCategory(input.Category, input.Subtopic)
		if input.Tag != "" {
			items = filterTag(items, input.Tag)
		}
	case input.Tag != "":
		items = index.ListByTag(input.Tag)
	default:
		items = index.ListAll()
	}
	if len(items) == 0 {
		return textResult("No articles match."), nil, nil
	}
	if limit := clampTopK(input.Limit, 20); len(items) > limit {
		items = items[:limit]
	}
	return jsonResult(items), nil, nil
}

func handleListTags(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(index.Collection().TagCounts()), nil, nil
}

func handleRelatedArticles(ctx context.Context, req *mcp.CallToolRequest, input relatedInput) (*mcp.CallToolResult, any, error) {
	id := strings.Trim(strings.TrimSpace(input.ID), "/")
	coll := index.Collection()
	if _, ok := coll.Get(id); !ok {
		return textResult(fmt.Sprintf("No article with id %q. Use list_articles to find ids.", id)), nil, nil
	}
	limit := clampTopK(input.Limit, 5)

	var items []content.Summary
	if db != nil {
		near, err := db.RelatedArticles(id, limit)
		if err == nil {
			for _, a := range near {
				if it, ok := coll.Get(a.ArticleID); ok {
					items = append(items, it.Summary())
				}
			}
		}
	}
	if len(items) == 0 {
		items = coll.Related(id, limit)
	}
	if len(items) == 0 {
		return textResult("No related articles found."), nil, nil
	}
	return jsonResult(items), nil, nil
}

func handleReindex(ctx context.Context, req *mcp.CallToolRequest, input reindexInput) (*mcp.CallToolResult, any, error) {
	reindexMu.Lock()
	defer reindexMu.Unlock()

	if time.Since(lastReindexTime) < reindexCooldown {
		remaining := int(reindexCooldown.Seconds() - time.Since(lastReindexTime).Seconds())
		data, _ := json.Marshal(map[string]string{
			"error": fmt.Sprintf("Reindex cooldown active. Try again in %ds.", remaining),
		})
		return textResult(string(data)), nil, nil
	}
	lastReindexTime = time.Now()

	result := map[string]any{"rebuild": index.Rebuild()}
	if db != nil {
		stats, err := indexer.Sync(db, index.Collection(), input.Force)
		if err != nil {
			return textResult(fmt.Sprintf("Reindex error: %v", err)), nil, nil
		}
		result["sync"] = stats
	}
	return jsonResult(result), nil, nil
}

func handleIndexStats(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	coll := index.Collection()
	stats := map[string]any{}
	if db != nil {
		stats = indexer.GetStats(db)
	}
	stats["articles_in_search_index"] = coll.Len()
	stats["search_index_built_at"] = coll.BuiltAt().UTC().Format(time.RFC3339)
	return jsonResult(stats), nil, nil
}

// Helpers

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return textResult(string(data))
}

func clampTopK(topK, defaultVal int) int {
	if topK <= 0 {
		return defaultVal
	}
	if topK > 100 {
		return 100
	}
	return topK
}

func filterTag(items []content.Summary, tag string) []content.Summary {
	key := content.Canonicalize(tag)
	out := items[:0:0]
	for _, s := range items {
		for _, t := range s.Tags {
			if content.Canonicalize(t) == key {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
