// Package indexer keeps the article snapshot in the database in step with
// the content roots: one row and one term vector per article.
package indexer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sgx-labs/breakdown/internal/config"
	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/store"
)

// Version is set by cmd/breakdown to record which build performed the sync.
var Version string

// Stats holds sync statistics.
type Stats struct {
	TotalArticles    int    `json:"total_articles"`
	NewlyIndexed     int    `json:"newly_indexed"`
	SkippedUnchanged int    `json:"skipped_unchanged"`
	Removed          int    `json:"removed"`
	Errors           int    `json:"errors"`
	ArticlesInIndex  int    `json:"total_articles_in_index"`
	Timestamp        string `json:"timestamp"`
}

// ProgressFunc is called after each stored article.
type ProgressFunc func(current, total int, id string)

type vecResult struct {
	rec store.ArticleRecord
	vec []float32
}

// Sync stores every item of coll, skipping items whose content hash is
// unchanged unless force is set, and removes articles that no longer exist.
func Sync(db *store.DB, coll *content.Collection, force bool) (*Stats, error) {
	return SyncWithProgress(db, coll, force, nil)
}

// SyncWithProgress is like Sync but accepts an optional progress callback.
func SyncWithProgress(db *store.DB, coll *content.Collection, force bool, progress ProgressFunc) (*Stats, error) {
	items := coll.Items()
	stats := &Stats{
		TotalArticles: len(items),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	existing := map[string]string{}
	if !force {
		var err error
		existing, err = db.ArticleHashes()
		if err != nil {
			return nil, fmt.Errorf("load article hashes: %w", err)
		}
	}

	keep := make([]string, 0, len(items))
	var work []content.Item
	for _, it := range items {
		keep = append(keep, it.ID())
		if h, ok := existing[it.ID()]; ok && h == ContentHash(it) {
			stats.SkippedUnchanged++
			continue
		}
		work = append(work, it)
	}

	// Vectors are computed by a worker pool (4 goroutines); writes stay on
	// this goroutine because the store serializes them anyway.
	const numWorkers = 4
	workCh := make(chan content.Item, len(work))
	resultCh := make(chan vecResult, len(work))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range workCh {
				resultCh <- vecResult{rec: recordFor(it), vec: TermVector(it)}
			}
		}()
	}
	for _, it := range work {
		workCh <- it
	}
	close(workCh)
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		if err := db.UpsertArticle(r.rec, r.vec); err != nil {
			fmt.Fprintf(os.Stderr, "  [ERROR] %s: %v\n", r.rec.ArticleID, err)
			stats.Errors++
			continue
		}
		stats.NewlyIndexed++
		if progress != nil {
			progress(stats.NewlyIndexed+stats.SkippedUnchanged+stats.Errors, stats.TotalArticles, r.rec.ArticleID)
		}
	}

	removed, err := db.DeleteArticlesExcept(keep)
	if err != nil {
		return nil, fmt.Errorf("prune articles: %w", err)
	}
	stats.Removed = removed

	stats.ArticlesInIndex, _ = db.ArticleCount()
	_ = db.SetMeta(store.MetaLastReindex, stats.Timestamp)
	if Version != "" {
		_ = db.SetMeta("breakdown_version", Version)
	}
	saveStats(stats)
	return stats, nil
}

func recordFor(it content.Item) store.ArticleRecord {
	return store.ArticleRecord{
		ArticleID:   it.ID(),
		Slug:        it.Slug,
		Title:       it.Title,
		Category:    it.Category.Key,
		Subtopic:    it.Subtopic.Key,
		URL:         it.URLPath(),
		Tags:        it.Tags,
		Published:   it.Date.UTC().Format(time.RFC3339),
		ContentHash: ContentHash(it),
	}
}

// ContentHash fingerprints everything that goes into an article row.
func ContentHash(it content.Item) string {
	h := sha256.New()
	for _, s := range []string{it.ID(), it.Title, it.Description, strings.Join(it.Tags, "\x1f"), it.Date.UTC().Format(time.RFC3339), it.Body} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func statsPath() string {
	return filepath.Join(config.DataDir(), "index_stats.json")
}

func saveStats(stats *Stats) {
	dataDir := config.DataDir()
	os.MkdirAll(dataDir, 0o755)
	data, _ := json.MarshalIndent(stats, "", "  ")
	os.WriteFile(statsPath(), data, 0o644)
}

// GetStats reads the last saved sync stats, falling back to live counts.
func GetStats(db *store.DB) map[string]any {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if n, err := db.ArticleCount(); err == nil {
			return map[string]any{
				"total_articles_in_index": n,
				"status":                  "live query (no saved stats)",
			}
		}
		return map[string]any{
			"status": "no index found",
			"hint":   "run 'breakdown reindex' first",
		}
	}
	result := map[string]any{}
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]any{"status": "unreadable stats file", "hint": "run 'breakdown reindex'"}
	}
	if v, ok, _ := db.GetMeta(store.MetaLastReindex); ok {
		result["last_reindex"] = v
	}
	if info, err := os.Stat(config.DBPath()); err == nil {
		result["db_size_mb"] = fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024))
	}
	return result
}
