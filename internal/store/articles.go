package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// ArticleRecord is the stored snapshot of one content item.
type ArticleRecord struct {
	ArticleID   string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Subtopic    string   `json:"subtopic,omitempty"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	Published   string   `json:"published"`
	ContentHash string   `json:"-"`
}

// RelatedArticle is a KNN neighbour of an article.
type RelatedArticle struct {
	ArticleRecord
	Distance float64 `json:"distance"`
}

// UpsertArticle inserts or replaces an article row and its vector.
func (db *DB) UpsertArticle(rec ArticleRecord, vec []float32) error {
	if len(vec) != VectorDim {
		return fmt.Errorf("upsert article %s: vector has %d dims, want %d", rec.ArticleID, len(vec), VectorDim)
	}
	vecData, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return fmt.Errorf("serialize vector: %w", err)
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var rowid int64
	err = tx.QueryRow(`
		INSERT INTO articles (article_id, slug, title, category, subtopic, url, tags, published, content_hash, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, unixepoch())
		ON CONFLICT(article_id) DO UPDATE SET
			slug = excluded.slug, title = excluded.title, category = excluded.category,
			subtopic = excluded.subtopic, url = excluded.url, tags = excluded.tags,
			published = excluded.published, content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at
		RETURNING id`,
		rec.ArticleID, rec.Slug, rec.Title, rec.Category, rec.Subtopic, rec.URL,
		string(tagsJSON), rec.Published, rec.ContentHash,
	).Scan(&rowid)
	if err != nil {
		return fmt.Errorf("upsert article %s: %w", rec.ArticleID, err)
	}

	// vec0 rows are replaced rather than updated.
	if _, err := tx.Exec(`DELETE FROM articles_vec WHERE article_rowid = ?`, rowid); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO articles_vec (article_rowid, embedding) VALUES (?, ?)`, rowid, vecData); err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	return tx.Commit()
}

// DeleteArticlesExcept removes every article whose ID is not in keep and
// returns how many were removed.
func (db *DB) DeleteArticlesExcept(keep []string) (int, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT id, article_id FROM articles`)
	if err != nil {
		return 0, fmt.Errorf("list articles: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var rowid int64
		var id string
		if err := rows.Scan(&rowid, &id); err != nil {
			rows.Close()
			return 0, err
		}
		if !keepSet[id] {
			stale = append(stale, rowid)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	for _, rowid := range stale {
		if _, err := tx.Exec(`DELETE FROM articles_vec WHERE article_rowid = ?`, rowid); err != nil {
			return 0, fmt.Errorf("delete vector: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM articles WHERE id = ?`, rowid); err != nil {
			return 0, fmt.Errorf("delete article: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// ArticleHashes maps every stored article ID to its content hash.
func (db *DB) ArticleHashes() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT article_id, content_hash FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("article hashes: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// ArticleCount returns the number of stored articles.
func (db *DB) ArticleCount() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("article count: %w", err)
	}
	return n, nil
}

// GetArticle returns the stored snapshot of one article.
func (db *DB) GetArticle(articleID string) (ArticleRecord, bool, error) {
	var rec ArticleRecord
	var tags string
	err := db.conn.QueryRow(`
		SELECT article_id, slug, title, category, subtopic, url, tags, published, content_hash
		FROM articles WHERE article_id = ?`, articleID,
	).Scan(&rec.ArticleID, &rec.Slug, &rec.Title, &rec.Category, &rec.Subtopic, &rec.URL, &tags, &rec.Published, &rec.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ArticleRecord{}, false, nil
	}
	if err != nil {
		return ArticleRecord{}, false, fmt.Errorf("get article: %w", err)
	}
	rec.Tags = decodeTags(tags)
	return rec, true, nil
}

// RelatedArticles returns up to k nearest neighbours of the article by
// vector distance, excluding the article itself. An unknown article has
// no neighbours.
func (db *DB) RelatedArticles(articleID string, k int) ([]RelatedArticle, error) {
	if k <= 0 {
		k = 5
	}
	if k > 50 {
		k = 50
	}

	var rowid int64
	var vecData []byte
	err := db.conn.QueryRow(`
		SELECT a.id, v.embedding FROM articles a
		JOIN articles_vec v ON v.article_rowid = a.id
		WHERE a.article_id = ?`, articleID,
	).Scan(&rowid, &vecData)
	if errors.Is(err, sql.ErrNoRows) {
		return []RelatedArticle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load article vector: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT v.distance, a.id, a.article_id, a.slug, a.title, a.category, a.subtopic, a.url, a.tags, a.published
		FROM articles_vec v
		JOIN articles a ON a.id = v.article_rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`,
		vecData, k+1,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	out := []RelatedArticle{}
	for rows.Next() {
		var r RelatedArticle
		var id int64
		var tags string
		if err := rows.Scan(&r.Distance, &id, &r.ArticleID, &r.Slug, &r.Title, &r.Category, &r.Subtopic, &r.URL, &tags, &r.Published); err != nil {
			return nil, err
		}
		if id == rowid {
			continue
		}
		r.Tags = decodeTags(tags)
		out = append(out, r)
		if len(out) == k {
			break
		}
	}
	return out, rows.Err()
}

func decodeTags(s string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}
