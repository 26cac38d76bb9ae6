package store

import (
	"fmt"
	"strings"
)

// DefaultTrendingLimit is the number of articles Trending returns when no
// limit is given.
const DefaultTrendingLimit = 12

// ViewCount is the view tally of one article.
type ViewCount struct {
	ArticleID string `json:"id"`
	Count     int64  `json:"count"`
}

// IncrementView adds one view to an article and returns the new total.
func (db *DB) IncrementView(articleID string) (int64, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return 0, fmt.Errorf("increment view: empty article id")
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int64
	err := db.conn.QueryRow(`
		INSERT INTO views (article_id, count, updated_at) VALUES (?, 1, unixepoch())
		ON CONFLICT(article_id) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		RETURNING count`, articleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment view: %w", err)
	}
	return count, nil
}

// Views returns the view total of an article; unknown articles have zero.
func (db *DB) Views(articleID string) (int64, error) {
	var count int64
	err := db.conn.QueryRow(`SELECT COALESCE(SUM(count), 0) FROM views WHERE article_id = ?`, articleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("views: %w", err)
	}
	return count, nil
}

// Trending returns the most viewed articles, highest first. Ties are
// broken by the most recent view.
func (db *DB) Trending(limit int) ([]ViewCount, error) {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT article_id, count FROM views
		ORDER BY count DESC, updated_at DESC, article_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	defer rows.Close()

	out := []ViewCount{}
	for rows.Next() {
		var vc ViewCount
		if err := rows.Scan(&vc.ArticleID, &vc.Count); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}
