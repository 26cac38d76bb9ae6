package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsubscribed is returned when an address that asked to be removed
// tries to subscribe again.
var ErrUnsubscribed = errors.New("store: address has unsubscribed")

// Subscriber is one newsletter subscription.
type Subscriber struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Subscribe records a subscription. Subscribing twice keeps the original
// record and reports created=false.
func (db *DB) Subscribe(email, name, source string) (created bool, err error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("subscribe: empty email")
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	var blocked int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM unsubscribes WHERE email = ?`, email).Scan(&blocked); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	if blocked > 0 {
		return false, ErrUnsubscribed
	}

	res, err := db.conn.Exec(`
		INSERT INTO subscribers (email, name, source) VALUES (?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		email, strings.TrimSpace(name), strings.TrimSpace(source))
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Unsubscribe removes any subscription and blocks the address from
// subscribing again.
func (db *DB) Unsubscribe(email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("unsubscribe: empty email")
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM subscribers WHERE email = ?`, email); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO unsubscribes (email) VALUES (?) ON CONFLICT(email) DO NOTHING`, email); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return tx.Commit()
}

// Subscribers lists subscriptions, newest first.
func (db *DB) Subscribers(limit int) ([]Subscriber, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT email, name, source, created_at FROM subscribers
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("subscribers: %w", err)
	}
	defer rows.Close()

	out := []Subscriber{}
	for rows.Next() {
		var s Subscriber
		var created int64
		if err := rows.Scan(&s.Email, &s.Name, &s.Source, &created); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
