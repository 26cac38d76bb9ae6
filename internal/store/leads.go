package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lead is a contact request from a reader.
type Lead struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Company     string     `json:"company,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Message     string     `json:"message,omitempty"`
	Source      string     `json:"source,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// SaveLead stores a lead under a fresh ID and returns it.
func (db *DB) SaveLead(l Lead) (Lead, error) {
	l.Email = normalizeEmail(l.Email)
	if l.Email == "" {
		return Lead{}, fmt.Errorf("save lead: empty email")
	}
	l.ID = uuid.NewString()
	l.CreatedAt = time.Now().UTC().Truncate(time.Second)
	l.DeliveredAt = nil

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(`
		INSERT INTO leads (id, name, email, company, phone, message, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, strings.TrimSpace(l.Name), l.Email, strings.TrimSpace(l.Company),
		strings.TrimSpace(l.Phone), strings.TrimSpace(l.Message), strings.TrimSpace(l.Source),
		l.CreatedAt.Unix(),
	)
	if err != nil {
		return Lead{}, fmt.Errorf("save lead: %w", err)
	}
	return l, nil
}

// MarkLeadDelivered records that notification of the lead succeeded.
func (db *DB) MarkLeadDelivered(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	res, err := db.conn.Exec(`UPDATE leads SET delivered_at = unixepoch() WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark lead delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark lead delivered: no lead %q", id)
	}
	return nil
}

// PendingLeads returns leads whose notification has not succeeded yet,
// oldest first.
func (db *DB) PendingLeads(limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, name, email, company, phone, message, source, created_at, delivered_at
		FROM leads WHERE delivered_at IS NULL
		ORDER BY created_at, rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending leads: %w", err)
	}
	defer rows.Close()

	out := []Lead{}
	for rows.Next() {
		var l Lead
		var created int64
		var delivered sql.NullInt64
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Company, &l.Phone, &l.Message, &l.Source, &created, &delivered); err != nil {
			return nil, err
		}
		l.CreatedAt = time.Unix(created, 0).UTC()
		if delivered.Valid {
			t := time.Unix(delivered.Int64, 0).UTC()
			l.DeliveredAt = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
