package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// AuditEntry is a single line in the append-only publish log.
type AuditEntry struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"` // "publish", "upload", "draft"
	ArticleID string `json:"article_id,omitempty"`
	Path      string `json:"path,omitempty"`
	Sources   int    `json:"sources,omitempty"`
	Image     bool   `json:"image,omitempty"`
}

// AuditLogPath returns the path of the publish log inside dataDir.
func AuditLogPath(dataDir string) string {
	return filepath.Join(dataDir, "publish-audit.log")
}

// AppendAudit appends an entry to the publish log (JSONL format).
func AppendAudit(dataDir string, entry AuditEntry) error {
	path := AuditLogPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
