// Package publish turns drafts into content files under a content root.
package publish

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/validate"
)

// MinSources is the number of cited sources a draft needs to be published.
const MinSources = 2

// MaxImageBytes caps decoded hero images.
const MaxImageBytes = 8 << 20

var (
	// ErrInvalidDraft is returned when a draft fails validation.
	ErrInvalidDraft = errors.New("invalid draft")
	// ErrTooFewSources is returned when a draft cites fewer than MinSources.
	ErrTooFewSources = errors.New("draft needs at least 2 sources")
)

// Source is one cited reference.
type Source struct {
	Title     string `json:"title" yaml:"title" validate:"required"`
	URL       string `json:"url" yaml:"url" validate:"required,weburl"`
	Publisher string `json:"publisher,omitempty" yaml:"publisher"`
	Date      string `json:"date,omitempty" yaml:"date"`
}

// Draft is an article ready to be written to disk.
type Draft struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description,omitempty" validate:"max=500"`
	Category    string    `json:"category" validate:"required"`
	Subtopic    string    `json:"subtopic,omitempty"`
	Tags        []string  `json:"tags,omitempty" validate:"max=20"`
	Body        string    `json:"body" validate:"required"`
	Sources     []Source  `json:"sources" validate:"dive"`
	Cover       string    `json:"cover,omitempty"`
	Date        time.Time `json:"date,omitempty"`

	// Image is a base64 payload or data URL. ImageData takes precedence.
	Image     string `json:"image_base64,omitempty"`
	ImageData []byte `json:"-"`
}

// Published describes a written article.
type Published struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Category string `json:"category"`
	Subtopic string `json:"subtopic,omitempty"`
	Path     string `json:"path"`
	URL      string `json:"url"`
	Image    string `json:"image,omitempty"`
}

// Publisher writes drafts into one content root directory.
type Publisher struct {
	Root     string
	AuditDir string
	// SkipDirs must match the scanner's content.Options.SkipDirs so that
	// every published article is visible to the index.
	SkipDirs map[string]bool
	Logger   *zap.Logger
	Now      func() time.Time

	validate *validate.Validator
}

// New returns a Publisher writing into root and auditing into auditDir.
// An empty auditDir disables the audit log.
func New(root, auditDir string) *Publisher {
	return &Publisher{Root: root, AuditDir: auditDir, Now: time.Now, validate: validate.New()}
}

// Validate checks a draft without writing anything.
func (p *Publisher) Validate(d Draft) error {
	if len(d.Sources) < MinSources {
		return ErrTooFewSources
	}
	if content.Canonicalize(d.Category) == "" {
		return fmt.Errorf("%w: category has no usable characters", ErrInvalidDraft)
	}
	if content.Canonicalize(d.Title) == "" {
		return fmt.Errorf("%w: title has no usable characters", ErrInvalidDraft)
	}
	v := p.validate
	if v == nil {
		v = validate.New()
	}
	if err := v.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return nil
}

// Publish validates d and writes it as <category>[/<subtopic>]/<slug>.md.
// Existing folders whose canonical key matches are reused so their
// on-disk casing is kept. The slug gets a -2, -3, ... suffix when taken.
func (p *Publisher) Publish(d Draft) (Published, error) {
	if err := p.Validate(d); err != nil {
		return Published{}, err
	}

	img, ext, err := decodeImage(d)
	if err != nil {
		return Published{}, err
	}

	catDir, err := p.resolveDir(p.Root, d.Category)
	if err != nil {
		return Published{}, err
	}
	dir := catDir
	if content.Canonicalize(d.Subtopic) != "" {
		if dir, err = p.resolveDir(filepath.Join(p.Root, catDir), d.Subtopic); err != nil {
			return Published{}, err
		}
		dir = filepath.Join(catDir, dir)
	}
	absDir := filepath.Join(p.Root, dir)

	date := d.Date
	if date.IsZero() {
		date = p.now()
	}
	text := render(d, date.UTC())

	base := content.Canonicalize(d.Title)
	slug, err := writeUnique(absDir, base, []byte(text))
	if err != nil {
		return Published{}, err
	}

	out := Published{
		Slug:     slug,
		Category: content.Canonicalize(d.Category),
		Subtopic: content.Canonicalize(d.Subtopic),
		Path:     filepath.ToSlash(filepath.Join(dir, slug+".md")),
	}
	it := content.Item{Slug: slug, Category: content.NewLabel(d.Category), Subtopic: content.NewLabel(d.Subtopic)}
	out.ID = it.ID()
	out.URL = it.URLPath()

	if img != nil {
		name := slug + ext
		if err := os.WriteFile(filepath.Join(absDir, name), img, 0o644); err != nil {
			return out, fmt.Errorf("write hero image: %w", err)
		}
		out.Image = path.Join(filepath.ToSlash(dir), name)
	}

	if p.AuditDir != "" {
		err := AppendAudit(p.AuditDir, AuditEntry{
			Action:    "publish",
			ArticleID: out.ID,
			Path:      out.Path,
			Sources:   len(d.Sources),
			Image:     out.Image != "",
		})
		if err != nil {
			p.logger().Warn("audit log write failed", zap.String("id", out.ID), zap.Error(err))
		}
	}
	return out, nil
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Publisher) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// resolveDir returns the name of the child of parent whose canonical key
// equals name's, creating the canonical folder when none exists. Folders
// the scanner skips are never reused or created.
func (p *Publisher) resolveDir(parent, name string) (string, error) {
	opts := content.Options{SkipDirs: p.SkipDirs}
	key := content.Canonicalize(name)
	if entries, err := os.ReadDir(parent); err == nil {
		for _, e := range entries {
			if e.IsDir() && !opts.SkipDir(e.Name()) && content.Canonicalize(e.Name()) == key {
				return e.Name(), nil
			}
		}
	}
	if opts.SkipDir(key) {
		return "", fmt.Errorf("%w: %q maps to folder %q, which the index skips", ErrInvalidDraft, name, key)
	}
	if err := os.MkdirAll(filepath.Join(parent, key), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}
	return key, nil
}

// writeUnique creates <base>.md in dir, bumping the suffix until a slug is
// free. Creation uses O_EXCL so concurrent publishes never overwrite.
func writeUnique(dir, base string, data []byte) (string, error) {
	taken := map[string]bool{}
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && content.IsContentFile(e.Name()) {
				taken[content.Canonicalize(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))] = true
			}
		}
	}
	for n := 1; n < 1000; n++ {
		slug := base
		if n > 1 {
			slug = base + "-" + strconv.Itoa(n)
		}
		if taken[slug] {
			continue
		}
		f, err := os.OpenFile(filepath.Join(dir, slug+".md"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create article: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write article: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("write article: %w", err)
		}
		return slug, nil
	}
	return "", fmt.Errorf("no free slug for %q", base)
}

func decodeImage(d Draft) ([]byte, string, error) {
	data := d.ImageData
	if data == nil && strings.TrimSpace(d.Image) != "" {
		raw := strings.TrimSpace(d.Image)
		if strings.HasPrefix(raw, "data:") {
			if _, after, ok := strings.Cut(raw, ","); ok {
				raw = after
			}
		}
		var err error
		data, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
				return nil, "", fmt.Errorf("%w: image is not valid base64", ErrInvalidDraft)
			}
		}
	}
	if data == nil {
		return nil, "", nil
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidDraft, MaxImageBytes)
	}
	ext := ImageExt(data)
	if ext == "" {
		return nil, "", fmt.Errorf("%w: image must be jpeg, png or webp", ErrInvalidDraft)
	}
	return data, ext, nil
}

// ImageExt sniffs data and returns its hero image extension, or "".
func ImageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
