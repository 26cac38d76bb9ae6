package content

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Root is one directory tree of content files.
type Root struct {
	// Name identifies the root in item records and media URLs.
	Name string
	FS   fs.FS
}

// DirRoot returns a Root for a directory on disk. The directory does not
// have to exist; a missing root scans as empty.
func DirRoot(dir string) Root {
	return Root{Name: filepath.Base(filepath.Clean(dir)), FS: os.DirFS(dir)}
}

// DirRoots returns a Root per directory. Names stay unique so media URLs
// resolve to one root: a second "content" directory becomes "content-2".
func DirRoots(dirs []string) []Root {
	roots := make([]Root, 0, len(dirs))
	used := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		r := DirRoot(dir)
		name := r.Name
		for n := 2; used[name]; n++ {
			name = r.Name + "-" + strconv.Itoa(n)
		}
		used[name] = true
		r.Name = name
		roots = append(roots, r)
	}
	return roots
}

// Options tunes how files become items.
type Options struct {
	WordsPerMinute int
	IncludeDrafts  bool
	// MediaPrefix is prepended to sibling hero image paths. Default "/media".
	MediaPrefix string
	// SkipDirs names directories never descended into, in addition to
	// hidden and underscore-prefixed ones.
	SkipDirs map[string]bool
	Logger   *zap.Logger
	// Now supplies the date of last resort when a file has neither a
	// date key nor a modification time.
	Now func() time.Time
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) mediaPrefix() string {
	if o.MediaPrefix == "" {
		return "/media"
	}
	return "/" + strings.Trim(o.MediaPrefix, "/")
}

// SkipDir reports whether the scanner ignores a directory named name.
func (o Options) SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	return o.SkipDirs[name]
}

// IsContentFile reports whether name is a Markdown or MDX file that the
// scanner reads.
func IsContentFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".mdx":
		return true
	}
	return false
}

// IsImageFile reports whether name has one of the hero image extensions.
func IsImageFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range imageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Scan reads every root and returns the resulting collection.
//
// Roots are visited in the order given; inside a root, directory entries
// are visited in lexicographic order, so when two files resolve to the
// same category/subtopic/slug the one visited last wins, reproducibly.
// Unreadable roots, directories and files are skipped, never returned as
// errors.
func Scan(roots []Root, opts Options) *Collection {
	s := &scanner{opts: opts, log: opts.logger(), byID: make(map[string]int)}
	for _, root := range roots {
		s.scanRoot(root)
	}
	return newCollection(s.items, opts.now())
}

type scanner struct {
	opts  Options
	log   *zap.Logger
	items []Item
	byID  map[string]int
}

func (s *scanner) scanRoot(root Root) {
	if root.FS == nil {
		return
	}
	entries, err := fs.ReadDir(root.FS, ".")
	if err != nil {
		s.log.Debug("content root unreadable", zap.String("root", root.Name), zap.Error(err))
		return
	}
	top := names(entries)
	for _, e := range entries {
		if !e.IsDir() {
			// Files directly under a root need a category key in front matter.
			if IsContentFile(e.Name()) {
				s.add(s.parse(root, ".", e.Name(), top, Label{}, Label{}))
			}
			continue
		}
		if s.opts.SkipDir(e.Name()) {
			continue
		}
		cat := NewLabel(e.Name())
		if cat.IsZero() {
			continue
		}
		s.scanCategory(root, e.Name(), cat)
	}
}

func (s *scanner) scanCategory(root Root, dir string, cat Label) {
	entries, err := fs.ReadDir(root.FS, dir)
	if err != nil {
		s.log.Warn("skipping unreadable category", zap.String("root", root.Name), zap.String("dir", dir), zap.Error(err))
		return
	}
	siblings := names(entries)
	for _, e := range entries {
		if !e.IsDir() {
			if IsContentFile(e.Name()) {
				s.add(s.parse(root, dir, e.Name(), siblings, cat, Label{}))
			}
			continue
		}
		if s.opts.SkipDir(e.Name()) {
			continue
		}
		sub := NewLabel(e.Name())
		if sub.IsZero() {
			continue
		}
		subDir := path.Join(dir, e.Name())
		files, err := fs.ReadDir(root.FS, subDir)
		if err != nil {
			s.log.Warn("skipping unreadable subtopic", zap.String("root", root.Name), zap.String("dir", subDir), zap.Error(err))
			continue
		}
		subSiblings := names(files)
		for _, f := range files {
			if !f.IsDir() && IsContentFile(f.Name()) {
				s.add(s.parse(root, subDir, f.Name(), subSiblings, cat, sub))
			}
		}
	}
}

func (s *scanner) add(it Item, ok bool) {
	if !ok {
		return
	}
	id := it.ID()
	if pos, dup := s.byID[id]; dup {
		s.log.Info("duplicate content identity, later file wins",
			zap.String("id", id),
			zap.String("replaced", s.items[pos].Root+":"+s.items[pos].Path),
			zap.String("winner", it.Root+":"+it.Path))
		s.items[pos] = it
		return
	}
	s.byID[id] = len(s.items)
	s.items = append(s.items, it)
}

func (s *scanner) parse(root Root, dir, name string, siblings map[string]bool, cat, sub Label) (Item, bool) {
	rel := path.Join(dir, name)
	data, err := fs.ReadFile(root.FS, rel)
	if err != nil {
		s.log.Warn("skipping unreadable content file", zap.String("root", root.Name), zap.String("path", rel), zap.Error(err))
		return Item{}, false
	}
	fm, body := SplitFrontMatter(string(data))

	if !s.opts.IncludeDrafts {
		if draft, ok := fm.Bool("draft"); ok && draft {
			return Item{}, false
		}
		if published, ok := fm.Bool("published"); ok && !published {
			return Item{}, false
		}
	}

	if cat.IsZero() {
		cat = NewLabel(fm.String("category"))
		sub = NewLabel(fm.String("subtopic"))
		if cat.IsZero() {
			s.log.Debug("skipping uncategorized content file", zap.String("root", root.Name), zap.String("path", rel))
			return Item{}, false
		}
	}

	base := strings.TrimSuffix(name, path.Ext(name))
	slug := Canonicalize(base)
	if slug == "" {
		slug = Canonicalize(fm.String("title"))
	}
	if slug == "" {
		s.log.Warn("skipping content file without usable slug", zap.String("root", root.Name), zap.String("path", rel))
		return Item{}, false
	}

	it := Item{
		Slug:        slug,
		Title:       fm.String("title"),
		Description: fm.String("description", "dek", "excerpt"),
		Tags:        cleanTags(fm.List("tags", "topics")),
		Category:    cat,
		Subtopic:    sub,
		Body:        body,
		WordCount:   WordCount(body),
		ReadingTime: fm.String("readingTime", "reading_time"),
		HeroImage:   fm.String(heroKeys...),
		Root:        root.Name,
		Path:        rel,
	}
	if it.Title == "" {
		it.Title = TitleFromSlug(slug)
	}
	if n, err := strconv.Atoi(it.ReadingTime); err == nil && n > 0 {
		it.ReadingTime = fmt.Sprintf("%d min read", n)
	}
	if it.ReadingTime == "" {
		it.ReadingTime = ReadingTime(it.WordCount, s.opts.WordsPerMinute)
	}
	if it.HeroImage == "" {
		for _, ext := range imageExts {
			if siblings[base+ext] {
				it.HeroImage = s.opts.mediaPrefix() + "/" + path.Join(root.Name, dir, base+ext)
				break
			}
		}
	}

	if d, ok := ParseDate(fm.String("date", "publishedAt")); ok {
		it.Date = d
	} else if info, err := fs.Stat(root.FS, rel); err == nil && !info.ModTime().IsZero() {
		it.Date = info.ModTime().UTC()
	} else {
		it.Date = s.opts.now().UTC()
	}
	return it, true
}

func names(entries []fs.DirEntry) map[string]bool {
	m := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			m[e.Name()] = true
		}
	}
	return m
}

func sortByDate(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].ID() < items[j].ID()
	})
}
