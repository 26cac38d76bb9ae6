package web

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/feed"
	"github.com/sgx-labs/breakdown/internal/render"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	relatedCount    = 4
)

func (s *server) collection() *content.Collection {
	return s.opts.Reader.Collection()
}

func (s *server) handlePosts(w http.ResponseWriter, r *http.Request) {
	all := s.collection().ListAll()
	limit := queryInt(r, "limit", defaultPageSize, maxPageSize)
	offset := queryInt(r, "offset", 0, 0)
	page := []content.Summary{}
	if offset < len(all) {
		page = all[offset:min(offset+limit, len(all))]
	}
	writeJSON(w, map[string]any{
		"items":  page,
		"total":  len(all),
		"limit":  limit,
		"offset": offset,
	})
}

func (s *server) handlePost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coll := s.collection()
	it, err := coll.GetBySlug(r.PathValue("slug"), q.Get("category"), q.Get("subtopic"))
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	html, err := render.Markdown(it.Body)
	if err != nil {
		s.log.Error("render article", zap.String("id", it.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	writeJSON(w, map[string]any{
		"id":      it.ID(),
		"url":     it.URLPath(),
		"item":    it,
		"html":    html,
		"toc":     render.TOC(it.Body),
		"related": coll.Related(it.ID(), relatedCount),
	})
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"categories": s.collection().Categories()})
}

func (s *server) handleCategory(w http.ResponseWriter, r *http.Request) {
	category, subtopic := r.PathValue("category"), r.PathValue("subtopic")
	items := s.collection().ListByCategory(category, subtopic)
	if len(items) == 0 {
		writeError(w, http.StatusNotFound, "section not found")
		return
	}
	resp := map[string]any{
		"category": items[0].Category,
		"items":    items,
	}
	if subtopic != "" {
		resp["subtopic"] = items[0].Subtopic
	}
	writeJSON(w, resp)
}

func (s *server) handleSubtopics(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if content.Canonicalize(category) == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	writeJSON(w, map[string]any{
		"category":  content.Canonicalize(category),
		"subtopics": s.collection().Subtopics(category),
	})
}

func (s *server) handleTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"tags": s.collection().TagCounts()})
}

func (s *server) handleTag(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	writeJSON(w, map[string]any{
		"tag":   tag,
		"slug":  content.Canonicalize(tag),
		"items": s.collection().ListByTag(tag),
	})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	def := s.opts.SearchLimit
	if def <= 0 {
		def = defaultPageSize
	}
	results := s.opts.Reader.SearchWith(query, content.SearchOptions{
		Limit:    queryInt(r, "limit", def, maxPageSize),
		Category: q.Get("section"),
		Tag:      q.Get("tag"),
		Radius:   s.opts.ExcerptRadius,
	})
	writeJSON(w, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// handleRelated prefers nearest neighbours from the stored term vectors
// and falls back to shared tags when the database has nothing.
func (s *server) handleRelated(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(r.URL.Query().Get("id"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	coll := s.collection()
	if _, ok := coll.Get(id); !ok {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	n := queryInt(r, "limit", relatedCount, 20)

	items := []content.Summary{}
	source := "tags"
	if s.opts.DB != nil {
		near, err := s.opts.DB.RelatedArticles(id, n)
		if err != nil {
			s.log.Warn("related articles", zap.String("id", id), zap.Error(err))
		}
		for _, a := range near {
			if it, ok := coll.Get(a.ArticleID); ok {
				items = append(items, it.Summary())
			}
		}
		if len(items) > 0 {
			source = "vectors"
		}
	}
	if len(items) == 0 {
		items = coll.Related(id, n)
	}
	writeJSON(w, map[string]any{"id": id, "source": source, "items": items})
}

func (s *server) handleFeed(w http.ResponseWriter, r *http.Request) {
	data, err := feed.RSS(s.opts.Site, s.collection().ListAll(), feed.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "feed failed")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(data)
}

func (s *server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	coll := s.collection()
	data, err := feed.Sitemap(s.opts.Site, coll.ListAll(), coll.Categories())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sitemap failed")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(data)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	coll := s.collection()
	resp := map[string]any{
		"status":   "ok",
		"articles": coll.Len(),
		"built_at": coll.BuiltAt().UTC().Format(time.RFC3339),
		"version":  s.opts.Version,
	}
	if s.opts.DB != nil {
		if n, err := s.opts.DB.ArticleCount(); err == nil {
			resp["indexed"] = n
		}
	}
	writeJSON(w, resp)
}

// handleMedia serves sibling hero images as /media/<root>/<path>. Only
// image extensions are served and hidden path segments are refused.
func (s *server) handleMedia(w http.ResponseWriter, r *http.Request) {
	rootName, rel, ok := strings.Cut(r.PathValue("path"), "/")
	if !ok || !fs.ValidPath(rel) || !content.IsImageFile(rel) {
		http.NotFound(w, r)
		return
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			http.NotFound(w, r)
			return
		}
	}
	for _, root := range s.opts.Roots {
		if root.Name != rootName || root.FS == nil {
			continue
		}
		if _, err := fs.Stat(root.FS, rel); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		http.ServeFileFS(w, r, root.FS, rel)
		return
	}
	http.NotFound(w, r)
}
