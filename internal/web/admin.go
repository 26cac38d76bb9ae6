package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/guard"
	"github.com/sgx-labs/breakdown/internal/indexer"
	"github.com/sgx-labs/breakdown/internal/llm"
	"github.com/sgx-labs/breakdown/internal/publish"
)

type reindexResult struct {
	Rebuild *content.RebuildStats `json:"rebuild,omitempty"`
	Sync    *indexer.Stats        `json:"sync,omitempty"`
}

// reindex swaps in a fresh search snapshot and syncs the article table
// from it.
func (s *server) reindex(force bool) (reindexResult, error) {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()

	var res reindexResult
	var coll *content.Collection
	if s.opts.Index != nil {
		st := s.opts.Index.Rebuild()
		res.Rebuild = &st
		coll = s.opts.Index.Collection()
	} else {
		coll = s.opts.Reader.Collection()
	}
	if s.opts.DB != nil {
		st, err := indexer.Sync(s.opts.DB, coll, force)
		if err != nil {
			return res, err
		}
		res.Sync = st
	}
	return res, nil
}

func (s *server) publishAndIndex(w http.ResponseWriter, d publish.Draft) {
	if s.opts.Publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not configured")
		return
	}
	out, err := s.opts.Publisher.Publish(d)
	if errors.Is(err, publish.ErrTooFewSources) || errors.Is(err, publish.ErrInvalidDraft) {
		writeStatusJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		s.log.Error("publish", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "publish failed")
		return
	}
	s.log.Info("published", zap.String("id", out.ID), zap.String("path", out.Path))
	if _, err := s.reindex(false); err != nil {
		s.log.Warn("reindex after publish", zap.Error(err))
	}
	writeStatusJSON(w, http.StatusCreated, map[string]any{"ok": true, "published": out})
}

func (s *server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var d publish.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	s.publishAndIndex(w, d)
}

// handleUpload publishes a multipart Markdown file. The form fields
// category and subtopic override the file's front matter; an optional
// image part becomes the hero image.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	d, err := publish.ParseDraft(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := strings.TrimSpace(r.FormValue("category")); v != "" {
		d.Category = v
	}
	if v := strings.TrimSpace(r.FormValue("subtopic")); v != "" {
		d.Subtopic = v
	}
	if img, _, err := r.FormFile("image"); err == nil {
		defer img.Close()
		data, err := io.ReadAll(io.LimitReader(img, publish.MaxImageBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read image")
			return
		}
		d.ImageData = data
	}
	s.publishAndIndex(w, d)
}

type generateRequest struct {
	Topic      string           `json:"topic" validate:"required,max=300"`
	Category   string           `json:"category" validate:"required,max=100"`
	Subtopic   string           `json:"subtopic" validate:"max=100"`
	Guidelines string           `json:"guidelines" validate:"max=4000"`
	Minutes    int              `json:"minutes" validate:"omitempty,min=1,max=15"`
	Sources    []llm.SourceHint `json:"sources" validate:"max=10"`
	Publish    bool             `json:"publish"`
}

// handleGenerate drafts an article with the configured model. With
// publish set it goes live when it cites enough sources; otherwise, or
// when publishing is refused, it is saved as a draft.
func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) || !s.validated(w, req) {
		return
	}
	for _, text := range []string{req.Topic, req.Guidelines} {
		if err := guard.CheckPrompt(r.Context(), text); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if s.opts.LLM == nil {
		writeError(w, http.StatusServiceUnavailable, "generation is not configured")
		return
	}

	article, err := llm.GenerateArticle(r.Context(), s.opts.LLM, llm.Brief{
		Topic:      req.Topic,
		Category:   req.Category,
		Subtopic:   req.Subtopic,
		Guidelines: req.Guidelines,
		Minutes:    req.Minutes,
		Sources:    req.Sources,
	})
	if err != nil {
		s.log.Error("generate article", zap.String("provider", s.opts.LLM.Provider()), zap.Error(err))
		writeError(w, http.StatusBadGateway, "generation failed")
		return
	}
	d := publish.FromArticle(article, req.Category, req.Subtopic)
	resp := map[string]any{"ok": true, "article": article, "words": article.Words()}

	if req.Publish && s.opts.Publisher != nil {
		out, err := s.opts.Publisher.Publish(d)
		if err == nil {
			if _, err := s.reindex(false); err != nil {
				s.log.Warn("reindex after publish", zap.Error(err))
			}
			resp["published"] = out
			writeStatusJSON(w, http.StatusCreated, resp)
			return
		}
		resp["publish_error"] = err.Error()
	}

	if s.opts.DraftsDir == "" {
		writeJSON(w, resp)
		return
	}
	p, err := publish.SaveDraft(s.opts.DraftsDir, req.Topic, publish.Render(d))
	if err != nil {
		s.log.Error("save draft", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save draft")
		return
	}
	resp["draft"] = p
	writeJSON(w, resp)
}

type draftRequest struct {
	Topic string `json:"topic" validate:"max=300"`
	Text  string `json:"text" validate:"required"`
}

func (s *server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeJSON(w, r, &req) || !s.validated(w, req) {
		return
	}
	if s.opts.DraftsDir == "" {
		writeError(w, http.StatusServiceUnavailable, "drafts directory is not configured")
		return
	}
	p, err := publish.SaveDraft(s.opts.DraftsDir, req.Topic, req.Text)
	if errors.Is(err, publish.ErrInvalidDraft) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("save draft", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save draft")
		return
	}
	writeStatusJSON(w, http.StatusCreated, map[string]any{"ok": true, "path": p})
}

type reindexRequest struct {
	Force bool `json:"force"`
}

func (s *server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.reindex(req.Force)
	if err != nil {
		s.log.Error("reindex", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	writeJSON(w, res)
}

func (s *server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	subs, err := s.opts.DB.Subscribers(limit)
	if err != nil {
		s.log.Error("list subscribers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list subscribers")
		return
	}
	writeJSON(w, map[string]any{"subscribers": subs, "count": len(subs)})
}
