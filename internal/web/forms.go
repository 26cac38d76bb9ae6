package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/guard"
	"github.com/sgx-labs/breakdown/internal/llm"
	"github.com/sgx-labs/breakdown/internal/notify"
	"github.com/sgx-labs/breakdown/internal/render"
	"github.com/sgx-labs/breakdown/internal/store"
	"github.com/sgx-labs/breakdown/internal/validate"
)

const (
	notifyTimeout = 30 * time.Second
	askContexts   = 4
	offTopicReply = "I can only help with questions about health benefits, insurance and compliance."
)

func (s *server) requireDB(w http.ResponseWriter) bool {
	if s.opts.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return false
	}
	return true
}

// validated runs struct validation and writes field errors as
// {"error": ..., "fields": {...}}.
func (s *server) validated(w http.ResponseWriter, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return true
	}
	var verr *validate.Error
	if errors.As(err, &verr) {
		writeStatusJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": verr.Error(), "fields": verr.Fields})
		return false
	}
	writeError(w, http.StatusBadRequest, err.Error())
	return false
}

// --- Views ---

type viewRequest struct {
	ID string `json:"id" validate:"required"`
}

func (s *server) handleAddView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if !decodeJSON(w, r, &req) || !s.validated(w, req) || !s.requireDB(w) {
		return
	}
	id := strings.Trim(req.ID, "/")
	if _, ok := s.collection().Get(id); !ok {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	n, err := s.opts.DB.IncrementView(id)
	if err != nil {
		s.log.Error("increment view", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not record view")
		return
	}
	writeJSON(w, map[string]any{"id": id, "views": n})
}

func (s *server) handleViews(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(r.URL.Query().Get("id"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if !s.requireDB(w) {
		return
	}
	n, err := s.opts.DB.Views(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read views")
		return
	}
	writeJSON(w, map[string]any{"id": id, "views": n})
}

type trendingItem struct {
	content.Summary
	Views int64 `json:"views"`
}

func (s *server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	counts, err := s.opts.DB.Trending(queryInt(r, "limit", store.DefaultTrendingLimit, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read trending")
		return
	}
	coll := s.collection()
	items := []trendingItem{}
	for _, vc := range counts {
		if it, ok := coll.Get(vc.ArticleID); ok {
			items = append(items, trendingItem{Summary: it.Summary(), Views: vc.Count})
		}
	}
	writeJSON(w, map[string]any{"items": items})
}

// --- Newsletter ---

type subscribeRequest struct {
	Email  string `json:"email" validate:"required,email,max=254"`
	Name   string `json:"name" validate:"max=200"`
	Source string `json:"source" validate:"max=200"`
	// Honeypot: hidden from people, filled in by bots.
	Website string `json:"company_website"`
}

func (s *server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Website) != "" {
		s.log.Info("subscribe honeypot tripped", zap.String("remote", clientIP(r)))
		writeJSON(w, map[string]any{"ok": true})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !s.validated(w, req) || !s.requireDB(w) {
		return
	}
	created, err := s.opts.DB.Subscribe(req.Email, req.Name, req.Source)
	if errors.Is(err, store.ErrUnsubscribed) {
		writeStatusJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "email is unsubscribed"})
		return
	}
	if err != nil {
		s.log.Error("subscribe", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not subscribe")
		return
	}
	if created {
		s.notifyAsync(notify.Event{Type: "newsletter", Name: req.Name, Email: req.Email, Source: req.Source}, nil)
	}
	writeJSON(w, map[string]any{"ok": true, "created": created})
}

type unsubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !s.validated(w, req) || !s.requireDB(w) {
		return
	}
	if err := s.opts.DB.Unsubscribe(req.Email); err != nil {
		s.log.Error("unsubscribe", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not unsubscribe")
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// --- Leads ---

type leadRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Company string `json:"company" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Message string `json:"message" validate:"max=5000"`
	Source  string `json:"source" validate:"max=200"`
	Website string `json:"company_website"`
}

// handleLead stores the lead first, then notifies in the background. The
// lead is marked delivered only when every destination accepted it.
func (s *server) handleLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Website) != "" {
		writeJSON(w, map[string]any{"ok": true})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if !s.validated(w, req) || !s.requireDB(w) {
		return
	}
	lead, err := s.opts.DB.SaveLead(store.Lead{
		Name: req.Name, Email: req.Email, Company: req.Company,
		Phone: req.Phone, Message: req.Message, Source: req.Source,
	})
	if err != nil {
		s.log.Error("save lead", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save lead")
		return
	}
	s.notifyAsync(notify.LeadEvent(lead), func() {
		if err := s.opts.DB.MarkLeadDelivered(lead.ID); err != nil {
			s.log.Warn("mark lead delivered", zap.String("id", lead.ID), zap.Error(err))
		}
	})
	writeJSON(w, map[string]any{"ok": true, "id": lead.ID})
}

// notifyAsync delivers ev off the request path and runs onDelivered after
// a fully successful fan-out.
func (s *server) notifyAsync(ev notify.Event, onDelivered func()) {
	n := s.opts.Notifier
	if !n.Enabled() {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.LeadReceived(ctx, ev); err != nil {
			return
		}
		if onDelivered != nil {
			onDelivered()
		}
	}()
}

// --- Markdown preview ---

type previewRequest struct {
	Markdown string `json:"markdown"`
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	html, err := render.Markdown(req.Markdown)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render markdown")
		return
	}
	writeJSON(w, map[string]any{"html": html, "toc": render.TOC(req.Markdown)})
}

// --- Ask ---

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// handleAsk answers a reader question from the top search hits. Unsafe
// questions are refused; off-topic ones get a fixed reply without a
// model call.
func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if !s.validated(w, req) {
		return
	}
	err := guard.CheckQuestion(r.Context(), req.Question)
	switch {
	case errors.Is(err, guard.ErrPromptInjection):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, guard.ErrOffTopic):
		writeJSON(w, map[string]any{"answer": offTopicReply, "off_topic": true, "sources": []content.Summary{}})
		return
	}
	if s.opts.LLM == nil {
		writeError(w, http.StatusServiceUnavailable, "answers are not configured")
		return
	}

	hits := s.opts.Reader.SearchWith(req.Question, content.SearchOptions{Limit: askContexts, Radius: s.opts.ExcerptRadius})
	if len(hits) == 0 {
		hits = s.searchTerms(req.Question)
	}
	contexts := make([]llm.Context, 0, len(hits))
	sources := make([]content.Summary, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, llm.Context{Title: h.Title, URL: h.URL, Excerpt: h.Excerpt})
		sources = append(sources, h.Summary)
	}

	answer, err := llm.Answer(r.Context(), s.opts.LLM, req.Question, contexts)
	if err != nil {
		s.log.Error("answer", zap.String("provider", s.opts.LLM.Provider()), zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not answer right now")
		return
	}
	writeJSON(w, map[string]any{"answer": answer, "sources": sources})
}

// searchTerms retries a whole-question miss with each word of four or
// more letters.
func (s *server) searchTerms(question string) []content.Result {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-'
	})
	seen := make(map[string]bool)
	var out []content.Result
	for _, wd := range words {
		if len(wd) < 4 {
			continue
		}
		for _, h := range s.opts.Reader.SearchWith(wd, content.SearchOptions{Limit: askContexts, Radius: s.opts.ExcerptRadius}) {
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			out = append(out, h)
			if len(out) == askContexts {
				return out
			}
		}
	}
	return out
}
