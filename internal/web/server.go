// Package web serves the Breakdown JSON API, feeds and hero images.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/feed"
	"github.com/sgx-labs/breakdown/internal/llm"
	"github.com/sgx-labs/breakdown/internal/logger"
	"github.com/sgx-labs/breakdown/internal/notify"
	"github.com/sgx-labs/breakdown/internal/publish"
	"github.com/sgx-labs/breakdown/internal/store"
	"github.com/sgx-labs/breakdown/internal/validate"
)

// Request body caps.
const (
	maxJSONBody   = 1 << 20
	maxUploadBody = publish.MaxImageBytes*2 + 1<<20
)

// Options wires the server to its collaborators. Only Reader is required;
// routes whose collaborator is nil answer 503.
type Options struct {
	// Reader answers every article query. When Index is set it should be
	// the same value.
	Reader content.Reader
	// Index is rebuilt by the reindex route and after publishing.
	Index *content.SearchIndex
	DB    *store.DB

	Publisher *publish.Publisher
	LLM       llm.Client
	Notifier  *notify.Notifier

	Site        feed.Site
	Roots       []content.Root
	MediaPrefix string
	DraftsDir   string

	SearchLimit   int
	ExcerptRadius int

	// AdminToken guards /api/admin/*. When empty, only loopback clients
	// may use those routes.
	AdminToken string
	// RatePerMinute limits public POSTs per client IP. Zero disables it.
	RatePerMinute int
	// ReindexLock serializes rebuild and sync runs with other writers of
	// the same database, such as a content watcher. Nil means a private lock.
	ReindexLock sync.Locker

	Version string
	Logger  *zap.Logger
}

type server struct {
	opts     Options
	log      *zap.Logger
	validate *validate.Validator

	// reindexMu serializes rebuild + sync runs.
	reindexMu sync.Locker
	// bg tracks notification goroutines started by requests.
	bg sync.WaitGroup
}

// NewHandler returns the complete HTTP handler.
func NewHandler(opts Options) http.Handler {
	h, _ := newServer(opts)
	return h
}

func newServer(opts Options) (http.Handler, *server) {
	s := &server{opts: opts, log: logger.OrNop(opts.Logger), validate: validate.New(), reindexMu: opts.ReindexLock}
	if s.reindexMu == nil {
		s.reindexMu = &sync.Mutex{}
	}

	var limit func(http.HandlerFunc) http.Handler
	if opts.RatePerMinute > 0 {
		rl := newRateLimiter(opts.RatePerMinute)
		limit = func(h http.HandlerFunc) http.Handler { return rl.middleware(h) }
	} else {
		limit = func(h http.HandlerFunc) http.Handler { return h }
	}
	admin := func(h http.HandlerFunc) http.Handler { return s.adminOnly(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts", s.handlePosts)
	mux.HandleFunc("GET /api/posts/{slug}", s.handlePost)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/category/{category}", s.handleCategory)
	mux.HandleFunc("GET /api/category/{category}/{subtopic}", s.handleCategory)
	mux.HandleFunc("GET /api/subtopics", s.handleSubtopics)
	mux.HandleFunc("GET /api/tags", s.handleTags)
	mux.HandleFunc("GET /api/tags/{tag}", s.handleTag)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/related", s.handleRelated)

	mux.Handle("POST /api/views", limit(s.handleAddView))
	mux.HandleFunc("GET /api/views", s.handleViews)
	mux.HandleFunc("GET /api/trending", s.handleTrending)

	mux.Handle("POST /api/subscribe", limit(s.handleSubscribe))
	mux.Handle("POST /api/unsubscribe", limit(s.handleUnsubscribe))
	mux.Handle("POST /api/lead", limit(s.handleLead))
	mux.Handle("POST /api/preview-markdown", limit(s.handlePreview))
	mux.Handle("POST /api/ask", limit(s.handleAsk))

	mux.Handle("POST /api/admin/publish", admin(s.handlePublish))
	mux.Handle("POST /api/admin/upload", admin(s.handleUpload))
	mux.Handle("POST /api/admin/generate", admin(s.handleGenerate))
	mux.Handle("POST /api/admin/drafts", admin(s.handleSaveDraft))
	mux.Handle("POST /api/admin/reindex", admin(s.handleReindex))
	mux.Handle("GET /api/admin/subscribers", admin(s.handleSubscribers))

	mux.HandleFunc("GET /feed.xml", s.handleFeed)
	mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET "+mediaPrefix(opts.MediaPrefix)+"/{path...}", s.handleMedia)

	return s.requestLog(securityHeaders(mux)), s
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, opts Options) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	handler, s := newServer(opts)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(os.Stderr, "Breakdown: http://%s\n", listener.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	s.bg.Wait()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// --- Middleware ---

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", clientIP(r)),
		)
	})
}

// adminOnly requires the bearer token, or a loopback client addressing a
// local host name when no token is configured.
func (s *server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := s.opts.AdminToken; token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if !isLocalHost(r.Host) || !isLocalHost(r.RemoteAddr) {
			writeError(w, http.StatusForbidden, "admin routes are restricted to localhost")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isLocalHost reports whether a host or host:port names the loopback
// interface. IPv6 brackets are accepted.
func isLocalHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// --- Helpers ---

func mediaPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/media"
	}
	return "/" + p
}

// decodeJSON reads a size-limited JSON body into v, rejecting unknown
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def, maxVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	if maxVal > 0 && n > maxVal {
		return maxVal
	}
	return n
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeStatusJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
