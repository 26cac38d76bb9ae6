package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/config"
	"github.com/sgx-labs/breakdown/internal/feed"
	"github.com/sgx-labs/breakdown/internal/indexer"
	"github.com/sgx-labs/breakdown/internal/llm"
	"github.com/sgx-labs/breakdown/internal/notify"
	"github.com/sgx-labs/breakdown/internal/publish"
	"github.com/sgx-labs/breakdown/internal/store"
	"github.com/sgx-labs/breakdown/internal/watcher"
	"github.com/sgx-labs/breakdown/internal/web"
)

func serveCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, feeds and hero images",
		Long: `Start the HTTP server for the site.

Public routes are read-only except views, subscribe, lead, preview and ask.
Admin routes (/api/admin/*) need the configured admin token, or a loopback
client when no token is set.

Examples:
  breakdown serve
  breakdown serve --addr 0.0.0.0:8080 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if !cmd.Flags().Changed("watch") {
				watch = a.cfg.Search.Watch
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a, addr, watch)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild the index when content files change")
	return cmd
}

func runServe(ctx context.Context, a *app, addr string, watch bool) error {
	db, err := store.Open()
	if err != nil {
		a.log.Warn("database unavailable, views, forms and related articles are disabled", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
	}

	syncIndex(a, db, false)

	client, err := llm.NewClient(llm.SettingsFromConfig(a.cfg))
	if err != nil {
		if !errors.Is(err, llm.ErrNoProvider) {
			a.log.Warn("generation disabled", zap.Error(err))
		}
		client = nil
	}

	var pub *publish.Publisher
	if len(a.dirs) > 0 {
		pub = a.publisher()
	}

	opts := web.Options{
		Reader:    a.reader(),
		Index:     a.index,
		DB:        db,
		Publisher: pub,
		LLM:       client,
		Notifier:  notify.New(a.cfg.Notify, a.log),
		Site: feed.Site{
			Name:        a.cfg.Site.Name,
			URL:         a.cfg.Site.URL,
			Description: a.cfg.Site.Description,
		},
		Roots:         a.roots,
		MediaPrefix:   a.cfg.Content.MediaPrefix,
		DraftsDir:     config.DraftsDir(),
		SearchLimit:   a.cfg.Search.DefaultLimit,
		ExcerptRadius: a.cfg.Content.ExcerptRadius,
		AdminToken:    a.cfg.Server.AdminToken,
		RatePerMinute: a.cfg.Server.RatePerMinute,
		ReindexLock:   &syncMu,
		Version:       Version,
		Logger:        a.log,
	}
	if watch {
		go func() {
			err := watcher.Watch(ctx, a.dirs, func() { syncIndex(a, db, false) }, watcher.Options{
				Skip:   a.contentOptions(),
				Logger: a.log,
			})
			if err != nil {
				a.log.Error("watcher stopped", zap.Error(err))
			}
		}()
	}

	return web.Serve(ctx, addr, opts)
}

// syncMu serializes every rebuild and sync against the database: the
// watcher, publishing and the web reindex route.
var syncMu sync.Mutex

// syncIndex swaps in a fresh search snapshot and, with a database,
// brings the article table up to date with it.
func syncIndex(a *app, db *store.DB, force bool) {
	syncMu.Lock()
	defer syncMu.Unlock()
	st := a.index.Rebuild()
	a.log.Info("search index rebuilt", zap.Int("articles", st.Items), zap.Duration("took", st.Duration))
	if db == nil {
		return
	}
	stats, err := indexer.Sync(db, a.index.Collection(), force)
	if err != nil {
		a.log.Error("article sync failed", zap.Error(err))
		return
	}
	a.log.Info("article table synced",
		zap.Int("indexed", stats.NewlyIndexed),
		zap.Int("unchanged", stats.SkippedUnchanged),
		zap.Int("removed", stats.Removed))
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch content folders and keep the article index current",
		Long:  "Monitor the content roots for Markdown, MDX and image changes. Rebuilds the index and syncs the article table after a 2-second quiet period.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			syncIndex(a, db, false)
			return watcher.Watch(ctx, a.dirs, func() { syncIndex(a, db, false) }, watcher.Options{
				Skip:   a.contentOptions(),
				Logger: a.log,
				Ready: func(dirs int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d folders. Press Ctrl-C to stop.\n", dirs)
				},
			})
		},
	}
}
