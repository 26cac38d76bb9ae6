// Package main is the entrypoint for the breakdown CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/config"
	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/indexer"
	"github.com/sgx-labs/breakdown/internal/logger"
	mcpserver "github.com/sgx-labs/breakdown/internal/mcp"
	"github.com/sgx-labs/breakdown/internal/publish"
	"github.com/sgx-labs/breakdown/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "breakdown",
		Short: "Health benefits blog content index",
		Long:  "Breakdown indexes a folder of Markdown articles and serves listings, search, feeds and publishing over HTTP, MCP and the command line.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	root.AddCommand(versionCmd())
	root.AddCommand(configCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(reindexCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(listCmd())
	root.AddCommand(tagsCmd())
	root.AddCommand(showCmd())
	root.AddCommand(publishCmd())
	root.AddCommand(draftCmd())
	root.AddCommand(generateCmd())

	// Global --site flag
	root.PersistentFlags().StringVar(&config.SiteOverride, "site", "", "Site directory (overrides BREAKDOWN_SITE_PATH and config)")

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the breakdown version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "breakdown %s\n", Version)
			return nil
		},
	}
}

// app is the state shared by commands: loaded config, logger and the
// content index over the configured roots.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	dirs  []string
	roots []content.Root
	live  *content.Index
	index *content.SearchIndex
}

func loadApp() (*app, error) {
	if config.SitePath() == "" {
		return nil, config.ErrNoSite
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, userError(fmt.Sprintf("Cannot read config: %v", err),
			"Fix the file or regenerate it with 'breakdown config init --force'")
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, dirs: config.ContentRoots()}
	a.roots = content.DirRoots(a.dirs)
	a.live = content.New(a.roots, a.contentOptions())
	a.index = content.NewSearchIndex(a.live)

	indexer.Version = Version
	mcpserver.Version = Version
	return a, nil
}

func (a *app) contentOptions() content.Options {
	return content.Options{
		WordsPerMinute: a.cfg.Content.WordsPerMinute,
		IncludeDrafts:  a.cfg.Content.IncludeDrafts,
		MediaPrefix:    a.cfg.Content.MediaPrefix,
		SkipDirs:       config.SkipDirs(),
		Logger:         a.log,
	}
}

// publisher writes into the first content root with the scanner's skip
// rules, so everything it publishes is visible to the index.
func (a *app) publisher() *publish.Publisher {
	p := publish.New(a.dirs[0], config.DataDir())
	p.SkipDirs = a.contentOptions().SkipDirs
	p.Logger = a.log
	return p
}

// reader is the read side the config asks for: live rescans or the
// cached search index.
func (a *app) reader() content.Reader {
	if strings.EqualFold(strings.TrimSpace(a.cfg.Search.Mode), "live") {
		return a.live
	}
	return a.index
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func openDB() (*store.DB, error) {
	db, err := store.Open()
	if err != nil {
		return nil, &breakdownError{
			hint:  fmt.Sprintf("Check that %s is writable, then run 'breakdown reindex'", config.DataDir()),
			cause: fmt.Errorf("%w: %v", config.ErrNoDatabase, err),
		}
	}
	return db, nil
}

// breakdownError is an error with a hint for the user.
type breakdownError struct {
	message string
	hint    string
	cause   error
}

func (e *breakdownError) Error() string {
	if e.message == "" && e.cause != nil {
		return fmt.Sprintf("%v\n  Hint: %s", e.cause, e.hint)
	}
	return fmt.Sprintf("%s\n  Hint: %s", e.message, e.hint)
}

func (e *breakdownError) Unwrap() error { return e.cause }

func userError(message, hint string) error {
	return &breakdownError{message: message, hint: hint}
}

func isUserError(err error) bool {
	var be *breakdownError
	return errors.As(err, &be)
}
