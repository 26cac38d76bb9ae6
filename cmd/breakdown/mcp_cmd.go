package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/sgx-labs/breakdown/internal/mcp"
	"github.com/sgx-labs/breakdown/internal/store"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the AI tool integration server (MCP) on stdio",
		Long: `Serve article search and lookup to MCP clients over stdio.

Tools: search_articles, get_article, list_articles, list_tags,
related_articles, reindex, index_stats.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			// stdout carries the protocol; related_articles and reindex
			// degrade without a database.
			db, err := store.Open()
			if err != nil {
				a.log.Warn("database unavailable, using tag overlap for related articles", zap.Error(err))
				db = nil
			} else {
				defer db.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return mcpserver.Serve(ctx, a.index, db)
		},
	}
}
