package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/breakdown/internal/cli"
	"github.com/sgx-labs/breakdown/internal/config"
	"github.com/sgx-labs/breakdown/internal/indexer"
)

func reindexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Scan the content folders and refresh the article index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rewrite every stored article regardless of changes")
	return cmd
}

func statsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many articles are indexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runReindex(cmd *cobra.Command, force bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	if len(a.dirs) == 0 {
		return userError("No content roots configured",
			"Set [content].roots in .breakdown/config.toml or BREAKDOWN_CONTENT_ROOTS")
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	coll := a.index.Collection()
	stats, err := indexer.SyncWithProgress(db, coll, force, func(done, total int, id string) {
		fmt.Fprintf(os.Stderr, "\r  [%d/%d] %-60s", done, total, cli.Excerpt(id))
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	data, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runStats(cmd *cobra.Command, jsonOut bool) error {
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

	stats := indexer.GetStats(db)
	coll := a.index.Collection()
	stats["articles_on_disk"] = coll.Len()
	stats["tags"] = len(coll.TagCounts())
	stats["categories"] = len(coll.Categories())

	w := cmd.OutOrStdout()
	if jsonOut {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Fprintln(w, string(data))
		return nil
	}

	cli.Header(w, "Breakdown index")
	cli.Section(w, "Content")
	cli.KeyValue(w, "site", cli.ShortenHome(config.SitePath()))
	for _, d := range a.dirs {
		cli.KeyValue(w, "root", cli.ShortenHome(d))
	}
	cli.KeyValue(w, "articles on disk", cli.FormatNumber(coll.Len()))
	cli.KeyValue(w, "categories", len(coll.Categories()))
	cli.KeyValue(w, "tags", len(coll.TagCounts()))

	cli.Section(w, "Database")
	for _, key := range []string{"total_articles_in_index", "last_reindex", "timestamp", "db_size_mb", "status"} {
		if v, ok := stats[key]; ok {
			cli.KeyValue(w, key, v)
		}
	}
	fmt.Fprintln(w)
	return nil
}
