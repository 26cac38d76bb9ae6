package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/breakdown/internal/cli"
	"github.com/sgx-labs/breakdown/internal/content"
)

func searchCmd() *cobra.Command {
	var (
		limit    int
		category string
		tag      string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search articles by title, tags and text",
		Long: `Search every article. Title and description matches rank first,
then tag matches, then body text; newer articles win ties.

Examples:
  breakdown search "COBRA notice"
  breakdown search hsa --category tax --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.OutOrStdout(), strings.Join(args, " "), limit, category, tag, jsonOut)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", content.DefaultSearchLimit, "Number of results")
	cmd.Flags().StringVar(&category, "category", "", "Only search one category")
	cmd.Flags().StringVar(&tag, "tag", "", "Only search articles with this tag")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runSearch(w io.Writer, query string, limit int, category, tag string, jsonOut bool) error {
	if strings.TrimSpace(query) == "" {
		return userError("Empty search query", "Provide a search term: breakdown search \"your query\"")
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	results := a.live.SearchWith(query, content.SearchOptions{
		Limit:    limit,
		Category: category,
		Tag:      tag,
		Radius:   a.cfg.Content.ExcerptRadius,
	})
	if jsonOut {
		return printJSON(w, results)
	}
	cli.Results(w, results)
	return nil
}

func listCmd() *cobra.Command {
	var (
		tag      string
		category string
		subtopic string
		limit    int
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subtopic != "" && category == "" {
				return userError("--subtopic needs --category", "breakdown list --category compliance --subtopic cobra")
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			items := listItems(a.live, tag, category, subtopic)
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), items)
			}
			cli.Summaries(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Only articles with this tag")
	cmd.Flags().StringVar(&category, "category", "", "Only articles in this category")
	cmd.Flags().StringVar(&subtopic, "subtopic", "", "Only articles in this subtopic")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of articles (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func listItems(r content.Reader, tag, category, subtopic string) []content.Summary {
	switch {
	case category != "":
		items := r.ListByCategory(category, subtopic)
		if tag == "" {
			return items
		}
		out := items[:0:0]
		for _, s := range items {
			for _, t := range s.Tags {
				if content.Canonicalize(t) == content.Canonicalize(tag) {
					out = append(out, s)
					break
				}
			}
		}
		return out
	case tag != "":
		return r.ListByTag(tag)
	default:
		return r.ListAll()
	}
}

func tagsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List every tag with its article count",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			counts := a.live.Collection().TagCounts()
			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, counts)
			}
			if len(counts) == 0 {
				fmt.Fprintln(w, "No tags yet.")
				return nil
			}
			for _, tc := range counts {
				fmt.Fprintf(w, "  %-28s %s%4d%s\n", tc.Tag, cli.Dim, tc.Count, cli.Reset)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func showCmd() *cobra.Command {
	var (
		category string
		subtopic string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "show <slug>",
		Short: "Print one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			it, err := a.live.GetBySlug(args[0], category, subtopic)
			if errors.Is(err, content.ErrNotFound) {
				return userError(fmt.Sprintf("No article %q", args[0]),
					"Find slugs with 'breakdown list' or 'breakdown search'")
			}
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, it)
			}
			fmt.Fprintf(w, "%s%s%s\n", cli.Bold, it.Title, cli.Reset)
			fmt.Fprintf(w, "%s%s · %s%s\n", cli.Dim, it.ID(), it.ReadingTime, cli.Reset)
			if len(it.Tags) > 0 {
				fmt.Fprintf(w, "%stags: %s%s\n", cli.Dim, strings.Join(it.Tags, ", "), cli.Reset)
			}
			fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(it.Body))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category of the article")
	cmd.Flags().StringVar(&subtopic, "subtopic", "", "Subtopic of the article")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
