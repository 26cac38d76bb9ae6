package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/breakdown/internal/cli"
	"github.com/sgx-labs/breakdown/internal/config"
	"github.com/sgx-labs/breakdown/internal/guard"
	"github.com/sgx-labs/breakdown/internal/llm"
	"github.com/sgx-labs/breakdown/internal/publish"
	"github.com/sgx-labs/breakdown/internal/store"
)

// generateTimeout bounds one generate run including the rewrite pass.
const generateTimeout = 5 * time.Minute

func publishCmd() *cobra.Command {
	var (
		category string
		subtopic string
		image    string
	)
	cmd := &cobra.Command{
		Use:   "publish <file.md>",
		Short: "Publish a Markdown draft into the first content root",
		Long: `Validate a draft and file it under <category>/[<subtopic>/]<slug>.md.

The draft needs a title, a category (from front matter or --category) and
at least two cited sources, either as a 'sources' front matter list or as
links under a '## Sources' heading.

Examples:
  breakdown publish drafts/hsa-limits.md
  breakdown publish notes.md --category compliance --subtopic cobra --image hero.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDraft(args[0])
			if err != nil {
				return err
			}
			if category != "" {
				d.Category = category
			}
			if subtopic != "" {
				d.Subtopic = subtopic
			}
			if image != "" {
				data, err := os.ReadFile(image)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				d.ImageData = data
			}
			return runPublish(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category folder (overrides front matter)")
	cmd.Flags().StringVar(&subtopic, "subtopic", "", "Subtopic folder (overrides front matter)")
	cmd.Flags().StringVar(&image, "image", "", "Hero image file (png, jpg, gif or webp)")
	return cmd
}

func readDraft(path string) (publish.Draft, error) {
	f, err := os.Open(path)
	if err != nil {
		return publish.Draft{}, userError(fmt.Sprintf("Cannot open %s", path), "Check the file path")
	}
	defer f.Close()
	return publish.ParseDraft(f)
}

func runPublish(w io.Writer, d publish.Draft) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	if len(a.dirs) == 0 {
		return userError("No content roots configured",
			"Set [content].roots in .breakdown/config.toml or BREAKDOWN_CONTENT_ROOTS")
	}

	out, err := a.publisher().Publish(d)
	if errors.Is(err, publish.ErrTooFewSources) {
		return userError("Draft cites fewer than 2 sources",
			"Add a 'sources' list to the front matter or links under '## Sources'")
	}
	if errors.Is(err, publish.ErrInvalidDraft) {
		return userError(err.Error(), "Every draft needs a title, a category and a body")
	}
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if db, err := store.Open(); err == nil {
		syncIndex(a, db, false)
		db.Close()
	}

	fmt.Fprintf(w, "%sPublished%s %s\n", cli.Green, cli.Reset, out.ID)
	fmt.Fprintf(w, "  file: %s\n", filepath.Join(cli.ShortenHome(a.dirs[0]), filepath.FromSlash(out.Path)))
	fmt.Fprintf(w, "  url:  %s\n", out.URL)
	if out.Image != "" {
		fmt.Fprintf(w, "  hero: %s\n", out.Image)
	}
	return nil
}

func draftCmd() *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "draft <file|->",
		Short: "Save a Markdown file to the drafts folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), 4<<20))
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read draft: %w", err)
			}
			if strings.TrimSpace(string(data)) == "" {
				return userError("Draft is empty", "Pass a Markdown file with some text in it")
			}
			if topic == "" {
				if d, err := publish.ParseDraft(strings.NewReader(string(data))); err == nil {
					topic = d.Title
				}
			}
			p, err := publish.SaveDraft(config.DraftsDir(), topic, string(data))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved draft %s\n", cli.ShortenHome(p))
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Topic used in the draft file name (default: the title)")
	return cmd
}

func generateCmd() *cobra.Command {
	var (
		topic      string
		category   string
		subtopic   string
		guidelines string
		minutes    int
		sources    []string
		doPublish  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draft an article with the configured model",
		Long: `Ask the configured generation provider for an article and save it as a
draft. With --publish the article is published directly when it cites
enough sources; otherwise it still lands in the drafts folder.

Examples:
  breakdown generate --topic "2026 HSA limits" --category tax --minutes 5
  breakdown generate --topic "COBRA notices" --category compliance --source https://www.dol.gov/cobra --publish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(topic) == "" || strings.TrimSpace(category) == "" {
				return userError("--topic and --category are required",
					"breakdown generate --topic \"HSA limits\" --category tax")
			}
			if err := guard.CheckPrompt(cmd.Context(), topic+"\n"+guidelines); err != nil {
				return userError(err.Error(), "Rephrase the topic or guidelines")
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			client, err := llm.NewClient(llm.SettingsFromConfig(a.cfg))
			if err != nil {
				return userError(err.Error(), "Set [generation].provider in .breakdown/config.toml")
			}
			brief := llm.Brief{
				Topic:      topic,
				Category:   category,
				Subtopic:   subtopic,
				Guidelines: guidelines,
				Minutes:    minutes,
			}
			for _, u := range sources {
				brief.Sources = append(brief.Sources, llm.SourceHint{URL: u})
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), generateTimeout)
			defer cancel()
			fmt.Fprintf(cmd.ErrOrStderr(), "Generating with %s/%s...\n", client.Provider(), client.Model())
			article, err := llm.GenerateArticle(ctx, client, brief)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			d := publish.FromArticle(article, category, subtopic)

			w := cmd.OutOrStdout()
			if doPublish {
				err := runPublish(w, d)
				if err == nil {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%sNot published:%s %v\n", cli.Yellow, cli.Reset, err)
			}
			p, err := publish.SaveDraft(config.DraftsDir(), topic, publish.Render(d))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Saved draft %s (%d words, %d sources)\n", cli.ShortenHome(p), article.Words(), len(article.Sources))
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "What the article is about")
	cmd.Flags().StringVar(&category, "category", "", "Category to file it under")
	cmd.Flags().StringVar(&subtopic, "subtopic", "", "Optional subtopic")
	cmd.Flags().StringVar(&guidelines, "guidelines", "", "Extra instructions for the writer")
	cmd.Flags().IntVar(&minutes, "minutes", 5, "Target reading time in minutes")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Reference URL to cite (repeatable)")
	cmd.Flags().BoolVar(&doPublish, "publish", false, "Publish directly when the article cites enough sources")
	return cmd
}
