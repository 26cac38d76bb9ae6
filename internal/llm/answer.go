package llm

import (
	"context"
	"fmt"
	"strings"
)

// Context is a search hit handed to Answer.
type Context struct {
	Title   string
	URL     string
	Excerpt string
}

const answerSystem = "You answer questions about U.S. employee health benefits and compliance " +
	"for a benefits news site. Use only the provided articles. If they do not cover the " +
	"question, say so briefly. Keep answers under 200 words and end with the article links you used. " +
	"This is general information, not legal advice."

// Answer responds to a reader question grounded on contexts.
func Answer(ctx context.Context, c Client, question string, contexts []Context) (string, error) {
	if c == nil {
		return "", ErrNoProvider
	}
	var sb strings.Builder
	sb.WriteString("Articles:\n")
	if len(contexts) == 0 {
		sb.WriteString("(none found)\n")
	}
	for i, x := range contexts {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, x.Title, x.URL, x.Excerpt)
	}
	fmt.Fprintf(&sb, "Question: %s\n", strings.TrimSpace(question))

	out, err := c.Complete(ctx, Request{System: answerSystem, Prompt: sb.String(), Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	return strings.TrimSpace(out), nil
}
