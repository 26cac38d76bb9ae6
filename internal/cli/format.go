// Package cli provides shared formatting helpers for CLI output.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sgx-labs/breakdown/internal/content"
)

// ANSI color constants.
const (
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Red     = "\033[31m"
	Cyan    = "\033[36m"
	DimCyan = "\033[2;36m"
	Dim     = "\033[2m"
	Bold    = "\033[1m"
	Reset   = "\033[0m"
)

// Box width is the inner content width (between the border characters).
const boxWidth = 40

// Margin is the left indent for all branded output.
const margin = "  "

// excerptWidth caps excerpts in listings, in runes.
const excerptWidth = 150

// ShortenHome replaces $HOME prefix with ~.
func ShortenHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

// FormatNumber adds comma separators (1234 -> "1,234").
func FormatNumber(n int) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return FormatNumber(n/1000) + "," + fmt.Sprintf("%03d", n%1000)
}

// Banner prints the product line. Used by `breakdown config init`.
func Banner(w io.Writer, version string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%s%sBREAKDOWN%s %s%s%s\n", margin, Bold, Red, Reset, Dim, version, Reset)
	fmt.Fprintf(w, "%s%sHealth benefits, broken down.%s\n", margin, Dim, Reset)
}

// Header prints a small heavy-border box with a title. Used by `breakdown stats`.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w)
	heavyTop := margin + "┏" + strings.Repeat("━", boxWidth) + "┓"
	heavyBottom := margin + "┗" + strings.Repeat("━", boxWidth) + "┛"

	padded := padRight("  "+title, boxWidth)

	fmt.Fprintf(w, "%s%s%s\n", Cyan, heavyTop, Reset)
	fmt.Fprintf(w, "%s%s┃%s┃%s\n", Cyan, margin, padded, Reset)
	fmt.Fprintf(w, "%s%s%s\n", Cyan, heavyBottom, Reset)
}

// Section prints a section divider line: ── Name ─────────────────
func Section(w io.Writer, name string) {
	prefix := "── " + name + " "
	remaining := boxWidth + 2 - runeLen(prefix)
	if remaining < 0 {
		remaining = 0
	}
	rule := prefix + strings.Repeat("─", remaining)
	fmt.Fprintf(w, "\n%s%s%s%s\n\n", margin, Cyan, rule, Reset)
}

// Box prints a light-border box around content lines.
func Box(w io.Writer, lines []string) {
	lightTop := margin + "┌" + strings.Repeat("─", boxWidth) + "┐"
	lightBottom := margin + "└" + strings.Repeat("─", boxWidth) + "┘"

	fmt.Fprintln(w)
	fmt.Fprintln(w, lightTop)
	for _, line := range lines {
		fmt.Fprintf(w, "%s│%s│\n", margin, padRight("  "+line, boxWidth))
	}
	fmt.Fprintln(w, lightBottom)
}

// KeyValue prints an aligned "key: value" row inside a section.
func KeyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s%-18s %v\n", margin, key+":", value)
}

// Summaries prints a numbered article listing.
func Summaries(w io.Writer, items []content.Summary) {
	if len(items) == 0 {
		fmt.Fprintf(w, "\n%sNo articles found.%s\n\n", margin, Reset)
		return
	}
	for i, s := range items {
		fmt.Fprintf(w, "\n%d. %s%s%s\n", i+1, Bold, s.Title, Reset)
		fmt.Fprintf(w, "   %s%s%s\n", Dim, s.ID, Reset)
		fmt.Fprintf(w, "   %s\n", metaLine(s))
	}
	fmt.Fprintln(w)
}

// Results prints ranked search results with their excerpts.
func Results(w io.Writer, results []content.Result) {
	if len(results) == 0 {
		fmt.Fprintf(w, "\n%sNo results found.%s\n", margin, Reset)
		fmt.Fprintf(w, "%s%sTry fewer words, or run 'breakdown reindex' if articles were just added.%s\n\n", margin, Dim, Reset)
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "\n%d. %s%s%s %s[%s]%s\n", i+1, Bold, r.Title, Reset, DimCyan, r.Match, Reset)
		fmt.Fprintf(w, "   %s%s%s\n", Dim, r.ID, Reset)
		if ex := Excerpt(r.Excerpt); ex != "" {
			fmt.Fprintf(w, "   %s\n", ex)
		}
	}
	fmt.Fprintln(w)
}

// Excerpt flattens s to one line and truncates it for listings.
func Excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if runeLen(s) > excerptWidth {
		s = string([]rune(s)[:excerptWidth]) + "..."
	}
	return s
}

func metaLine(s content.Summary) string {
	var parts []string
	if !s.Date.IsZero() {
		parts = append(parts, s.Date.Format("2006-01-02"))
	}
	parts = append(parts, s.ReadingTime)
	if len(s.Tags) > 0 {
		parts = append(parts, strings.Join(s.Tags, ", "))
	}
	return strings.Join(parts, " · ")
}

// padRight pads s with spaces to exactly width characters.
// If s is longer than width, it is truncated.
func padRight(s string, width int) string {
	n := runeLen(s)
	if n >= width {
		r := []rune(s)
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-n)
}

// runeLen counts the display width in runes.
func runeLen(s string) int {
	return len([]rune(s))
}
