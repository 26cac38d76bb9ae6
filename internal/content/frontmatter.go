package content

import (
	"strconv"
	"strings"
)

// FrontMatter holds the flat key/value block at the top of a content file.
// Keys are stored lowercased; values are either string or []string.
type FrontMatter map[string]any

// SplitFrontMatter separates a leading "---" block from the body.
// A file that does not start with "---", or whose block is never closed,
// has no front matter and the whole text is the body.
func SplitFrontMatter(text string) (FrontMatter, string) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	first, rest, ok := strings.Cut(text, "\n")
	if !ok || strings.TrimRight(first, " \t") != "---" {
		return FrontMatter{}, text
	}

	var block []string
	lines := strings.SplitAfter(rest, "\n")
	for i, line := range lines {
		if strings.TrimRight(line, " \t\n") == "---" {
			body := strings.Join(lines[i+1:], "")
			return ParseFrontMatter(block), strings.TrimLeft(body, "\n")
		}
		block = append(block, strings.TrimSuffix(line, "\n"))
	}
	return FrontMatter{}, text
}

// ParseFrontMatter parses "key: value" lines. Bracketed values become
// lists, surrounding quotes are stripped. Lines that are blank, comments,
// indented continuations or lack a valid key are ignored.
func ParseFrontMatter(lines []string) FrontMatter {
	fm := FrontMatter{}
	for _, line := range lines {
		if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !validKey(key) {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '[' && value[len(value)-1] == ']' {
			fm[strings.ToLower(key)] = splitList(value[1 : len(value)-1])
			continue
		}
		fm[strings.ToLower(key)] = unquote(value)
	}
	return fm
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func splitList(inner string) []string {
	var out []string
	for _, part := range strings.Split(inner, ",") {
		part = unquote(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// String returns the first non-empty string value among keys.
// A list value yields its first element.
func (fm FrontMatter) String(keys ...string) string {
	for _, k := range keys {
		switch v := fm[strings.ToLower(k)].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []string:
			if len(v) > 0 {
				return v[0]
			}
		}
	}
	return ""
}

// List returns the value of the first present key as a list. A plain string
// is split on commas, so "tags: a, b" and "tags: [a, b]" are equivalent.
func (fm FrontMatter) List(keys ...string) []string {
	for _, k := range keys {
		switch v := fm[strings.ToLower(k)].(type) {
		case []string:
			if len(v) > 0 {
				return v
			}
		case string:
			if strings.TrimSpace(v) != "" {
				return splitList(v)
			}
		}
	}
	return nil
}

// Bool reports the boolean value of key, and whether it was present and
// parseable.
func (fm FrontMatter) Bool(key string) (bool, bool) {
	s, ok := fm[strings.ToLower(key)].(string)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return false, false
	}
	return b, true
}
