package task

import (
	"regexp"
	"strings"
)

var unsafeToken = regexp.MustCompile(`[^\w@%+=:,./-]`)

// Quote escapes a single token for use as one shell word. Tokens made only
// of safe characters pass through unchanged; anything else is wrapped in
// single quotes with embedded single quotes escaped.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !unsafeToken.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// QuoteAll quotes every token and joins them into a command line.
func QuoteAll(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = Quote(tok)
	}
	return strings.Join(quoted, " ")
}

// Dedent strips a leading newline and the common leading whitespace of all
// non-empty lines, then trims surrounding blank space. Multi-line fragments
// written as indented string literals come out flush left.
func Dedent(s string) string {
	s = strings.TrimPrefix(s, "\n")
	lines := strings.Split(s, "\n")
	margin := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			margin = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, margin) {
			margin = margin[:len(margin)-1]
		}
	}
	if margin != "" {
		for i, line := range lines {
			lines[i] = strings.TrimPrefix(line, margin)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
