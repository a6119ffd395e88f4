// Package shellutil renders and checks the bash snippets sent into sandboxes.
package shellutil

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s quoted for bash so that it expands to exactly s.
func Quote(s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q: %w", s, err)
	}
	return q, nil
}

// Join quotes every word and joins them into a single command line.
func Join(words ...string) (string, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		q, err := Quote(w)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}

// Validate parses script as bash and reports syntax errors.
func Validate(script string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(strings.NewReader(script), "script"); err != nil {
		return fmt.Errorf("invalid shell script: %w", err)
	}
	return nil
}

// Script formats a bash snippet and validates it. Arguments are substituted
// verbatim, so callers quote them first.
func Script(format string, args ...interface{}) (string, error) {
	script := fmt.Sprintf(format, args...)
	if err := Validate(script); err != nil {
		return "", err
	}
	return script, nil
}
