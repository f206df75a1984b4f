// Package glob translates restricted wildcard patterns into anchored
// full-string matchers for qualified call identities of the form
// "qualified.Type#method". Only two wildcards are supported: '*' matches
// any run of characters, '?' matches exactly one character.
package glob

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a compiled pattern. Compile once, match many.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile translates a wildcard pattern into a Matcher.
// An empty pattern is invalid: it can never identify a caller.
func Compile(pattern string) (*Matcher, error) {
	if pattern == "" {
		return nil, fmt.Errorf("glob: pattern cannot be empty")
	}

	re, err := regexp.Compile(toRegex(pattern))
	if err != nil {
		return nil, fmt.Errorf("glob: compile %q: %w", pattern, err)
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// MustCompile is Compile for patterns known valid at author time.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether subject matches the whole pattern.
func (m *Matcher) Match(subject string) bool {
	return m.re.MatchString(subject)
}

// Pattern returns the original wildcard pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match is a one-shot convenience for a single comparison. Invalid
// patterns never match.
func Match(pattern, subject string) bool {
	m, err := Compile(pattern)
	if err != nil {
		return false
	}
	return m.Match(subject)
}

// CompileAll compiles every pattern in patterns, failing on the first
// invalid one.
func CompileAll(patterns []string) ([]*Matcher, error) {
	matchers := make([]*Matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := Compile(p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// toRegex converts a wildcard pattern to an anchored regular expression.
// Everything except '*' and '?' is matched literally.
func toRegex(pattern string) string {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")
	return "^" + escaped + "$"
}
