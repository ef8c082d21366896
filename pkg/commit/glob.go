package commit

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// compilePattern expands the repository's path-pattern grammar into one or
// more doublestar glob patterns: "," separates alternatives, a leading "/"
// anchors an alternative at the root, and a pattern lacking one is anchored
// under "/**/" (matches at any depth). "/**" remains recursive and a bare
// "*" matches a single path segment, both native to doublestar.
func compilePattern(pattern string) []string {
	alts := strings.Split(pattern, ",")
	compiled := make([]string, 0, len(alts))
	for _, alt := range alts {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if !strings.HasPrefix(alt, "/") {
			alt = "/**/" + alt
		}
		compiled = append(compiled, strings.TrimPrefix(alt, "/"))
	}
	return compiled
}

// matchesPattern reports whether an absolute path matches any alternative
// of pattern.
func matchesPattern(path, pattern string) bool {
	candidate := strings.TrimPrefix(strings.TrimSuffix(path, "/"), "/")
	for _, alt := range compilePattern(pattern) {
		if ok, err := doublestar.Match(alt, candidate); err == nil && ok {
			return true
		}
	}
	return false
}
