package mirror

import (
	"github.com/bmatcuk/doublestar/v4"
)

// AccessRule is one allow/deny pattern matched against a mirror task's
// remote URI. Rules are evaluated in ascending Order; the first match
// decides the outcome.
type AccessRule struct {
	Order   int
	Pattern string
	Allow   bool
}

// MirrorAccessController enforces which remote URIs a mirror task may
// target. With no matching rule, access is denied: an operator must opt
// in remotes explicitly rather than mirror tasks reaching anywhere by
// default.
type MirrorAccessController struct {
	rules []AccessRule
}

// NewMirrorAccessController builds a controller from rules, sorted by
// Order ascending (callers may pass them in any order).
func NewMirrorAccessController(rules ...AccessRule) *MirrorAccessController {
	sorted := make([]AccessRule, len(rules))
	copy(sorted, rules)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Order < sorted[j-1].Order; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return &MirrorAccessController{rules: sorted}
}

// Allowed reports whether uri may be used as a mirror remote.
func (c *MirrorAccessController) Allowed(uri string) bool {
	for _, rule := range c.rules {
		if ok, err := doublestar.Match(rule.Pattern, uri); err == nil && ok {
			return rule.Allow
		}
	}
	return false
}
