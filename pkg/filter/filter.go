// Package filter compiles dashboard filter strings such as "web*,db1,!db1-old"
// into in-memory matchers and gorm query scopes.
//
// A filter string is a comma separated token list. A token starting with "!"
// excludes, a token containing "*" is a glob, anything else is an exact match.
// An empty string matches everything, and a filter made only of exclusions
// matches everything except what it excludes.
package filter

import "strings"

const (
	exclusionPrefix = "!"
	wildcard        = "*"
)

// Expr is a compiled filter string.
type Expr struct {
	Includes     []string
	Excludes     []string
	IncludeGlobs []string
	ExcludeGlobs []string
}

// Compile parses s. Tokens are trimmed, empty tokens dropped and duplicates
// removed keeping the first occurrence, so the lists are deterministic.
func Compile(s string) *Expr {
	e := &Expr{}
	seen := make(map[string]bool)
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true

		exclude := strings.HasPrefix(token, exclusionPrefix)
		if exclude {
			token = strings.TrimSpace(strings.TrimPrefix(token, exclusionPrefix))
			if token == "" {
				continue
			}
		}
		glob := strings.Contains(token, wildcard)

		switch {
		case exclude && glob:
			e.ExcludeGlobs = appendUnique(e.ExcludeGlobs, token)
		case exclude:
			e.Excludes = appendUnique(e.Excludes, token)
		case glob:
			e.IncludeGlobs = appendUnique(e.IncludeGlobs, token)
		default:
			e.Includes = appendUnique(e.Includes, token)
		}
	}
	return e
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Empty reports whether the expression matches everything.
func (e *Expr) Empty() bool {
	return !e.hasIncludes() && !e.hasExcludes()
}

func (e *Expr) hasIncludes() bool {
	return len(e.Includes) > 0 || len(e.IncludeGlobs) > 0
}

func (e *Expr) hasExcludes() bool {
	return len(e.Excludes) > 0 || len(e.ExcludeGlobs) > 0
}

func (e *Expr) included(v string) bool {
	return contains(e.Includes, v) || globAny(e.IncludeGlobs, v)
}

func (e *Expr) excluded(v string) bool {
	return contains(e.Excludes, v) || globAny(e.ExcludeGlobs, v)
}

// Match evaluates the expression against a scalar value.
func (e *Expr) Match(v string) bool {
	if e.hasIncludes() && !e.included(v) {
		return false
	}
	return !e.excluded(v)
}

// MatchAny evaluates the expression against the values of a to-many
// relationship: some value must be included and no value may be excluded.
// An empty set passes a pure exclusion filter.
func (e *Expr) MatchAny(values []string) bool {
	if e.hasIncludes() {
		found := false
		for _, v := range values {
			if e.included(v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, v := range values {
		if e.excluded(v) {
			return false
		}
	}
	return true
}

// String renders the expression back into filter syntax.
func (e *Expr) String() string {
	tokens := make([]string, 0, len(e.Includes)+len(e.IncludeGlobs)+len(e.Excludes)+len(e.ExcludeGlobs))
	tokens = append(tokens, e.Includes...)
	tokens = append(tokens, e.IncludeGlobs...)
	for _, x := range e.Excludes {
		tokens = append(tokens, exclusionPrefix+x)
	}
	for _, x := range e.ExcludeGlobs {
		tokens = append(tokens, exclusionPrefix+x)
	}
	return strings.Join(tokens, ",")
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func globAny(patterns []string, v string) bool {
	for _, p := range patterns {
		if Glob(p, v) {
			return true
		}
	}
	return false
}
