package filter

import "strings"

// Glob reports whether s matches pattern, where "*" matches any run of bytes
// (including none) and every other byte matches itself. Case sensitive.
func Glob(pattern, s string) bool {
	p, i := 0, 0
	star, mark := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, i
			p++
		case p < len(pattern) && pattern[p] == s[i]:
			p++
			i++
		case star >= 0:
			mark++
			i = mark
			p = star + 1
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

var sqliteGlobEscaper = strings.NewReplacer("[", "[[]", "?", "[?]")

// sqliteGlob turns pattern into an operand for sqlite's GLOB operator, which
// shares our "*" but also treats "?" and "[" as metacharacters.
func sqliteGlob(pattern string) string {
	return sqliteGlobEscaper.Replace(pattern)
}
