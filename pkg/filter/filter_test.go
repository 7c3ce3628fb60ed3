package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var domain = []string{"a", "b", "c"}

func selectFrom(e *Expr, values []string) []string {
	var out []string
	for _, v := range values {
		if e.Match(v) {
			out = append(out, v)
		}
	}
	return out
}

func TestCompile(t *testing.T) {
	e := Compile(" web1, !db*,web1,db2 ,, !db*, web*,!old, ! ")
	assert.Equal(t, []string{"web1", "db2"}, e.Includes)
	assert.Equal(t, []string{"web*"}, e.IncludeGlobs)
	assert.Equal(t, []string{"old"}, e.Excludes)
	assert.Equal(t, []string{"db*"}, e.ExcludeGlobs)
	assert.Equal(t, "web1,db2,web*,!old,!db*", e.String())

	assert.True(t, Compile("").Empty())
	assert.True(t, Compile(" , ,").Empty())
	assert.False(t, Compile("!a").Empty())
}

func TestIncludeExclude(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, selectFrom(Compile("a,b"), domain))
	assert.Equal(t, []string{"b", "c"}, selectFrom(Compile("!a"), domain))
	assert.Equal(t, []string{"c"}, selectFrom(Compile("!a,!b"), domain))
	assert.Equal(t, []string{"b"}, selectFrom(Compile("a,b,!a"), domain))
	assert.Equal(t, domain, selectFrom(Compile(""), domain))
	assert.Empty(t, selectFrom(Compile("d"), domain))
}

func TestGlobTokens(t *testing.T) {
	e := Compile("prom*")
	assert.True(t, e.Match("prom_nodes"))
	assert.False(t, e.Match("database"))

	e = Compile("!prom*")
	assert.True(t, e.Match("default"))
	assert.False(t, e.Match("prom_nodes"))

	e = Compile("*st")
	assert.True(t, e.Match("west"))
	assert.True(t, e.Match("east"))
	assert.False(t, e.Match("central"))

	// case sensitive
	assert.False(t, Compile("Prom*").Match("prom_nodes"))
}

func TestGlob(t *testing.T) {
	cases := []struct {
		pattern string
		input   string
		match   bool
	}{
		{"*", "", true},
		{"*", "anything", true},
		{"a*", "a", true},
		{"a*c", "abbbc", true},
		{"a*c", "abbbd", false},
		{"*b*", "abc", true},
		{"a**c", "ac", true},
		{"a*b*c", "aXbYbZc", true},
		{"a*b*c", "aXcYb", false},
		{"a?c", "abc", false},
		{"a?c", "a?c", true},
		{"[ab]*", "[ab]x", true},
		{"web/*", "web/01", true},
		{"", "", true},
		{"", "a", false},
	}
	for _, c := range cases {
		if got := Glob(c.pattern, c.input); got != c.match {
			t.Fatalf("Glob(%q, %q): expected %v, but got %v", c.pattern, c.input, c.match, got)
		}
	}
}

func TestCompileIdempotent(t *testing.T) {
	inputs := []string{"", "a", "!a", "a*,!ab*", "x,y,!y,*z", "prom*,!prom_old,web1"}
	values := []string{"", "a", "ab", "abc", "x", "y", "z", "xyz", "prom_old", "prom_new", "web1"}
	for _, in := range inputs {
		first, second := Compile(in), Compile(in)
		assert.Equal(t, first, second)
		for _, v := range values {
			assert.Equal(t, first.Match(v), second.Match(v), "%q on %q", in, v)
		}
		// rendering and recompiling is stable as well
		assert.Equal(t, first, Compile(first.String()))
	}
}

func TestMatchAny(t *testing.T) {
	// an entity without related rows passes any exclusion
	assert.True(t, Compile("!prom_nodes").MatchAny(nil))
	assert.True(t, Compile("!prom*").MatchAny([]string{}))
	assert.False(t, Compile("prom_nodes").MatchAny(nil))

	assert.True(t, Compile("prom*").MatchAny([]string{"consul", "prom_nodes"}))
	assert.False(t, Compile("!prom*").MatchAny([]string{"consul", "prom_nodes"}))
	assert.True(t, Compile("!prom*").MatchAny([]string{"consul"}))
	assert.False(t, Compile("consul,!prom*").MatchAny([]string{"consul", "prom_nodes"}))
	assert.True(t, Compile("").MatchAny(nil))
}

func TestCache(t *testing.T) {
	c := NewCache(time.Minute)
	e := c.Compile("a,!b")
	assert.Same(t, e, c.Compile("a,!b"))
	assert.Equal(t, Compile("a,!b"), e)
	assert.Equal(t, 1, c.Len())
}
