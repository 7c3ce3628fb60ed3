package filter

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache memoizes compiled expressions. Compile is pure, so a cached
// expression behaves exactly like a fresh one.
type Cache struct {
	c *cache.Cache
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{c: cache.New(ttl, ttl*2)}
}

func (c *Cache) Compile(s string) *Expr {
	if e, ok := c.c.Get(s); ok {
		return e.(*Expr)
	}
	e := Compile(s)
	c.c.SetDefault(s, e)
	return e
}

func (c *Cache) Len() int {
	return c.c.ItemCount()
}
