// Package cache holds translated caption text keyed by language pair and
// normalized source text.
//
// The cache is not safe for concurrent use. A pipeline session owns one
// instance and touches it only from its event loop.
package cache

import (
	"container/list"
	"strings"
	"time"
)

const (
	DefaultMaxSize = 500
	DefaultTTL     = 24 * time.Hour
)

type entry struct {
	key        string
	text       string
	insertedAt time.Time
}

// Cache is a bounded, time-expiring translation store. Overflow evicts the
// oldest inserted entry; reads do not refresh an entry's position.
type Cache struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	entries map[string]*list.Element
	order   *list.List
}

type Option func(*Cache)

func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		maxSize: DefaultMaxSize,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize trims, lowercases and collapses internal whitespace runs to a
// single space.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func key(sourceLang, targetLang, text string) string {
	return sourceLang + ":" + targetLang + ":" + Normalize(text)
}

// Get returns the cached translation. Entries older than the ttl are removed
// and reported absent.
func (c *Cache) Get(sourceLang, targetLang, text string) (string, bool) {
	k := key(sourceLang, targetLang, text)
	el, ok := c.entries[k]
	if !ok {
		return "", false
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.remove(el)
		return "", false
	}
	return e.text, true
}

// Set stores a translation. An existing key is overwritten in place and keeps
// its insertion position.
func (c *Cache) Set(sourceLang, targetLang, text, translated string) {
	k := key(sourceLang, targetLang, text)
	now := c.now()
	if el, ok := c.entries[k]; ok {
		e := el.Value.(*entry)
		e.text = translated
		e.insertedAt = now
		return
	}

	if len(c.entries) >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest)
		}
	}

	c.entries[k] = c.order.PushBack(&entry{
		key:        k,
		text:       translated,
		insertedAt: now,
	})
}

func (c *Cache) Clear() {
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache) Len() int {
	return len(c.entries)
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.expired(el.Value.(*entry)) {
			c.remove(el)
			removed++
		}
		el = next
	}
	return removed
}

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.entries, e.key)
	c.order.Remove(el)
}
