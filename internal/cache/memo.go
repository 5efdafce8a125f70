// Package cache provides a TTL memoization cache for derived query
// results. Keys combine a caller-chosen prefix with a canonical JSON
// encoding of the query parameters, so invalidation can target a single
// entry or everything under a prefix.
package cache

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoItem[T any] struct {
	data      T
	expiresAt time.Time
}

// MemoCache caches values under prefix+params keys with per-entry absolute
// expiry. Expired entries are dropped lazily on read; there is no
// background sweeper.
type MemoCache[T any] struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	items      map[string]memoItem[T]
	now        func() time.Time
}

func NewMemoCache[T any](defaultTTL time.Duration) *MemoCache[T] {
	return &MemoCache[T]{
		defaultTTL: defaultTTL,
		items:      make(map[string]memoItem[T]),
		now:        time.Now,
	}
}

// Key builds the cache key for a prefix and parameter map. Parameters are
// encoded with sorted keys so logically equal maps produce the same key.
func Key(prefix string, params map[string]any) string {
	if len(params) == 0 {
		return prefix + ":{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(":{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(params[k])
		sb.Write(kb)
		sb.WriteByte(':')
		sb.Write(vb)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Get returns the cached value for prefix+params, or false when the entry
// is absent or has expired.
func (c *MemoCache[T]) Get(prefix string, params map[string]any) (T, bool) {
	key := Key(prefix, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	item, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.now().After(item.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return item.data, true
}

// Set stores a value with the default TTL.
func (c *MemoCache[T]) Set(prefix string, params map[string]any, data T) {
	c.SetTTL(prefix, params, data, c.defaultTTL)
}

// SetTTL stores a value with an explicit TTL.
func (c *MemoCache[T]) SetTTL(prefix string, params map[string]any, data T, ttl time.Duration) {
	key := Key(prefix, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoItem[T]{data: data, expiresAt: c.now().Add(ttl)}
}

// Invalidate removes the single entry for prefix+params when params is
// non-nil, or every entry under the prefix when params is nil.
func (c *MemoCache[T]) Invalidate(prefix string, params map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if params != nil {
		delete(c.items, Key(prefix, params))
		return
	}
	scope := prefix + ":"
	for key := range c.items {
		if strings.HasPrefix(key, scope) {
			delete(c.items, key)
		}
	}
}

// Size returns the current number of items in the cache, expired or not.
func (c *MemoCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
