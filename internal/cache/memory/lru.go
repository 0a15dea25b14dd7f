// Package memory is an in-process cache backend for single-instance
// deployments and tests.
package memory

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	key     string
	value   []byte
	expires time.Time
	element *list.Element
}

// LRU is a size-bounded cache with per-entry expiry.
type LRU struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*entry
	order    *list.List
	now      func() time.Time
}

func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LRU{
		capacity: capacity,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !ent.expires.IsZero() && !c.now().Before(ent.expires) {
		c.removeEntry(ent)
		return nil, false, nil
	}
	c.order.MoveToFront(ent.element)
	return append([]byte(nil), ent.value...), true, nil
}

func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	value = append([]byte(nil), value...)

	if ent, ok := c.items[key]; ok {
		ent.value = value
		ent.expires = expires
		c.order.MoveToFront(ent.element)
		return nil
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(key)
	c.items[key] = &entry{key: key, value: value, expires: expires, element: elem}
	return nil
}

func (c *LRU) ScanDelete(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for key, ent := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(ent)
			deleted++
		}
	}
	return deleted, nil
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	if ent, ok := c.items[elem.Value.(string)]; ok {
		c.removeEntry(ent)
	}
}

func (c *LRU) removeEntry(ent *entry) {
	if ent.element != nil {
		c.order.Remove(ent.element)
	}
	delete(c.items, ent.key)
}
