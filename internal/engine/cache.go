package engine

import (
	"container/list"
	"sync"

	"github.com/aristath/runway/internal/domain"
)

// frameCache is an LRU cache of computed frames keyed by
// (start, end, scenario). Frames are cloned on both insert and lookup so a
// caller can never mutate a cached result.
type frameCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type cacheEntry struct {
	key   string
	frame *domain.MonthlyFrame
}

func newFrameCache(max int) *frameCache {
	if max <= 0 {
		max = 1
	}
	return &frameCache{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *frameCache) get(key string) (*domain.MonthlyFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).frame.Clone(), true
}

func (c *frameCache) put(key string, frame *domain.MonthlyFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).frame = frame.Clone()
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, frame: frame.Clone()})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *frameCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

func (c *frameCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
