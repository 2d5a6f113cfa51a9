package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a size-bounded map whose entries also expire after a TTL.
// With sliding expiry every hit pushes the deadline forward, which suits
// per-visitor sessions; otherwise the deadline is fixed at insertion.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	sliding  bool
	now      func() time.Time
	onEvict  func(key string, value T)

	index map[string]*list.Element // key -> element holding *entry[T]
	order *list.List               // front is most recently used
}

type entry[T any] struct {
	key      string
	value    T
	deadline time.Time
}

func (e *entry[T]) expired(now time.Time) bool { return now.After(e.deadline) }

// NewLRUCache returns a cache holding at most capacity entries, each living
// ttl after it was last written.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	capacity = max(capacity, 1)
	return &LRUCache[T]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		index:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// NewSessionCache is NewLRUCache with sliding expiry.
func NewSessionCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	c := NewLRUCache[T](capacity, ttl)
	c.sliding = true
	return c
}

// OnEvict sets a hook run under the cache lock whenever an entry is dropped
// for expiry or capacity. Delete does not call it.
func (c *LRUCache[T]) OnEvict(fn func(key string, value T)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

// GetOrCreate returns the live value for key, storing create() when there
// is none. created reports whether create ran.
func (c *LRUCache[T]) GetOrCreate(key string, create func() T) (value T, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lookup(key); ok {
		return v, false
	}
	value = create()
	c.store(key, value)
	return value, true
}

func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	c.store(key, value)
	c.mu.Unlock()
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	if el, ok := c.index[key]; ok {
		c.unlink(el)
	}
	c.mu.Unlock()
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CleanExpired drops every expired entry and returns how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry[T]).expired(now) {
			c.drop(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *LRUCache[T]) lookup(key string) (T, bool) {
	el, ok := c.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	e := el.Value.(*entry[T])
	now := c.now()
	if e.expired(now) {
		c.drop(el)
		var zero T
		return zero, false
	}
	if c.sliding {
		e.deadline = now.Add(c.ttl)
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *LRUCache[T]) store(key string, value T) {
	e := &entry[T]{key: key, value: value, deadline: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.capacity {
		c.drop(c.order.Back())
	}
}

// drop removes el and reports it to the eviction hook.
func (c *LRUCache[T]) drop(el *list.Element) {
	e := c.unlink(el)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

func (c *LRUCache[T]) unlink(el *list.Element) *entry[T] {
	e := c.order.Remove(el).(*entry[T])
	delete(c.index, e.key)
	return e
}
