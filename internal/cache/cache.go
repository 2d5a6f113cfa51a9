// Package cache provides the in-process caches behind draft sessions and
// archived invoice lookups, plus a manager that sweeps them on a timer.
package cache

import (
	"sync"
	"time"

	"invoicepilot/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Size() int
}

// Cleaner is anything with expired entries to sweep.
type Cleaner interface {
	CleanExpired() int
}

var (
	_ Cache[string] = (*LRUCache[string])(nil)
	_ Cleaner       = (*LRUCache[string])(nil)
)

// Manager sweeps a set of named caches periodically.
type Manager struct {
	logger *log.Logger

	mu     sync.Mutex
	caches map[string]Cleaner

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		caches: make(map[string]Cleaner),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	m.caches[name] = c
	m.mu.Unlock()
}

// CleanNow runs one sweep and returns the total number of entries removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		n := c.CleanExpired()
		if n == 0 {
			continue
		}
		total += n
		m.logger.Debug("Swept expired entries", "cache", name, "removed", n)
	}
	return total
}

// StartCleanup sweeps every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		defer close(m.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-t.C:
				m.CleanNow()
			}
		}
	}()
}

// Stop ends the sweep loop and waits for it. Call it only after
// StartCleanup; repeated calls are no-ops.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
}
