package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engineName string
	expiresAt  time.Time
}

// Memory remembers which engine last won the race for each host. Entries
// expire after the TTL and are pruned hourly.
type Memory struct {
	store sync.Map // host (string) -> *memoryEntry
	ttl   time.Duration
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

// NewMemory creates a Memory and starts its cleanup goroutine.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Get returns the remembered engine for host, or "" if unknown or expired.
func (m *Memory) Get(host string) string {
	val, ok := m.store.Load(host)
	if !ok {
		return ""
	}
	entry := val.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.store.Delete(host)
		return ""
	}
	return entry.engineName
}

// Set records the winning engine for host.
func (m *Memory) Set(host, engineName string) {
	m.store.Store(host, &memoryEntry{
		engineName: engineName,
		expiresAt:  m.now().Add(m.ttl),
	})
}

// Delete forgets host.
func (m *Memory) Delete(host string) {
	m.store.Delete(host)
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (m *Memory) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.prune()
		}
	}
}

func (m *Memory) prune() {
	now := m.now()
	m.store.Range(func(key, value any) bool {
		if now.After(value.(*memoryEntry).expiresAt) {
			m.store.Delete(key)
		}
		return true
	})
}
