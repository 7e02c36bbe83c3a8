package cache

import (
	"sync"
	"time"
)

// Memory is a pod-local L1 cache in front of Redis. Entries carry a short
// TTL so scaled-out deployments never serve long-stale client records.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	maxSize int
	done    chan struct{}
}

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

func (e *memoryEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

func NewMemory(ttl time.Duration, maxSize int) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 1000
	}

	m := &Memory{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Drop the oldest expired entries first when full; if none are expired
	// the new entry is simply not cached.
	if len(m.entries) >= m.maxSize {
		if _, exists := m.entries[key]; !exists {
			m.evictExpiredLocked()
			if len(m.entries) >= m.maxSize {
				return
			}
		}
	}

	m.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(m.ttl),
	}
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || entry.expired() {
		return nil, false
	}
	return entry.value, true
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *Memory) Close() {
	close(m.done)
}

func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.evictExpiredLocked()
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

func (m *Memory) evictExpiredLocked() {
	for key, entry := range m.entries {
		if entry.expired() {
			delete(m.entries, key)
		}
	}
}
