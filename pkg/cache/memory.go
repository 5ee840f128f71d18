package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache implementa un cache in-memory con LRU eviction
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*list.Element
	lru        *list.List
	maxEntries int
	defaultTTL time.Duration
	stats      CacheStats
}

// memoryEntry rappresenta un'entry nel cache con LRU metadata.
// expiresAt zero indica che l'entry non scade mai.
type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
	hits      int64
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache crea un nuovo cache in-memory.
// Con defaultTTL = 0 le entry restano valide per tutta la vita del processo.
func NewMemoryCache(maxEntries int, defaultTTL time.Duration) *MemoryCache {
	mc := &MemoryCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		stats:      CacheStats{},
	}

	// Avvia il cleanup periodico solo se le entry possono scadere
	if defaultTTL > 0 {
		go mc.cleanupExpired()
	}

	return mc
}

// Get recupera un valore dal cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, exists := m.entries[key]
	if !exists {
		m.stats.Misses++
		return nil, ErrCacheMiss
	}

	entry := elem.Value.(*memoryEntry)

	if entry.expired(time.Now()) {
		m.removeElement(elem)
		m.stats.Misses++
		return nil, ErrCacheMiss
	}

	// Aggiorna LRU (muovi in testa)
	m.lru.MoveToFront(elem)
	entry.hits++
	m.stats.Hits++

	return entry.value, nil
}

// Set salva un valore nel cache
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = m.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	// Se la chiave esiste già, aggiorna
	if elem, exists := m.entries[key]; exists {
		entry := elem.Value.(*memoryEntry)
		m.stats.Size += int64(len(value)) - int64(len(entry.value))
		entry.value = value
		entry.expiresAt = expiresAt
		m.lru.MoveToFront(elem)
		m.stats.Sets++
		return nil
	}

	// Evict se necessario
	if m.maxEntries > 0 && m.lru.Len() >= m.maxEntries {
		m.evictOldest()
	}

	entry := &memoryEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}

	elem := m.lru.PushFront(entry)
	m.entries[key] = elem
	m.stats.Sets++
	m.stats.Size += int64(len(value))

	return nil
}

// Delete rimuove un valore dal cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, exists := m.entries[key]; exists {
		m.removeElement(elem)
		m.stats.Deletes++
	}

	return nil
}

// Clear svuota il cache
func (m *MemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*list.Element)
	m.lru.Init()
	m.stats.Size = 0

	return nil
}

// Stats restituisce le statistiche
func (m *MemoryCache) Stats() CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Size restituisce il numero di entry nel cache
func (m *MemoryCache) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lru.Len()
}

// evictOldest rimuove l'entry meno recentemente usata (LRU)
func (m *MemoryCache) evictOldest() {
	elem := m.lru.Back()
	if elem != nil {
		m.removeElement(elem)
		m.stats.Evictions++
	}
}

// removeElement rimuove un elemento dal cache
func (m *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.lru.Remove(elem)
	m.stats.Size -= int64(len(entry.value))
}

// cleanupExpired rimuove periodicamente le entry scadute
func (m *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		var toRemove []*list.Element

		for elem := m.lru.Back(); elem != nil; elem = elem.Prev() {
			entry := elem.Value.(*memoryEntry)
			if entry.expired(now) {
				toRemove = append(toRemove, elem)
			}
		}

		for _, elem := range toRemove {
			m.removeElement(elem)
		}

		m.mu.Unlock()
	}
}
