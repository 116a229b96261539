package repository

import (
	"context"
	"sync"
	"time"
)

type cachedResponse struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryIdempotencyRepo caches booking responses keyed by Idempotency-Key.
type MemoryIdempotencyRepo struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	responses map[string]cachedResponse
}

// NewMemoryIdempotencyRepo constructs the repository. A non-positive ttl keeps entries forever.
func NewMemoryIdempotencyRepo(ttl time.Duration) *MemoryIdempotencyRepo {
	return &MemoryIdempotencyRepo{ttl: ttl, now: time.Now, responses: make(map[string]cachedResponse)}
}

// GetResponse retrieves a cached response, dropping it when expired.
func (m *MemoryIdempotencyRepo) GetResponse(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.responses[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.responses, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

// PutResponse stores a response payload.
func (m *MemoryIdempotencyRepo) PutResponse(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := cachedResponse{payload: append([]byte(nil), payload...)}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.responses[key] = entry
	return nil
}
