package credential

import (
	"context"
	"sync"

	"github.com/campusnotes/notes-admin/internal/pubsub"
)

// MemoryCache keeps credentials in process memory
type MemoryCache struct {
	mu       sync.RWMutex
	browsers map[string]map[string]string
	changes  *pubsub.Topic[string]
}

// NewMemory creates an empty in-memory cache
func NewMemory() *MemoryCache {
	return &MemoryCache{
		browsers: make(map[string]map[string]string),
		changes:  pubsub.NewTopic[string](),
	}
}

func (m *MemoryCache) Load(_ context.Context, browserID string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return decode(m.browsers[browserID]), nil
}

func (m *MemoryCache) Store(_ context.Context, browserID string, c Credential) error {
	m.mu.Lock()
	m.browsers[browserID] = c.fields()
	m.mu.Unlock()

	m.changes.Publish(browserID)
	return nil
}

func (m *MemoryCache) Clear(_ context.Context, browserID string) error {
	m.mu.Lock()
	_, existed := m.browsers[browserID]
	delete(m.browsers, browserID)
	m.mu.Unlock()

	if existed {
		m.changes.Publish(browserID)
	}
	return nil
}

func (m *MemoryCache) Watch(browserID string, fn func()) func() {
	return m.changes.Subscribe(func(changed string) {
		if changed == browserID {
			fn()
		}
	})
}
