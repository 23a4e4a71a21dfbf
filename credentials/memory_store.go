package credentials

import (
	"sync"

	"github.com/jrsteele09/go-auth-session/session"
)

// MemoryStore keeps the encoded record in process memory. Records go
// through the same JSON encoding as the durable stores.
type MemoryStore struct {
	key  string
	data []byte
	mu   sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(appName string) *MemoryStore {
	return &MemoryStore{key: StorageKey(appName)}
}

func (m *MemoryStore) Key() string {
	return m.key
}

func (m *MemoryStore) Load() (session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return session.Session{}, false
	}
	return decode(m.key, m.data)
}

func (m *MemoryStore) Save(s session.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
