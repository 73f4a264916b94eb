package badge

import (
	"context"
	"sort"
	"sync"
	"time"
)

type unlockKey struct {
	userID int64
	code   string
}

// MemoryStore is an in-process UnlockStore.
type MemoryStore struct {
	mu       sync.Mutex
	unlocked map[unlockKey]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{unlocked: make(map[unlockKey]time.Time)}
}

func (m *MemoryStore) Unlock(_ context.Context, userID int64, code string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := unlockKey{userID, code}
	if _, ok := m.unlocked[k]; ok {
		return false, nil
	}
	m.unlocked[k] = at
	return true, nil
}

// Codes returns the user's unlocked badge codes, sorted.
func (m *MemoryStore) Codes(userID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.unlocked {
		if k.userID == userID {
			out = append(out, k.code)
		}
	}
	sort.Strings(out)
	return out
}
