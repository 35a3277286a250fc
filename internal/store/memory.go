package store

import (
	"context"
	"sync"
	"time"

	"typing-duel/internal/models"
)

// MemoryStore keeps matches in process memory. State is lost on restart.
// Each match has its own mutex so Updates on different matches never
// contend with each other.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	mu      sync.Mutex
	match   *models.Match
	pending map[string]map[string]*models.PendingWord
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	if _, ok := s.entries[m.Code]; ok {
		return models.ErrCodeTaken
	}
	s.entries[m.Code] = &entry{
		match:   cloneMatch(m),
		pending: make(map[string]map[string]*models.PendingWord),
		expires: now.Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) lookup(code string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) Get(ctx context.Context, code string) (*models.Match, error) {
	e, ok := s.lookup(code)
	if !ok {
		return nil, models.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.now().After(e.expires) {
		return nil, models.ErrNotFound
	}
	return cloneMatch(e.match), nil
}

func (s *MemoryStore) Pending(ctx context.Context, code, playerID string) (map[string]*models.PendingWord, error) {
	e, ok := s.lookup(code)
	if !ok {
		return nil, models.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.now().After(e.expires) {
		return nil, models.ErrNotFound
	}
	return cloneWords(e.pending[playerID]), nil
}

func (s *MemoryStore) Update(ctx context.Context, code string, fn func(*State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := s.lookup(code)
	if !ok {
		return models.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if now.After(e.expires) {
		return models.ErrNotFound
	}

	st := &State{
		Match:   cloneMatch(e.match),
		Pending: make(map[string]map[string]*models.PendingWord, len(e.pending)),
	}
	for pid, ws := range e.pending {
		st.Pending[pid] = cloneWords(ws)
	}
	if err := fn(st); err != nil {
		return err
	}

	st.Match.Version = e.match.Version + 1
	e.match = st.Match
	e.pending = make(map[string]map[string]*models.PendingWord, len(st.Pending))
	for pid, ws := range st.Pending {
		if len(ws) > 0 {
			e.pending[pid] = ws
		}
	}
	e.expires = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, code)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// purgeLocked drops expired matches. Caller holds s.mu.
func (s *MemoryStore) purgeLocked(now time.Time) {
	for code, e := range s.entries {
		if e.mu.TryLock() {
			expired := now.After(e.expires)
			e.mu.Unlock()
			if expired {
				delete(s.entries, code)
			}
		}
	}
}
