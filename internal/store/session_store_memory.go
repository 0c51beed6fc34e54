package store

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// MemorySessionStore is an in-process [SessionStore] for single-instance
// deployments and tests. Expiry is checked lazily on access and swept by
// PurgeExpired, which makes it an [ExpiredPurger] as well.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	sets    map[string]*memorySet
	now     func() time.Time
}

// NewMemorySessionStore constructs an empty store. A nil clock defaults to
// time.Now.
func NewMemorySessionStore(clock func() time.Time) *MemorySessionStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		sets:    make(map[string]*memorySet),
		now:     clock,
	}
}

func (s *MemorySessionStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: bytes.Clone(value), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.load(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(e.value), nil
}

func (s *MemorySessionStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
		delete(s.sets, key)
	}
	return nil
}

func (s *MemorySessionStore) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.load(key)
	if !ok || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *MemorySessionStore) Take(_ context.Context, key, marker string, markerTTL time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.load(key)
	if !ok {
		if _, consumed := s.load(marker); consumed {
			return nil, ErrKeyConsumed
		}
		return nil, ErrKeyNotFound
	}

	delete(s.entries, key)
	s.entries[marker] = memoryEntry{value: []byte("1"), expiresAt: s.now().Add(markerTTL)}
	return e.value, nil
}

func (s *MemorySessionStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.load(key)
	if !ok {
		s.entries[key] = memoryEntry{value: []byte("1"), expiresAt: s.now().Add(ttl)}
		return 1, nil
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	s.entries[key] = e
	return n, nil
}

func (s *MemorySessionStore) SetIfGreater(_ context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.load(key); ok {
		cur, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return false, err
		}
		if cur >= value {
			return false, nil
		}
	}

	s.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(value, 10)), expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemorySessionStore) IndexAdd(_ context.Context, index, member string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.loadSet(index)
	if !ok {
		set = &memorySet{members: make(map[string]struct{})}
		s.sets[index] = set
	}
	set.members[member] = struct{}{}
	set.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *MemorySessionStore) IndexMembers(_ context.Context, index string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.loadSet(index)
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(set.members))
	for m := range set.members {
		members = append(members, m)
	}
	return members, nil
}

func (s *MemorySessionStore) IndexRemove(_ context.Context, index string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.loadSet(index)
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set.members, m)
	}
	if len(set.members) == 0 {
		delete(s.sets, index)
	}
	return nil
}

func (s *MemorySessionStore) Ping(context.Context) error {
	return nil
}

// PurgeExpired drops every expired entry and set and returns how many were
// removed.
func (s *MemorySessionStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	for key, set := range s.sets {
		if !now.Before(set.expiresAt) {
			delete(s.sets, key)
			removed++
		}
	}
	return removed
}

// load returns a live entry; s.mu must be held.
func (s *MemorySessionStore) load(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemorySessionStore) loadSet(key string) (*memorySet, bool) {
	set, ok := s.sets[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(set.expiresAt) {
		delete(s.sets, key)
		return nil, false
	}
	return set, true
}
