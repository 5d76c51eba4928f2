package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"kpiboard/internal/core"
	ports "kpiboard/internal/sheets"
)

var _ ports.TableStore = (*Store)(nil)

// sharedReadTimeout bounds a backend read that several callers wait on.
const sharedReadTimeout = 30 * time.Second

// Store is a read-through cache in front of a TableStore. Concurrent misses
// for the same table share one backend read, and every write invalidates
// the cached copy so the next read sees the saved data.
type Store struct {
	next  ports.TableStore
	cache *LRU[core.Table]
	group singleflight.Group

	// mu guards the generations. A read only fills the cache if no write or
	// invalidation happened for that table while it was in flight.
	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

// NewStore wraps next with an LRU of the given size and TTL.
func NewStore(next ports.TableStore, size int, ttl time.Duration) *Store {
	return &Store{next: next, cache: NewLRU[core.Table](size, ttl), gens: make(map[string]uint64)}
}

// Cleaner exposes the underlying LRU for a Manager.
func (s *Store) Cleaner() Cleaner { return s.cache }

func (s *Store) Read(ctx context.Context, name string) (core.Table, error) {
	if t, ok := s.cache.Get(name); ok {
		return t.Clone(), nil
	}
	ch := s.group.DoChan(name, func() (any, error) {
		gen := s.generation(name)
		// The read outlives any single caller; one cancelled request must
		// not fail the others waiting on it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		t, err := s.next.Read(rctx, name)
		if err != nil {
			return core.Table{}, err
		}
		s.fill(name, gen, t)
		return t, nil
	})
	select {
	case <-ctx.Done():
		return core.Table{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Table{}, res.Err
		}
		return res.Val.(core.Table).Clone(), nil
	}
}

func (s *Store) Write(ctx context.Context, name string, t core.Table) error {
	err := s.next.Write(ctx, name, t)
	// Drop the entry even on failure: a partial write may have happened.
	s.Invalidate(name)
	return err
}

// Invalidate drops the cached copy of name, or of every table when name is
// empty. Reads already in flight will not repopulate it.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	if name == "" {
		s.epoch++
		s.cache.Clear()
	} else {
		s.gens[name]++
		s.cache.Delete(name)
	}
	s.mu.Unlock()
	if name != "" {
		s.group.Forget(name)
	}
}

func (s *Store) Stats() Stats { return s.cache.Stats() }

func (s *Store) generation(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch + s.gens[name]
}

func (s *Store) fill(name string, gen uint64, t core.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch+s.gens[name] != gen {
		return
	}
	s.cache.Set(name, t.Clone())
}
