// Package session keeps per-conversation state in memory.
//
// Sessions are keyed by (chat, user). A caller takes an exclusive lease on a
// session for the duration of one update, so updates for the same
// conversation are applied one at a time while different conversations run
// in parallel.
package session

import (
	"context"
	"sync"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/logger"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

// Key identifies one conversation.
type Key struct {
	ChatID int64
	UserID int64
}

type entry[T any] struct {
	sem      chan struct{}
	value    T
	lastUsed time.Time
	refs     int
}

// Store holds one value of type T per key.
type Store[T any] struct {
	mu       sync.Mutex
	entries  map[Key]*entry[T]
	ttl      time.Duration
	newValue func() T
	now      func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
// newValue builds the initial value for a fresh or expired session.
func NewStore[T any](ttl time.Duration, newValue func() T, opts ...Option) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		entries:  make(map[Key]*entry[T]),
		ttl:      ttl,
		newValue: newValue,
		now:      o.now,
	}
}

// Lease is exclusive access to one session. It must be released exactly
// once; further calls to Release are no-ops.
type Lease[T any] struct {
	store    *Store[T]
	key      Key
	entry    *entry[T]
	expired  bool
	discard  bool
	released bool
}

// Acquire blocks until the session for key is free or ctx is done. A
// session idle for longer than the TTL is replaced with a fresh value and
// the lease reports Expired.
func (s *Store[T]) Acquire(ctx context.Context, key Key) (*Lease[T], error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry[T]{sem: make(chan struct{}, 1), value: s.newValue()}
		s.entries[key] = e
	}
	e.refs++
	s.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		s.mu.Lock()
		s.unref(key, e)
		s.mu.Unlock()
		return nil, ctx.Err()
	}

	s.mu.Lock()
	expired := !e.lastUsed.IsZero() && s.now().Sub(e.lastUsed) > s.ttl
	s.mu.Unlock()
	if expired {
		e.value = s.newValue()
	}

	return &Lease[T]{store: s, key: key, entry: e, expired: expired}, nil
}

// Value returns the session value. It may be mutated until Release.
func (l *Lease[T]) Value() *T {
	return &l.entry.value
}

// Expired reports whether the previous session timed out and was replaced.
func (l *Lease[T]) Expired() bool {
	return l.expired
}

// Discard marks the session for removal on Release.
func (l *Lease[T]) Discard() {
	l.discard = true
}

// Release gives the session back to the store.
func (l *Lease[T]) Release() {
	if l.released {
		return
	}
	l.released = true

	s := l.store
	if l.discard {
		l.entry.value = s.newValue()
	}

	s.mu.Lock()
	l.entry.lastUsed = s.now()
	if l.discard {
		l.entry.lastUsed = time.Time{}
	}
	s.unref(l.key, l.entry)
	s.mu.Unlock()

	<-l.entry.sem
}

// unref drops a reference and removes a reset entry nobody waits on.
// Caller holds s.mu.
func (s *Store[T]) unref(key Key, e *entry[T]) {
	e.refs--
	if e.refs == 0 && e.lastUsed.IsZero() && s.entries[key] == e {
		delete(s.entries, key)
	}
}

// Len returns the number of tracked sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. Sessions currently leased or awaited are kept.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.refs > 0 {
			continue
		}
		if now.Sub(e.lastUsed) > s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Log.Info().Dur("interval", interval).Dur("ttl", s.ttl).Msg("Session sweeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info().Msg("Session sweeper stopped")
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Log.Debug().Int("removed", n).Int("remaining", s.Len()).Msg("Expired sessions swept")
			}
		}
	}
}
