// Package store owns the shared message and its positional operations.
//
// Every operation runs under a single lock covering the whole value:
// insert and delete shift every later index, so finer-grained locking
// would let a concurrent caller observe a torn value.  Bounds are
// checked inside the same critical section as the mutation, so a
// failed operation never changes the value.
package store

import (
	"sync"

	ncerr "piapi/internal/errors"
)

// Snapshot is the value of the message at a given version.
type Snapshot struct {
	Value   string
	Version uint64
}

// Observer is notified after every successful mutation.  It runs on
// the mutating goroutine, after the lock has been released.
type Observer func(Snapshot)

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to be called after each mutation.
func WithObserver(fn Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, fn) }
}

// Store holds the message as a sequence of runes.
type Store struct {
	mu        sync.RWMutex
	value     []rune
	version   uint64
	observers []Observer
}

// New returns a Store holding initial at version 0.
func New(initial string, opts ...Option) *Store {
	s := &Store{value: []rune(initial)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the character at index.
func (s *Store) Get(index int) (rune, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.value) {
		return 0, &ncerr.RangeError{Op: "get", Index: index, Length: len(s.value)}
	}
	return s.value[index], nil
}

// Lookup returns the character at index together with the snapshot it
// was read from.
func (s *Store) Lookup(index int) (rune, Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.value) {
		return 0, Snapshot{}, &ncerr.RangeError{Op: "get", Index: index, Length: len(s.value)}
	}
	return s.value[index], s.snapshotLocked(), nil
}

// Snapshot returns the whole message.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of characters in the message.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.value)
}

// Insert splices sub into the message immediately before index.
// index == Len() appends.
func (s *Store) Insert(index int, sub string) (Snapshot, error) {
	return s.mutate(func() error {
		if index < 0 || index > len(s.value) {
			return &ncerr.RangeError{Op: "insert", Index: index, Length: len(s.value)}
		}
		ins := []rune(sub)
		next := make([]rune, 0, len(s.value)+len(ins))
		next = append(next, s.value[:index]...)
		next = append(next, ins...)
		next = append(next, s.value[index:]...)
		s.value = next
		return nil
	})
}

// ReplaceChar overwrites the character at index with r.
func (s *Store) ReplaceChar(index int, r rune) (Snapshot, error) {
	return s.mutate(func() error {
		if index < 0 || index >= len(s.value) {
			return &ncerr.RangeError{Op: "replace", Index: index, Length: len(s.value)}
		}
		s.value[index] = r
		return nil
	})
}

// ReplaceAll swaps the entire message.
func (s *Store) ReplaceAll(value string) Snapshot {
	snap, _ := s.mutate(func() error {
		s.value = []rune(value)
		return nil
	})
	return snap
}

// DeleteChar removes the character at index, shifting the rest left.
// Deleting from an empty message is out of range.
func (s *Store) DeleteChar(index int) (Snapshot, error) {
	return s.mutate(func() error {
		if index < 0 || index >= len(s.value) {
			return &ncerr.RangeError{Op: "delete", Index: index, Length: len(s.value)}
		}
		s.value = append(s.value[:index:index], s.value[index+1:]...)
		return nil
	})
}

// Clear empties the message.
func (s *Store) Clear() Snapshot {
	return s.ReplaceAll("")
}

// mutate runs fn under the write lock.  On success the version is
// bumped and observers see the resulting snapshot.
func (s *Store) mutate(fn func() error) (Snapshot, error) {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, obs := range s.observers {
		obs(snap)
	}
	return snap, nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Value: string(s.value), Version: s.version}
}
