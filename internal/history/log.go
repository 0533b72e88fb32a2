// Package history holds the append-only, in-memory series of snapshots
// collected during one monitoring session.
package history

import (
	"iter"
	"sync"
)

// Log is a write-once sequence. Entries are never modified or removed after
// Append, so any prefix of the backing slice is safe to hand to readers.
type Log[T any] struct {
	mu      sync.RWMutex
	entries []T
}

func New[T any]() *Log[T] {
	return &Log[T]{}
}

func (l *Log[T]) Append(v T) {
	l.mu.Lock()
	l.entries = append(l.entries, v)
	l.mu.Unlock()
}

func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log[T]) Latest() (T, bool) {
	return l.View().Latest()
}

func (l *Log[T]) At(i int) (T, bool) {
	return l.View().At(i)
}

// All iterates over the entries present when iteration starts.
func (l *Log[T]) All() iter.Seq2[int, T] {
	return l.View().All()
}

// View returns a read-only view of the entries appended so far. Later
// appends are not visible through it.
func (l *Log[T]) View() View[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.entries)
	return View[T]{entries: l.entries[:n:n]}
}

// View is a consistent, immutable prefix of a Log.
type View[T any] struct {
	entries []T
}

func (v View[T]) Len() int {
	return len(v.entries)
}

func (v View[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(v.entries) {
		var zero T
		return zero, false
	}
	return v.entries[i], true
}

func (v View[T]) Latest() (T, bool) {
	return v.At(len(v.entries) - 1)
}

func (v View[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, e := range v.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Tail returns up to n most recent entries, oldest first.
func (v View[T]) Tail(n int) View[T] {
	if n <= 0 {
		return View[T]{}
	}
	if n >= len(v.entries) {
		return v
	}
	return View[T]{entries: v.entries[len(v.entries)-n:]}
}
