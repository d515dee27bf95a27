package app

import (
	"slices"
	"sync"
)

// EquipmentLocks is a keyed mutex over equipment ids. Reservations from
// different sessions touching the same machine are serialised; locks are
// always taken in sorted id order so two reservations cannot deadlock.
type EquipmentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEquipmentLocks creates an empty lock set.
func NewEquipmentLocks() *EquipmentLocks {
	return &EquipmentLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock of every listed machine and returns the function
// that releases them. Duplicate ids are locked once.
func (l *EquipmentLocks) Lock(ids ...string) func() {
	keys := slices.Clone(ids)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*sync.Mutex, 0, len(keys))
	for _, id := range keys {
		m := l.lockFor(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (l *EquipmentLocks) lockFor(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
