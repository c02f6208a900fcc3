package service

import (
	"sync"

	"github.com/google/uuid"
)

// debtLocks serializes mutations per debt id. Operations on different debts
// proceed in parallel; two mutations of the same debt never interleave.
type debtLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newDebtLocks() *debtLocks {
	return &debtLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// lock acquires the mutex for a debt and returns its unlock function.
func (l *debtLocks) lock(debtID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[debtID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[debtID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
