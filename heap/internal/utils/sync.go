package utils

import (
	"sync"
)

// OptionalMutex is a sync.Mutex that can be switched off for owners that guarantee single-goroutine use.
// The zero value is an unlocked, active mutex.
type OptionalMutex struct {
	mutex    sync.Mutex
	disabled bool
}

// NewOptionalMutex creates a mutex that only locks when enabled is true
func NewOptionalMutex(enabled bool) *OptionalMutex {
	return &OptionalMutex{disabled: !enabled}
}

func (m *OptionalMutex) Enabled() bool {
	return !m.disabled
}

func (m *OptionalMutex) Lock() {
	if !m.disabled {
		m.mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if !m.disabled {
		m.mutex.Unlock()
	}
}
