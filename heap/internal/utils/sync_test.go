package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalMutexSerializes(t *testing.T) {
	mutex := NewOptionalMutex(true)
	require.True(t, mutex.Enabled())

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				mutex.Lock()
				counter++
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 8000, counter)
}

func TestOptionalMutexDisabled(t *testing.T) {
	mutex := NewOptionalMutex(false)
	require.False(t, mutex.Enabled())

	// A disabled mutex never blocks, even when locked twice
	mutex.Lock()
	mutex.Lock()
	mutex.Unlock()
	mutex.Unlock()
}
