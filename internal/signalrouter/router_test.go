package signalrouter

import (
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsUnblockable(t *testing.T) {
	r := New()
	err := r.Register(syscall.SIGKILL, func(os.Signal) {})
	require.Error(t, err)
	err = r.Register(syscall.SIGSTOP, func(os.Signal) {})
	require.Error(t, err)
}

func TestStartStopIdempotent(t *testing.T) {
	r := New()
	r.Start()
	r.Start()
	r.Stop()
	r.Stop()
}

func TestHandlersStackInRegistrationOrder(t *testing.T) {
	r := New()
	var mu sync.Mutex
	var order []int

	require.NoError(t, r.Register(syscall.SIGUSR1, func(os.Signal) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	}))
	require.NoError(t, r.Register(syscall.SIGUSR1, func(os.Signal) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	}))

	r.Start()
	defer r.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, order)
}

func TestHandlerCanRegisterWithoutDeadlock(t *testing.T) {
	r := New()
	done := make(chan struct{})

	require.NoError(t, r.Register(syscall.SIGUSR2, func(os.Signal) {
		_ = r.Register(syscall.SIGUSR2, func(os.Signal) {})
		close(done)
	}))
	r.Start()
	defer r.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR2))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler registering under its own signal deadlocked")
	}
}
