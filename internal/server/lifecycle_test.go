package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	started atomic.Bool
	stopped atomic.Bool
	startFn func() error
	stopErr error
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	// Block until stopped
	for !m.stopped.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *mockService) Stop(context.Context) error {
	m.stopped.Store(true)
	return m.stopErr
}

func waitStarted(t *testing.T, svcs ...*mockService) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		all := true
		for _, s := range svcs {
			all = all && s.started.Load()
		}
		if all {
			return
		}
		select {
		case <-deadline:
			t.Fatal("services did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestLifecycleStartsAndStopsServices(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger, time.Second)

	svc1 := &mockService{}
	svc2 := &mockService{}

	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	waitStarted(t, svc1, svc2)

	// Trigger shutdown
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, svc1.stopped.Load())
	assert.True(t, svc2.stopped.Load())
}

func TestLifecycle_ServiceFailureStopsAll(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), 0)
	healthy := &mockService{}
	failing := &mockService{startFn: func() error { return errors.New("bind: address in use") }}
	lc.Add("healthy", healthy)
	lc.Add("failing", failing)

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.True(t, healthy.stopped.Load())
}

func TestLifecycle_StopErrorsAreReturned(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	svc := &mockService{stopErr: errors.New("flush failed")}
	lc.Add("svc", svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	waitStarted(t, svc)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flush failed")
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		lc.Add(name, &FuncService{StopFn: func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, lc.Run(ctx))
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func(context.Context) error {
			stopped = true
			return nil
		},
	}

	err := svc.Start()
	assert.NoError(t, err)
	assert.True(t, started)

	assert.NoError(t, svc.Stop(context.Background()))
	assert.True(t, stopped)
}

func TestFuncService_NilStartBlocksUntilStop(t *testing.T) {
	svc := &FuncService{}
	returned := make(chan struct{})
	go func() {
		_ = svc.Start()
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("Start returned before Stop")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, svc.Stop(context.Background()))
	require.NoError(t, svc.Stop(context.Background()), "Stop is idempotent")
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
