package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolimst/secs-core/pkg/secserr"
)

func TestEvent_SetWakesWaiter(t *testing.T) {
	e := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Set()
	}()
	err := e.Wait(context.Background())
	assert.NoError(t, err)
	assert.True(t, e.IsSet())
}

func TestEvent_CancelWakesWaiter(t *testing.T) {
	e := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Cancel()
	}()
	err := e.Wait(context.Background())
	assert.ErrorIs(t, err, secserr.ErrCancelled)
}

func TestEvent_ContextTimeout(t *testing.T) {
	e := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := e.Wait(ctx)
	assert.ErrorIs(t, err, secserr.ErrTimeout)
}

func TestEvent_MultipleWaitersAllWake(t *testing.T) {
	e := New()
	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Wait(context.Background())
		}(i)
	}
	time.Sleep(5 * time.Millisecond)
	e.Set()
	wg.Wait()
	for _, err := range results {
		assert.NoError(t, err)
	}
}

func TestEvent_ResetStartsFreshGeneration(t *testing.T) {
	e := New()
	e.Set()
	require.True(t, e.IsSet())
	e.Reset()
	assert.False(t, e.IsSet())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := e.Wait(ctx)
	assert.ErrorIs(t, err, secserr.ErrTimeout)
}

func TestEvent_SetThenCancelIsNoOp(t *testing.T) {
	e := New()
	e.Set()
	e.Cancel()
	err := e.Wait(context.Background())
	assert.NoError(t, err)
}
