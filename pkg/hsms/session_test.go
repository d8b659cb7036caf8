package hsms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolimst/secs-core/pkg/secserr"
)

func testOptions() Options {
	o := DefaultOptions()
	o.T3 = time.Second
	o.T6 = time.Second
	o.T7 = time.Second
	o.T8 = time.Second
	o.PassiveAcceptSelect = true
	return o
}

// pairedSessions wires an active and a passive Session over DialMemory and
// fully opens both sides.
func pairedSessions(t *testing.T) (active, passive *Session) {
	t.Helper()
	connA, connB := DialMemory()

	used := false
	dial := func(ctx context.Context) (*Connection, error) {
		require.False(t, used, "dialer should only be invoked once in this test")
		used = true
		return connA, nil
	}

	active = NewActive(dial, testOptions())
	passive = NewPassive(connB, testOptions())

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		done <- passive.OpenPassive(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, active.OpenActive(ctx))
	require.NoError(t, <-done)

	assert.Equal(t, StateSelected, active.State())
	assert.Equal(t, StateSelected, passive.State())
	return active, passive
}

func TestSession_OpenActiveOpenPassiveSelect(t *testing.T) {
	active, passive := pairedSessions(t)
	defer active.Stop()
	defer passive.Stop()
}

func TestSession_Linktest(t *testing.T) {
	active, passive := pairedSessions(t)
	defer active.Stop()
	defer passive.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, active.Linktest(ctx))
}

func TestSession_RequestResponse(t *testing.T) {
	active, passive := pairedSessions(t)
	defer active.Stop()
	defer passive.Stop()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		msg, err := passive.ReceiveData(ctx)
		if err != nil {
			return
		}
		reply := NewDataMessage(msg.SessionID, msg.Stream(), msg.Function()+1, false, msg.SystemBytes, msg.Body)
		_ = passive.Send(ctx, reply)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	primary := NewDataMessage(0, 1, 13, true, 5, []byte("ping"))
	reply, err := active.Request(ctx, primary)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(reply.Body))
	assert.Equal(t, uint8(14), reply.Function())
}

func TestSession_StopCancelsPendingRequests(t *testing.T) {
	active, passive := pairedSessions(t)
	defer passive.Stop()

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		primary := NewDataMessage(0, 1, 13, true, 9, []byte("x"))
		_, err := active.Request(ctx, primary)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	active.Stop()

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrCancelled)
	assert.Equal(t, 0, active.PendingCount())
}

func TestSession_MaxPendingRequestsRejectsAdmission(t *testing.T) {
	active, passive := pairedSessions(t)
	defer active.Stop()
	defer passive.Stop()

	active.opts.MaxPendingRequests = 0
	primary := NewDataMessage(0, 1, 13, true, 11, []byte("x"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := active.Request(ctx, primary)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrBufferOverflow)
}
