package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolimst/secs-core/internal/testlink"
	"github.com/wolimst/secs-core/pkg/hsms"
	"github.com/wolimst/secs-core/pkg/secs1"
)

func TestHSMSSession_RequestAutoReply(t *testing.T) {
	connA, connB := hsms.DialMemory()

	hsmsOpts := hsms.DefaultOptions()
	hsmsOpts.T6 = time.Second
	hsmsOpts.T7 = time.Second

	used := false
	dial := func(ctx context.Context) (*hsms.Connection, error) {
		require.False(t, used)
		used = true
		return connA, nil
	}
	active := hsms.NewActive(dial, hsmsOpts)
	passive := hsms.NewPassive(connB, hsmsOpts)

	passiveOpenDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		passiveOpenDone <- passive.OpenPassive(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, active.OpenActive(ctx))
	require.NoError(t, <-passiveOpenDone)

	hostSession := NewHSMS(active, DefaultOptions())
	eqSession := NewHSMS(passive, DefaultOptions())
	defer hostSession.Stop()
	defer eqSession.Stop()

	eqSession.Router().Set(1, 13, func(body []byte) ([]byte, error) {
		return body, nil
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go eqSession.Run(runCtx)

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()
	reply, err := hostSession.Request(reqCtx, 1, 13, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(reply.Body))
	assert.Equal(t, uint8(14), reply.Function)
}

func TestSECS1Session_RequestAutoReply(t *testing.T) {
	hostPort, eqPort := testlink.Pair()
	opts := secs1.DefaultOptions()
	opts.T1 = 200 * time.Millisecond
	opts.T2 = 200 * time.Millisecond
	opts.T3 = 2 * time.Second
	opts.T4 = 200 * time.Millisecond
	opts.DeviceID = 5

	hostSM := secs1.New(hostPort, opts, nil)
	eqSM := secs1.New(eqPort, opts, nil)

	hostProtoOpts := DefaultOptions()
	hostProtoOpts.SECS1DeviceID = 5
	hostProtoOpts.SECS1ReverseBit = false
	hostProtoOpts.T3 = 2 * time.Second

	eqProtoOpts := hostProtoOpts
	eqProtoOpts.SECS1ReverseBit = true

	hostSession := NewSECS1(hostSM, hostProtoOpts)
	eqSession := NewSECS1(eqSM, eqProtoOpts)

	eqSession.Router().Set(1, 13, func(body []byte) ([]byte, error) {
		return body, nil
	})

	eqDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		eqDone <- eqSession.Run(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	reply, err := hostSession.Request(ctx, 1, 13, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ping", string(reply.Body))
	assert.Equal(t, uint8(14), reply.Function)
}
