package secs1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolimst/secs-core/pkg/secserr"
)

func TestReassembler_SingleBlockMessage(t *testing.T) {
	r := NewReassembler(nil)
	h := sampleHeader()
	require.NoError(t, r.Accept(h, []byte("body")))
	require.True(t, r.HasMessage())
	gotHeader, gotBody := r.Message()
	assert.Equal(t, h, gotHeader)
	assert.Equal(t, "body", string(gotBody))
}

func TestReassembler_MultiBlockMessage(t *testing.T) {
	payload := bytes.Repeat([]byte{0x7A}, 700)
	frames, err := FragmentMessage(sampleHeader(), payload)
	require.NoError(t, err)

	r := NewReassembler(nil)
	for i, frame := range frames {
		h, data, err := DecodeBlock(frame)
		require.NoError(t, err)
		require.NoError(t, r.Accept(h, data))
		if i < len(frames)-1 {
			assert.False(t, r.HasMessage())
		}
	}
	require.True(t, r.HasMessage())
	_, body := r.Message()
	assert.Equal(t, payload, body)
}

func TestReassembler_DeviceIDMismatchOnFirstBlock(t *testing.T) {
	expected := uint16(7)
	r := NewReassembler(&expected)
	h := sampleHeader()
	h.DeviceID = 8
	err := r.Accept(h, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrDeviceIDMismatch)
}

func TestReassembler_FirstBlockMustBeNumberOne(t *testing.T) {
	r := NewReassembler(nil)
	h := sampleHeader()
	h.BlockNumber = 2
	err := r.Accept(h, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrBlockSequenceErr)
}

func TestReassembler_SequenceErrorOnGap(t *testing.T) {
	r := NewReassembler(nil)
	first := sampleHeader()
	first.BlockNumber = 1
	first.EndBit = false
	require.NoError(t, r.Accept(first, []byte("a")))

	skip := first
	skip.BlockNumber = 3
	err := r.Accept(skip, []byte("b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrBlockSequenceErr)
}

func TestReassembler_IdentityMismatchOnSubsequentBlock(t *testing.T) {
	r := NewReassembler(nil)
	first := sampleHeader()
	first.BlockNumber = 1
	first.EndBit = false
	require.NoError(t, r.Accept(first, []byte("a")))

	mismatched := first
	mismatched.BlockNumber = 2
	mismatched.Stream = first.Stream + 1
	err := r.Accept(mismatched, []byte("b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrProtocolError)
}

func TestReassembler_ResetAllowsNewMessage(t *testing.T) {
	r := NewReassembler(nil)
	require.NoError(t, r.Accept(sampleHeader(), []byte("first")))
	require.True(t, r.HasMessage())

	r.Reset()
	assert.False(t, r.HasMessage())
	require.NoError(t, r.Accept(sampleHeader(), []byte("second")))
	_, body := r.Message()
	assert.Equal(t, "second", string(body))
}
