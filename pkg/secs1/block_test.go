package secs1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolimst/secs-core/pkg/secserr"
)

func sampleHeader() Header {
	return Header{
		ReverseBit:  false,
		DeviceID:    42,
		WaitBit:     true,
		Stream:      1,
		Function:    1,
		EndBit:      true,
		BlockNumber: 1,
		SystemBytes: 0x00000003,
	}
}

func TestEncodeDecodeBlock_Roundtrip(t *testing.T) {
	h := sampleHeader()
	data := []byte("hello, equipment")

	frame, err := EncodeBlock(h, data)
	require.NoError(t, err)

	gotHeader, gotData, err := DecodeBlock(frame)
	require.NoError(t, err)
	assert.Equal(t, h, gotHeader)
	assert.Equal(t, data, gotData)
}

func TestEncodeBlock_MaxDataLen(t *testing.T) {
	data := make([]byte, MaxDataLen)
	_, err := EncodeBlock(sampleHeader(), data)
	require.NoError(t, err)

	_, err = EncodeBlock(sampleHeader(), make([]byte, MaxDataLen+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidArgument)
}

func TestEncodeBlock_DeviceIDTooLarge(t *testing.T) {
	h := sampleHeader()
	h.DeviceID = MaxDeviceID + 1
	_, err := EncodeBlock(h, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidArgument)
}

func TestDecodeBlock_ChecksumMismatch(t *testing.T) {
	frame, err := EncodeBlock(sampleHeader(), []byte("payload"))
	require.NoError(t, err)

	corrupted := append([]byte(nil), frame...)
	corrupted[11] ^= 0xFF // flip a payload byte

	_, _, err = DecodeBlock(corrupted)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrChecksumMismatch)
}

func TestDecodeBlock_LengthOutOfRange(t *testing.T) {
	frame, err := EncodeBlock(sampleHeader(), []byte("x"))
	require.NoError(t, err)
	frame[0] = 255 // out of [10,254]
	_, _, err = DecodeBlock(frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidBlock)
}

func TestDecodeBlock_FrameLengthMismatch(t *testing.T) {
	frame, err := EncodeBlock(sampleHeader(), []byte("x"))
	require.NoError(t, err)
	_, _, err = DecodeBlock(frame[:len(frame)-1])
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidBlock)
}

func TestDecodeBlock_ReservedBitsNonzero(t *testing.T) {
	frame, err := EncodeBlock(sampleHeader(), []byte("x"))
	require.NoError(t, err)
	// Corrupt reserved bits in byte index 4 of the header (frame offset 5).
	frame[5] |= 0x01
	// Recompute the checksum so the corruption is detected as a header
	// problem, not masked by a checksum failure.
	fixChecksum(frame)
	_, _, err = DecodeBlock(frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidBlock)
}

func fixChecksum(frame []byte) {
	length := int(frame[0])
	cs := sum16(frame[1 : 1+length])
	frame[1+length] = byte(cs >> 8)
	frame[1+length+1] = byte(cs)
}

func TestEmptyPayloadProducesEmptyBlock(t *testing.T) {
	h := sampleHeader()
	h.EndBit = false
	frame, err := EncodeBlock(h, nil)
	require.NoError(t, err)
	gotHeader, gotData, err := DecodeBlock(frame)
	require.NoError(t, err)
	assert.Empty(t, gotData)
	assert.Equal(t, h, gotHeader)
}
