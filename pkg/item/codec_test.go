package item

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolimst/secs-core/pkg/secserr"
)

func roundtrip(t *testing.T, it Item) Item {
	t.Helper()
	size, err := EncodedSize(it)
	require.NoError(t, err)

	encoded, err := Encode(it)
	require.NoError(t, err)
	assert.Equal(t, size, len(encoded), "encoded size mismatch")

	decoded, n, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	return decoded
}

func TestRoundtrip_Primitives(t *testing.T) {
	cases := []Item{
		NewASCII("OK"),
		NewASCII(""),
		NewBinary(0x01, 0xFF, 0x00),
		NewBoolean(true, false, true),
		NewInt(1, -1, 0, 127, -128),
		NewInt(2, -32768, 32767),
		NewInt(4, math.MinInt32, math.MaxInt32),
		NewInt(8, math.MinInt64, math.MaxInt64),
		NewUint(1, 0, 255),
		NewUint(2, 0, 65535),
		NewUint(4, 0, math.MaxUint32),
		NewUint(8, 0, math.MaxUint64),
		NewFloat32(3.14, -0, float32(math.NaN())),
		NewFloat64(2.71828, -0, math.NaN()),
	}
	for _, it := range cases {
		decoded := roundtrip(t, it)
		assert.True(t, it.Equal(decoded), "roundtrip mismatch for %v", it.Kind())
	}
}

func TestRoundtrip_NestedList(t *testing.T) {
	it := NewList(
		NewASCII("S1F1"),
		NewList(
			NewUint(4, 1, 2, 3),
			NewBoolean(true),
		),
		NewList(),
	)
	decoded := roundtrip(t, it)
	assert.True(t, it.Equal(decoded))
}

func TestFloat_BitwiseEquality(t *testing.T) {
	posZero := NewFloat64(0)
	negZero := NewFloat64(math.Copysign(0, -1))
	assert.False(t, posZero.Equal(negZero), "+0 and -0 must not be bitwise equal")

	nan1 := NewFloatBits(8, 0x7FF8000000000001)
	nan2 := NewFloatBits(8, 0x7FF8000000000002)
	assert.False(t, nan1.Equal(nan2), "distinct NaN payloads must not be equal")
	assert.True(t, nan1.Equal(NewFloatBits(8, 0x7FF8000000000001)))
}

func TestDecode_ReservedLengthCodeRejected(t *testing.T) {
	// ASCII format code (0x10) with reserved length-bytes code 0b11.
	data := []byte{0x10<<2 | 0x03, 0x00}
	_, _, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidHeader)
}

func TestDecode_UnknownFormatCodeRejected(t *testing.T) {
	data := []byte{0x3F << 2, 0x00}
	_, _, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidFormat)
}

func TestDecode_TruncatedHeader(t *testing.T) {
	_, _, err := Decode([]byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrTruncated)

	_, _, err = Decode([]byte{0x10<<2 | 0x01}) // claims 2 length bytes, has 0
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrTruncated)
}

func TestDecode_TruncatedPayload(t *testing.T) {
	data := []byte{0x10<<2 | 0x00, 0x05, 'h', 'i'} // claims 5 bytes, has 2
	_, _, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrTruncated)
}

func TestDecode_LengthMismatchForNumeric(t *testing.T) {
	data := []byte{0x2A<<2 | 0x00, 0x03, 0, 1, 2} // U2 with 3-byte payload
	_, _, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrLengthMismatch)
}

func TestDecode_DepthBoundary(t *testing.T) {
	limits := DefaultDecodeLimits()
	limits.MaxDepth = 2
	d := NewDecoder(limits)

	ok := NewList(NewList(NewASCII("x")))
	encoded, err := Encode(ok)
	require.NoError(t, err)
	_, _, err = d.Decode(encoded)
	require.NoError(t, err)

	tooDeep := NewList(NewList(NewList(NewASCII("x"))))
	encoded, err = Encode(tooDeep)
	require.NoError(t, err)
	_, _, err = d.Decode(encoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrInvalidHeader)
}

func TestDecode_ListTooLarge(t *testing.T) {
	limits := DefaultDecodeLimits()
	limits.MaxListElements = 2
	d := NewDecoder(limits)

	data := []byte{0x00<<2 | 0x00, 0x03} // List header claiming 3 children, none present
	_, _, err := d.Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrListTooLarge)
}

func TestDecode_PayloadTooLarge(t *testing.T) {
	limits := DefaultDecodeLimits()
	limits.MaxPayloadLength = 4
	d := NewDecoder(limits)

	data := []byte{0x10<<2 | 0x00, 10} // ASCII claiming 10 bytes
	_, _, err := d.Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrPayloadTooLarge)
}

func TestDecode_TotalBudgetExceeded(t *testing.T) {
	limits := DefaultDecodeLimits()
	limits.MaxTotalBytes = 3
	d := NewDecoder(limits)

	it := NewBinary(1, 2, 3, 4, 5)
	encoded, err := Encode(it)
	require.NoError(t, err)
	_, _, err = d.Decode(encoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrTotalBudgetExceeded)
}

func TestDecode_NeverAllocatesBeforeValidatingBudget(t *testing.T) {
	limits := DefaultDecodeLimits()
	limits.MaxPayloadLength = 1 << 10
	d := NewDecoder(limits)

	// Declares a payload far larger than what is actually present; if the
	// decoder allocated before validating, this would OOM rather than
	// fail fast with PayloadTooLarge.
	data := []byte{0x08<<2 | 0x02, 0xFF, 0xFF, 0xFF}
	_, _, err := d.Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrPayloadTooLarge)
}

func TestEncode_LengthOverflowRejected(t *testing.T) {
	_, err := EncodedSize(&ASCII{Value: string(make([]byte, MaxLength+1))})
	require.Error(t, err)
	var target = secserr.ErrLengthOverflow
	assert.True(t, errors.Is(err, target))
}

func TestEncode_BufferOverflow(t *testing.T) {
	it := NewASCII("hello")
	dst := make([]byte, 2)
	_, err := EncodeTo(dst, it)
	require.Error(t, err)
	assert.ErrorIs(t, err, secserr.ErrBufferOverflow)
}

func TestEncode_LengthFieldWidthBoundaries(t *testing.T) {
	// 255 bytes -> 1-byte length field; 256 -> 2-byte; 65536 -> 3-byte.
	for _, n := range []int{255, 256, 65536} {
		it := NewBinary(make([]byte, n)...)
		encoded, err := Encode(it)
		require.NoError(t, err)
		decoded, consumed, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), consumed)
		assert.True(t, it.Equal(decoded))
	}
}
