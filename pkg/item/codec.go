package item

import (
	"encoding/binary"
	"fmt"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// lengthFieldBytes returns the minimal number of big-endian bytes needed
// to represent length (1, 2, or 3), or an error if length exceeds the
// 3-byte maximum.
func lengthFieldBytes(length int) (int, error) {
	if length < 0 || length > MaxLength {
		return 0, secserr.Wrap("item.encode", secserr.ErrLengthOverflow, fmt.Errorf("length %d", length))
	}
	switch {
	case length <= 0xFF:
		return 1, nil
	case length <= 0xFFFF:
		return 2, nil
	default:
		return 3, nil
	}
}

// payloadLength returns the value carried in an item's length field: the
// child count for List, the element count * element size otherwise.
func payloadLength(it Item) (int, error) {
	switch v := it.(type) {
	case *List:
		return len(v.Items), nil
	case *ASCII:
		return len(v.Value), nil
	case *Binary:
		return len(v.Values), nil
	case *Boolean:
		return len(v.Values), nil
	case *Int:
		return len(v.Values) * v.Width, nil
	case *Uint:
		return len(v.Values) * v.Width, nil
	case *Float:
		return len(v.Bits) * v.Width, nil
	default:
		return 0, secserr.Wrap("item.encode", secserr.ErrInvalidFormat, fmt.Errorf("unsupported item type %T", it))
	}
}

// EncodedSize computes the total wire size of it (header plus payload,
// recursively for List), rejecting any node whose length field would
// overflow kMaxLength (spec.md §4.1's "single-pass with precomputed
// size").
func EncodedSize(it Item) (int, error) {
	plen, err := payloadLength(it)
	if err != nil {
		return 0, err
	}
	lenBytes, err := lengthFieldBytes(plen)
	if err != nil {
		return 0, err
	}
	size := 1 + lenBytes

	list, ok := it.(*List)
	if !ok {
		n, err := dataByteLen(it)
		if err != nil {
			return 0, err
		}
		return size + n, nil
	}
	for _, child := range list.Items {
		childSize, err := EncodedSize(child)
		if err != nil {
			return 0, err
		}
		size += childSize
	}
	return size, nil
}

// dataByteLen returns the number of payload bytes a non-List item occupies
// (element count already multiplied by element width).
func dataByteLen(it Item) (int, error) {
	switch v := it.(type) {
	case *ASCII:
		return len(v.Value), nil
	case *Binary:
		return len(v.Values), nil
	case *Boolean:
		return len(v.Values), nil
	case *Int:
		return len(v.Values) * v.Width, nil
	case *Uint:
		return len(v.Values) * v.Width, nil
	case *Float:
		return len(v.Bits) * v.Width, nil
	default:
		return 0, secserr.Wrap("item.encode", secserr.ErrInvalidFormat, fmt.Errorf("unsupported item type %T", it))
	}
}

// Encode allocates a new slice and writes it's wire representation into
// it in a single pass.
func Encode(it Item) ([]byte, error) {
	size, err := EncodedSize(it)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := EncodeTo(buf, it)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// EncodeTo writes it's wire representation into dst, which must be at
// least EncodedSize(it) bytes, and returns the number of bytes written.
// It returns secserr.ErrBufferOverflow if dst is too small.
func EncodeTo(dst []byte, it Item) (int, error) {
	n, err := encodeInto(dst, it)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func encodeInto(dst []byte, it Item) (int, error) {
	plen, err := payloadLength(it)
	if err != nil {
		return 0, err
	}
	lenBytes, err := lengthFieldBytes(plen)
	if err != nil {
		return 0, err
	}
	headerSize := 1 + lenBytes
	if len(dst) < headerSize {
		return 0, secserr.Wrap("item.encode", secserr.ErrBufferOverflow, nil)
	}

	dst[0] = formatCode[it.Kind()]<<2 | byte(lenBytes-1)
	writeBigEndianTrunc(dst[1:headerSize], uint32(plen), lenBytes)
	pos := headerSize

	if list, ok := it.(*List); ok {
		for _, child := range list.Items {
			written, err := encodeInto(dst[pos:], child)
			if err != nil {
				return 0, err
			}
			pos += written
		}
		return pos, nil
	}

	n, err := writePayload(dst[pos:], it)
	if err != nil {
		return 0, err
	}
	return pos + n, nil
}

func writeBigEndianTrunc(dst []byte, v uint32, n int) {
	full := make([]byte, 4)
	binary.BigEndian.PutUint32(full, v)
	copy(dst, full[4-n:])
}

func writePayload(dst []byte, it Item) (int, error) {
	n, err := dataByteLen(it)
	if err != nil {
		return 0, err
	}
	if len(dst) < n {
		return 0, secserr.Wrap("item.encode", secserr.ErrBufferOverflow, nil)
	}

	switch v := it.(type) {
	case *ASCII:
		copy(dst, v.Value)
	case *Binary:
		copy(dst, v.Values)
	case *Boolean:
		for i, b := range v.Values {
			if b {
				dst[i] = 1
			} else {
				dst[i] = 0
			}
		}
	case *Int:
		writeIntValues(dst, v.Width, v.Values)
	case *Uint:
		writeUintValues(dst, v.Width, v.Values)
	case *Float:
		writeFloatBits(dst, v.Width, v.Bits)
	default:
		return 0, secserr.Wrap("item.encode", secserr.ErrInvalidFormat, fmt.Errorf("unsupported item type %T", it))
	}
	return n, nil
}

func writeIntValues(dst []byte, width int, values []int64) {
	for i, v := range values {
		off := i * width
		switch width {
		case 1:
			dst[off] = byte(v)
		case 2:
			binary.BigEndian.PutUint16(dst[off:], uint16(v))
		case 4:
			binary.BigEndian.PutUint32(dst[off:], uint32(v))
		case 8:
			binary.BigEndian.PutUint64(dst[off:], uint64(v))
		}
	}
}

func writeUintValues(dst []byte, width int, values []uint64) {
	for i, v := range values {
		off := i * width
		switch width {
		case 1:
			dst[off] = byte(v)
		case 2:
			binary.BigEndian.PutUint16(dst[off:], uint16(v))
		case 4:
			binary.BigEndian.PutUint32(dst[off:], uint32(v))
		case 8:
			binary.BigEndian.PutUint64(dst[off:], v)
		}
	}
}

func writeFloatBits(dst []byte, width int, bits []uint64) {
	for i, v := range bits {
		off := i * width
		switch width {
		case 4:
			binary.BigEndian.PutUint32(dst[off:], uint32(v))
		case 8:
			binary.BigEndian.PutUint64(dst[off:], v)
		}
	}
}
