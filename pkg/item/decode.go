package item

import (
	"encoding/binary"
	"fmt"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// DecodeLimits bounds the resources a single Decode call may consume,
// enforced before any allocation past the bound (spec.md §4.1, testable
// property 9).
type DecodeLimits struct {
	MaxDepth         int
	MaxItems         int
	MaxTotalBytes    int
	MaxListElements  int
	MaxPayloadLength int
}

// DefaultDecodeLimits returns the spec's defaults: depth 64, 65536 total
// items, 64 MiB total bytes, 65535 list elements per node, 16 MiB per
// payload.
func DefaultDecodeLimits() DecodeLimits {
	return DecodeLimits{
		MaxDepth:         64,
		MaxItems:         65536,
		MaxTotalBytes:    64 << 20,
		MaxListElements:  65535,
		MaxPayloadLength: 16 << 20,
	}
}

// Decoder decodes SECS-II items under a fixed resource budget. A Decoder
// is stateless and safe for concurrent use; each Decode call gets its own
// running budget.
type Decoder struct {
	limits DecodeLimits
}

// NewDecoder creates a Decoder enforcing limits.
func NewDecoder(limits DecodeLimits) *Decoder {
	return &Decoder{limits: limits}
}

// Decode parses exactly one Item from data using DefaultDecodeLimits and
// reports the number of bytes consumed.
func Decode(data []byte) (Item, int, error) {
	return NewDecoder(DefaultDecodeLimits()).Decode(data)
}

// Decode parses exactly one Item from data and reports the number of
// bytes consumed.
func (d *Decoder) Decode(data []byte) (Item, int, error) {
	st := &decodeState{limits: d.limits}
	return st.decodeItem(data, 0)
}

type decodeState struct {
	limits     DecodeLimits
	itemCount  int
	byteBudget int
}

func (st *decodeState) decodeItem(data []byte, depth int) (Item, int, error) {
	if depth > st.limits.MaxDepth {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrInvalidHeader, fmt.Errorf("depth %d exceeds max %d", depth, st.limits.MaxDepth))
	}
	st.itemCount++
	if st.itemCount > st.limits.MaxItems {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrTotalBudgetExceeded, fmt.Errorf("item count exceeds max %d", st.limits.MaxItems))
	}
	if len(data) < 1 {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrTruncated, fmt.Errorf("need 1 byte, have 0"))
	}

	formatByte := data[0]
	lenCode := formatByte & 0x03
	if lenCode == 0x03 {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrInvalidHeader, fmt.Errorf("reserved length-field code"))
	}
	nLenBytes := int(lenCode) + 1
	code := formatByte >> 2

	kind, ok := kindByFormatCode[code]
	if !ok {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrInvalidFormat, fmt.Errorf("unknown format code 0x%02x", code))
	}

	if len(data) < 1+nLenBytes {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrTruncated, fmt.Errorf("need %d header bytes", 1+nLenBytes))
	}
	length := readBigEndianTrunc(data[1 : 1+nLenBytes])
	pos := 1 + nLenBytes

	if kind == KindList {
		return st.decodeList(data, pos, length, depth)
	}
	return st.decodePrimitive(kind, data, pos, length)
}

func (st *decodeState) decodeList(data []byte, pos int, length int, depth int) (Item, int, error) {
	if length > st.limits.MaxListElements {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrListTooLarge, fmt.Errorf("%d elements exceeds max %d", length, st.limits.MaxListElements))
	}
	items := make([]Item, 0, length)
	for i := 0; i < length; i++ {
		child, n, err := st.decodeItem(data[pos:], depth+1)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, child)
		pos += n
	}
	return &List{Items: items}, pos, nil
}

func (st *decodeState) decodePrimitive(kind Kind, data []byte, pos int, length int) (Item, int, error) {
	if length > st.limits.MaxPayloadLength {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrPayloadTooLarge, fmt.Errorf("%d bytes exceeds max %d", length, st.limits.MaxPayloadLength))
	}
	st.byteBudget += length
	if st.byteBudget > st.limits.MaxTotalBytes {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrTotalBudgetExceeded, fmt.Errorf("total decode bytes exceeds max %d", st.limits.MaxTotalBytes))
	}
	if len(data[pos:]) < length {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrTruncated, fmt.Errorf("need %d payload bytes", length))
	}

	width := elementSize(kind)
	if kind != KindASCII && kind != KindBinary && kind != KindBoolean && length%width != 0 {
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrLengthMismatch, fmt.Errorf("payload length %d not a multiple of %d", length, width))
	}

	payload := data[pos : pos+length]
	end := pos + length

	switch kind {
	case KindASCII:
		return &ASCII{Value: string(payload)}, end, nil
	case KindBinary:
		cp := make([]byte, length)
		copy(cp, payload)
		return &Binary{Values: cp}, end, nil
	case KindBoolean:
		values := make([]bool, length)
		for i, b := range payload {
			values[i] = b != 0
		}
		return &Boolean{Values: values}, end, nil
	case KindI1, KindI2, KindI4, KindI8:
		values := decodeIntValues(payload, width)
		return &Int{Width: width, Values: values}, end, nil
	case KindU1, KindU2, KindU4, KindU8:
		values := decodeUintValues(payload, width)
		return &Uint{Width: width, Values: values}, end, nil
	case KindF4, KindF8:
		bits := decodeFloatBits(payload, width)
		return &Float{Width: width, Bits: bits}, end, nil
	default:
		return nil, 0, secserr.Wrap("item.decode", secserr.ErrInvalidFormat, fmt.Errorf("unhandled kind %v", kind))
	}
}

func readBigEndianTrunc(b []byte) int {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return int(v)
}

func decodeIntValues(payload []byte, width int) []int64 {
	n := len(payload) / width
	values := make([]int64, n)
	for i := 0; i < n; i++ {
		off := i * width
		switch width {
		case 1:
			values[i] = int64(int8(payload[off]))
		case 2:
			values[i] = int64(int16(binary.BigEndian.Uint16(payload[off:])))
		case 4:
			values[i] = int64(int32(binary.BigEndian.Uint32(payload[off:])))
		case 8:
			values[i] = int64(binary.BigEndian.Uint64(payload[off:]))
		}
	}
	return values
}

func decodeUintValues(payload []byte, width int) []uint64 {
	n := len(payload) / width
	values := make([]uint64, n)
	for i := 0; i < n; i++ {
		off := i * width
		switch width {
		case 1:
			values[i] = uint64(payload[off])
		case 2:
			values[i] = uint64(binary.BigEndian.Uint16(payload[off:]))
		case 4:
			values[i] = uint64(binary.BigEndian.Uint32(payload[off:]))
		case 8:
			values[i] = binary.BigEndian.Uint64(payload[off:])
		}
	}
	return values
}

func decodeFloatBits(payload []byte, width int) []uint64 {
	n := len(payload) / width
	bits := make([]uint64, n)
	for i := 0; i < n; i++ {
		off := i * width
		switch width {
		case 4:
			bits[i] = uint64(binary.BigEndian.Uint32(payload[off:]))
		case 8:
			bits[i] = binary.BigEndian.Uint64(payload[off:])
		}
	}
	return bits
}
