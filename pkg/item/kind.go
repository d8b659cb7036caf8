package item

// Kind identifies one of the 14 SECS-II data item variants (spec.md §3).
// The variant count is fixed; there is no 15th kind and no ambiguous
// representation of an existing one.
type Kind uint8

const (
	KindList Kind = iota
	KindBinary
	KindBoolean
	KindASCII
	KindI1
	KindI2
	KindI4
	KindI8
	KindU1
	KindU2
	KindU4
	KindU8
	KindF4
	KindF8
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "List"
	case KindBinary:
		return "Binary"
	case KindBoolean:
		return "Boolean"
	case KindASCII:
		return "ASCII"
	case KindI1:
		return "I1"
	case KindI2:
		return "I2"
	case KindI4:
		return "I4"
	case KindI8:
		return "I8"
	case KindU1:
		return "U1"
	case KindU2:
		return "U2"
	case KindU4:
		return "U4"
	case KindU8:
		return "U8"
	case KindF4:
		return "F4"
	case KindF8:
		return "F8"
	default:
		return "Unknown"
	}
}

// MaxLength is the largest encodable payload length: the value of a
// 3-byte big-endian length field (spec.md §3 invariant).
const MaxLength = 1<<24 - 1

// formatCode is the format byte's high 6 bits, as a plain integer (i.e.
// already shifted right by 2); the wire format byte is
// formatCode<<2 | (lengthFieldBytes-1).
var formatCode = map[Kind]byte{
	KindList:    0x00,
	KindBinary:  0x08,
	KindBoolean: 0x09,
	KindASCII:   0x10,
	KindI8:      0x18,
	KindI1:      0x19,
	KindI2:      0x1A,
	KindI4:      0x1B,
	KindF8:      0x20,
	KindF4:      0x21,
	KindU8:      0x28,
	KindU1:      0x29,
	KindU2:      0x2A,
	KindU4:      0x2B,
}

var kindByFormatCode = func() map[byte]Kind {
	m := make(map[byte]Kind, len(formatCode))
	for k, v := range formatCode {
		m[v] = k
	}
	return m
}()

// elementSize returns the byte width of a single primitive value for Kind,
// or 1 for List/Binary/Boolean/ASCII (whose length field counts elements
// one byte each, or children for List).
func elementSize(k Kind) int {
	switch k {
	case KindI1, KindU1, KindBinary, KindBoolean, KindASCII, KindList:
		return 1
	case KindI2, KindU2:
		return 2
	case KindI4, KindU4, KindF4:
		return 4
	case KindI8, KindU8, KindF8:
		return 8
	default:
		return 1
	}
}
