package item

import (
	"fmt"
	"math"
)

// Float is a SECS-II IEEE-754-array item at width 4 or 8 bytes. Values are
// stored as raw bit patterns (in a uint64, zero-extended for width 4) so
// that equality, and therefore codec roundtrip, is bitwise: it
// distinguishes +0/-0 and preserves NaN payloads exactly as spec.md §3
// requires.
type Float struct {
	Width int
	Bits  []uint64
}

// NewFloat32 creates a width-4 Float item from float32 values.
func NewFloat32(values ...float32) *Float {
	bits := make([]uint64, len(values))
	for i, v := range values {
		bits[i] = uint64(math.Float32bits(v))
	}
	return &Float{Width: 4, Bits: bits}
}

// NewFloat64 creates a width-8 Float item from float64 values.
func NewFloat64(values ...float64) *Float {
	bits := make([]uint64, len(values))
	for i, v := range values {
		bits[i] = math.Float64bits(v)
	}
	return &Float{Width: 8, Bits: bits}
}

// NewFloatBits creates a Float item directly from raw bit patterns. width
// must be 4 or 8.
func NewFloatBits(width int, bits ...uint64) *Float {
	if width != 4 && width != 8 {
		panic(fmt.Sprintf("item: invalid Float width %d", width))
	}
	cp := make([]uint64, len(bits))
	copy(cp, bits)
	return &Float{Width: width, Bits: cp}
}

func (f *Float) Kind() Kind {
	if f.Width == 4 {
		return KindF4
	}
	return KindF8
}

func (f *Float) Size() int { return len(f.Bits) }

// Value32 decodes element i as a float32. Width must be 4.
func (f *Float) Value32(i int) float32 {
	return math.Float32frombits(uint32(f.Bits[i]))
}

// Value64 decodes element i as a float64. Width must be 8.
func (f *Float) Value64(i int) float64 {
	return math.Float64frombits(f.Bits[i])
}

func (f *Float) Equal(other Item) bool {
	o, ok := other.(*Float)
	if !ok || o.Width != f.Width || len(o.Bits) != len(f.Bits) {
		return false
	}
	for i := range f.Bits {
		if f.Bits[i] != o.Bits[i] {
			return false
		}
	}
	return true
}

func (f *Float) String() string { return render(f) }

func (*Float) isItem() {}
