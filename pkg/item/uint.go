package item

import "fmt"

// Uint is a SECS-II unsigned-integer-array item at one of the 4 widths
// (in bytes): 1, 2, 4, or 8.
type Uint struct {
	Width  int
	Values []uint64
}

// NewUint creates a Uint item. width must be 1, 2, 4, or 8.
func NewUint(width int, values ...uint64) *Uint {
	if err := checkUintWidth(width); err != nil {
		panic(err)
	}
	cp := make([]uint64, len(values))
	copy(cp, values)
	return &Uint{Width: width, Values: cp}
}

func checkUintWidth(width int) error {
	switch width {
	case 1, 2, 4, 8:
		return nil
	default:
		return fmt.Errorf("item: invalid Uint width %d", width)
	}
}

func (n *Uint) Kind() Kind {
	switch n.Width {
	case 1:
		return KindU1
	case 2:
		return KindU2
	case 4:
		return KindU4
	default:
		return KindU8
	}
}

func (n *Uint) Size() int { return len(n.Values) }

func (n *Uint) Equal(other Item) bool {
	o, ok := other.(*Uint)
	if !ok || o.Width != n.Width || len(o.Values) != len(n.Values) {
		return false
	}
	for i := range n.Values {
		if n.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

func (n *Uint) String() string { return render(n) }

func (*Uint) isItem() {}
