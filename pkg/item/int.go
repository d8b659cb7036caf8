package item

import "fmt"

// Int is a SECS-II signed-integer-array item at one of the 4 widths (in
// bytes): 1, 2, 4, or 8.
type Int struct {
	Width  int
	Values []int64
}

// NewInt creates an Int item. width must be 1, 2, 4, or 8; it panics
// otherwise, matching the teacher's factory-method validation style.
func NewInt(width int, values ...int64) *Int {
	if err := checkIntWidth(width); err != nil {
		panic(err)
	}
	cp := make([]int64, len(values))
	copy(cp, values)
	return &Int{Width: width, Values: cp}
}

func checkIntWidth(width int) error {
	switch width {
	case 1, 2, 4, 8:
		return nil
	default:
		return fmt.Errorf("item: invalid Int width %d", width)
	}
}

func (n *Int) Kind() Kind {
	switch n.Width {
	case 1:
		return KindI1
	case 2:
		return KindI2
	case 4:
		return KindI4
	default:
		return KindI8
	}
}

func (n *Int) Size() int { return len(n.Values) }

func (n *Int) Equal(other Item) bool {
	o, ok := other.(*Int)
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

func (n *Int) String() string { return render(n) }

func (*Int) isItem() {}
