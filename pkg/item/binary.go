package item

import "bytes"

// Binary is a SECS-II opaque byte-array item.
type Binary struct {
	Values []byte
}

// NewBinary creates a Binary item from a byte slice; the slice is copied.
func NewBinary(values ...byte) *Binary {
	cp := make([]byte, len(values))
	copy(cp, values)
	return &Binary{Values: cp}
}

func (b *Binary) Kind() Kind { return KindBinary }

func (b *Binary) Size() int { return len(b.Values) }

func (b *Binary) Equal(other Item) bool {
	o, ok := other.(*Binary)
	return ok && bytes.Equal(o.Values, b.Values)
}

func (b *Binary) String() string { return render(b) }

func (*Binary) isItem() {}
