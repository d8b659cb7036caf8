package item

// Boolean is a SECS-II boolean-array item. Each value is encoded on the
// wire as a single byte: 0x00 for false, any nonzero byte for true, and
// always re-encoded as 0x00/0x01.
type Boolean struct {
	Values []bool
}

// NewBoolean creates a Boolean item; the slice is copied.
func NewBoolean(values ...bool) *Boolean {
	cp := make([]bool, len(values))
	copy(cp, values)
	return &Boolean{Values: cp}
}

func (b *Boolean) Kind() Kind { return KindBoolean }

func (b *Boolean) Size() int { return len(b.Values) }

func (b *Boolean) Equal(other Item) bool {
	o, ok := other.(*Boolean)
	if !ok || len(o.Values) != len(b.Values) {
		return false
	}
	for i := range b.Values {
		if b.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

func (b *Boolean) String() string { return render(b) }

func (*Boolean) isItem() {}
