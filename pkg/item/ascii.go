package item

// ASCII is a SECS-II text item. Its Size is the number of encoded bytes,
// matching the SEMI convention of treating ASCII as a byte-indexed string
// rather than a Unicode-aware one.
type ASCII struct {
	Value string
}

// NewASCII creates an ASCII item from a Go string.
func NewASCII(value string) *ASCII {
	return &ASCII{Value: value}
}

func (a *ASCII) Kind() Kind { return KindASCII }

func (a *ASCII) Size() int { return len(a.Value) }

func (a *ASCII) Equal(other Item) bool {
	o, ok := other.(*ASCII)
	return ok && o.Value == a.Value
}

func (a *ASCII) String() string { return render(a) }

func (*ASCII) isItem() {}
