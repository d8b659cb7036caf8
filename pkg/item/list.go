package item

// List is a SECS-II list item: an ordered sequence of child Items. Lists
// nest to arbitrary depth, bounded on decode by DecodeLimits.MaxDepth.
type List struct {
	Items []Item
}

// NewList creates a List from the given children, in order.
func NewList(items ...Item) *List {
	cp := make([]Item, len(items))
	copy(cp, items)
	return &List{Items: cp}
}

func (l *List) Kind() Kind { return KindList }

func (l *List) Size() int { return len(l.Items) }

func (l *List) Equal(other Item) bool {
	o, ok := other.(*List)
	if !ok || len(o.Items) != len(l.Items) {
		return false
	}
	for i := range l.Items {
		if !l.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

func (l *List) String() string { return render(l) }

func (*List) isItem() {}
