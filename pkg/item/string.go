package item

import (
	"fmt"
	"strconv"
	"strings"
)

// maxPreviewElements bounds how many array/list elements String() renders
// before eliding the rest; it's a debug aid for logging, not a general
// pretty-printer (the full hex-dump/SML renderer is out of scope).
const maxPreviewElements = 8

type stringVisitor struct {
	out *strings.Builder
}

func (v stringVisitor) VisitList(l *List) {
	v.out.WriteString("<L")
	n := len(l.Items)
	if n > maxPreviewElements {
		n = maxPreviewElements
	}
	for i := 0; i < n; i++ {
		v.out.WriteByte(' ')
		v.out.WriteString(l.Items[i].String())
	}
	if len(l.Items) > maxPreviewElements {
		fmt.Fprintf(v.out, " ...+%d", len(l.Items)-maxPreviewElements)
	}
	v.out.WriteByte('>')
}

func (v stringVisitor) VisitASCII(a *ASCII) {
	s := a.Value
	elided := len(s) > maxPreviewElements*8
	if elided {
		s = s[:maxPreviewElements*8]
	}
	fmt.Fprintf(v.out, "<A %q", s)
	if elided {
		v.out.WriteString("...")
	}
	v.out.WriteByte('>')
}

func (v stringVisitor) VisitBinary(b *Binary) {
	v.out.WriteString("<B")
	n := len(b.Values)
	if n > maxPreviewElements {
		n = maxPreviewElements
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(v.out, " 0x%02X", b.Values[i])
	}
	if len(b.Values) > maxPreviewElements {
		fmt.Fprintf(v.out, " ...+%d", len(b.Values)-maxPreviewElements)
	}
	v.out.WriteByte('>')
}

func (v stringVisitor) VisitBoolean(b *Boolean) {
	v.out.WriteString("<BOOLEAN")
	n := len(b.Values)
	if n > maxPreviewElements {
		n = maxPreviewElements
	}
	for i := 0; i < n; i++ {
		v.out.WriteByte(' ')
		v.out.WriteString(strconv.FormatBool(b.Values[i]))
	}
	if len(b.Values) > maxPreviewElements {
		fmt.Fprintf(v.out, " ...+%d", len(b.Values)-maxPreviewElements)
	}
	v.out.WriteByte('>')
}

func (v stringVisitor) VisitInt(n *Int) {
	fmt.Fprintf(v.out, "<I%d", n.Width)
	v.writeValues(len(n.Values), func(i int) { fmt.Fprintf(v.out, "%d", n.Values[i]) })
}

func (v stringVisitor) VisitUint(n *Uint) {
	fmt.Fprintf(v.out, "<U%d", n.Width)
	v.writeValues(len(n.Values), func(i int) { fmt.Fprintf(v.out, "%d", n.Values[i]) })
}

func (v stringVisitor) VisitFloat(f *Float) {
	fmt.Fprintf(v.out, "<F%d", f.Width)
	v.writeValues(len(f.Bits), func(i int) { fmt.Fprintf(v.out, "0x%X", f.Bits[i]) })
}

func (v stringVisitor) writeValues(count int, write func(i int)) {
	n := count
	if n > maxPreviewElements {
		n = maxPreviewElements
	}
	for i := 0; i < n; i++ {
		v.out.WriteByte(' ')
		write(i)
	}
	if count > maxPreviewElements {
		fmt.Fprintf(v.out, " ...+%d", count-maxPreviewElements)
	}
	v.out.WriteByte('>')
}

// render is String()'s shared implementation, dispatched through Visit
// rather than a type switch.
func render(it Item) string {
	var b strings.Builder
	Visit(it, stringVisitor{out: &b})
	return b.String()
}
