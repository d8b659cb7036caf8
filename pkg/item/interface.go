// Package item implements the SECS-II (SEMI E5) self-describing data item
// tagged union and its bounded-resource binary codec.
package item

// Item is a SECS-II data item: a closed union over the 14 variants in
// Kind. Concrete types are List, ASCII, Binary, Boolean, Int, Uint, and
// Float; Int/Uint carry a Width distinguishing their 4 bit-widths each, and
// Float a Width distinguishing its 2. The isItem method seals the union to
// this package's types.
type Item interface {
	// Kind reports which of the 14 variants this item is.
	Kind() Kind

	// Size reports the element count: the number of primitive values for
	// numeric/boolean/binary variants, the number of bytes for ASCII, or
	// the number of children for List.
	Size() int

	// Equal reports whether other is the same Kind with identical
	// contents. Float comparison is bitwise, per spec.md §3.
	Equal(other Item) bool

	// String renders a bounded-length debug preview, for logging. It is
	// not a pretty-printer: long arrays and strings are elided.
	String() string

	isItem()
}
