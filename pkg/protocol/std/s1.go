// Package std provides typed request/response helpers for the universal
// SECS-II Stream 1 messages, supplementing spec.md's distilled scope with
// behavior present in original_source/include/secs/messages/s1.hpp (not
// excluded by any Non-goal).
package std

import (
	"github.com/wolimst/secs-core/pkg/item"
	"github.com/wolimst/secs-core/pkg/secserr"
)

// S1F1Request is "Are You There" (host -> equipment), conventionally an
// empty list body.
type S1F1Request struct{}

// S1F1FromItem validates that body decodes to the empty-list S1F1 body.
func S1F1FromItem(body item.Item) (S1F1Request, error) {
	if list, ok := body.(*item.List); !ok || len(list.Items) != 0 {
		return S1F1Request{}, secserr.Wrap("std.S1F1FromItem", secserr.ErrInvalidFormat, nil)
	}
	return S1F1Request{}, nil
}

// ToItem renders the canonical empty-list S1F1 body.
func (S1F1Request) ToItem() item.Item {
	return item.NewList()
}

// S1F2Response is "On Line Data" (equipment -> host): <L <A MDLN> <A SOFTREV>>.
type S1F2Response struct {
	ModelName     string
	SoftwareRev   string
}

// S1F2FromItem decodes an S1F2 body.
func S1F2FromItem(body item.Item) (S1F2Response, error) {
	list, ok := body.(*item.List)
	if !ok || len(list.Items) != 2 {
		return S1F2Response{}, secserr.Wrap("std.S1F2FromItem", secserr.ErrInvalidFormat, nil)
	}
	mdln, ok1 := list.Items[0].(*item.ASCII)
	softrev, ok2 := list.Items[1].(*item.ASCII)
	if !ok1 || !ok2 {
		return S1F2Response{}, secserr.Wrap("std.S1F2FromItem", secserr.ErrInvalidFormat, nil)
	}
	return S1F2Response{ModelName: mdln.Value, SoftwareRev: softrev.Value}, nil
}

// ToItem renders the canonical <L <A MDLN> <A SOFTREV>> body.
func (r S1F2Response) ToItem() item.Item {
	return item.NewList(item.NewASCII(r.ModelName), item.NewASCII(r.SoftwareRev))
}
