// Package std also covers the universal Stream 2 equipment-constant
// messages, supplementing spec.md's distilled scope with behavior present
// in original_source/include/secs/messages/s2.hpp (not excluded by any
// Non-goal).
package std

import (
	"github.com/wolimst/secs-core/pkg/item"
	"github.com/wolimst/secs-core/pkg/secserr"
)

// S2F13Request is "Equipment Constant Request" (host -> equipment):
// <L <U4 ECID> ...>.
type S2F13Request struct {
	ECIDs []uint32
}

// S2F13FromItem decodes an S2F13 body.
func S2F13FromItem(body item.Item) (S2F13Request, error) {
	list, ok := body.(*item.List)
	if !ok {
		return S2F13Request{}, secserr.Wrap("std.S2F13FromItem", secserr.ErrInvalidFormat, nil)
	}
	ecids := make([]uint32, len(list.Items))
	for i, elem := range list.Items {
		u, ok := elem.(*item.Uint)
		if !ok || u.Width != 4 || len(u.Values) != 1 {
			return S2F13Request{}, secserr.Wrap("std.S2F13FromItem", secserr.ErrInvalidFormat, nil)
		}
		ecids[i] = uint32(u.Values[0])
	}
	return S2F13Request{ECIDs: ecids}, nil
}

// ToItem renders the canonical <L <U4 ECID> ...> body.
func (r S2F13Request) ToItem() item.Item {
	items := make([]item.Item, len(r.ECIDs))
	for i, id := range r.ECIDs {
		items[i] = item.NewUint(4, uint64(id))
	}
	return item.NewList(items...)
}

// S2F14Response is "Equipment Constant Data" (equipment -> host):
// <L <A ECV> ...>, positionally aligned with the S2F13Request.ECIDs it
// answers.
type S2F14Response struct {
	ECVs []string
}

// S2F14FromItem decodes an S2F14 body.
func S2F14FromItem(body item.Item) (S2F14Response, error) {
	list, ok := body.(*item.List)
	if !ok {
		return S2F14Response{}, secserr.Wrap("std.S2F14FromItem", secserr.ErrInvalidFormat, nil)
	}
	ecvs := make([]string, len(list.Items))
	for i, elem := range list.Items {
		a, ok := elem.(*item.ASCII)
		if !ok {
			return S2F14Response{}, secserr.Wrap("std.S2F14FromItem", secserr.ErrInvalidFormat, nil)
		}
		ecvs[i] = a.Value
	}
	return S2F14Response{ECVs: ecvs}, nil
}

// ToItem renders the canonical <L <A ECV> ...> body.
func (r S2F14Response) ToItem() item.Item {
	items := make([]item.Item, len(r.ECVs))
	for i, v := range r.ECVs {
		items[i] = item.NewASCII(v)
	}
	return item.NewList(items...)
}
