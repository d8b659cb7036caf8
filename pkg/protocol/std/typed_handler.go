package std

import (
	"github.com/wolimst/secs-core/pkg/item"
	"github.com/wolimst/secs-core/pkg/router"
)

// Message is the constraint a typed request/response pair must satisfy to
// back a TypedHandler, mirroring the intent of
// original_source/include/secs/protocol/typed_handler.hpp's SecsMessage
// concept without its C++ template machinery.
type Message[T any] interface {
	ToItem() item.Item
}

// DecodeFunc decodes a raw Item body into a typed request, or reports a
// decode failure.
type DecodeFunc[Req any] func(item.Item) (Req, error)

// TypedHandler adapts a typed callback (decoded request in, typed response
// out) into a router.Handler: it decodes the inbound body with decode,
// invokes fn, and encodes the typed response back to wire bytes.
func TypedHandler[Req any, Rsp Message[Rsp]](decode DecodeFunc[Req], fn func(Req) (Rsp, error)) router.Handler {
	return func(body []byte) ([]byte, error) {
		root, _, err := item.Decode(body)
		if err != nil {
			return nil, err
		}
		req, err := decode(root)
		if err != nil {
			return nil, err
		}
		rsp, err := fn(req)
		if err != nil {
			return nil, err
		}
		return item.Encode(rsp.ToItem())
	}
}
