// Package protocol implements the unified, backend-agnostic protocol
// session façade (spec.md §4.6): a single request/response surface over
// either an HSMS-SS Session or a SECS-I StateMachine, with SystemBytes
// lifecycle, router-based dispatch, and auto-reply synthesis.
package protocol

// DataMessage is the protocol layer's backend-agnostic view of a SECS-II
// exchange (spec.md §3 "Data Message").
type DataMessage struct {
	Stream      uint8
	Function    uint8
	WaitBit     bool
	SystemBytes uint32
	Body        []byte
}

// IsPrimary reports whether Function is odd and nonzero.
func (m DataMessage) IsPrimary() bool {
	return m.Function%2 == 1 && m.Function != 0
}

// IsSecondary reports whether Function is even (including 0).
func (m DataMessage) IsSecondary() bool {
	return !m.IsPrimary()
}
