package secs1

import (
	"fmt"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// Reassembler accumulates decoded blocks in order and yields a complete
// message body once a block with EndBit set is accepted (spec.md §4.2).
type Reassembler struct {
	expectedDeviceID *uint16 // nil means "accept any device id on the first block"

	started bool
	done    bool

	first Header
	last  uint8
	body  []byte
}

// NewReassembler creates a Reassembler. If expectedDeviceID is non-nil,
// the first accepted block must carry that device id.
func NewReassembler(expectedDeviceID *uint16) *Reassembler {
	return &Reassembler{expectedDeviceID: expectedDeviceID}
}

// Accept feeds one decoded block into the reassembler.
func (r *Reassembler) Accept(h Header, data []byte) error {
	if r.done {
		return secserr.Wrap("secs1.Reassembler.Accept", secserr.ErrProtocolError, fmt.Errorf("message already complete"))
	}

	if !r.started {
		if r.expectedDeviceID != nil && h.DeviceID != *r.expectedDeviceID {
			return secserr.Wrap("secs1.Reassembler.Accept", secserr.ErrDeviceIDMismatch, fmt.Errorf("got device id %d, want %d", h.DeviceID, *r.expectedDeviceID))
		}
		if h.BlockNumber != 1 {
			return secserr.Wrap("secs1.Reassembler.Accept", secserr.ErrBlockSequenceErr, fmt.Errorf("first block number is %d, want 1", h.BlockNumber))
		}
		r.started = true
		r.first = h
		r.last = h.BlockNumber
		r.body = append(r.body, data...)
		if h.EndBit {
			r.done = true
		}
		return nil
	}

	if h.DeviceID != r.first.DeviceID ||
		h.SystemBytes != r.first.SystemBytes ||
		h.Stream != r.first.Stream ||
		h.Function != r.first.Function ||
		h.ReverseBit != r.first.ReverseBit ||
		h.WaitBit != r.first.WaitBit {
		return secserr.Wrap("secs1.Reassembler.Accept", secserr.ErrProtocolError, fmt.Errorf("block %d does not match message identity of block 1", h.BlockNumber))
	}
	if h.BlockNumber != r.last+1 {
		return secserr.Wrap("secs1.Reassembler.Accept", secserr.ErrBlockSequenceErr, fmt.Errorf("block number %d does not follow %d", h.BlockNumber, r.last))
	}

	r.last = h.BlockNumber
	r.body = append(r.body, data...)
	if h.EndBit {
		r.done = true
	}
	return nil
}

// HasMessage reports whether a block with EndBit=true has been accepted.
func (r *Reassembler) HasMessage() bool {
	return r.done
}

// Message returns the reassembled body and the identity header taken from
// the first block. It is only meaningful once HasMessage returns true.
func (r *Reassembler) Message() (Header, []byte) {
	return r.first, r.body
}

// Reset clears all accumulated state so the Reassembler can be reused for
// the next message.
func (r *Reassembler) Reset() {
	r.started = false
	r.done = false
	r.first = Header{}
	r.last = 0
	r.body = nil
}
