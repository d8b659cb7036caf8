// Package hsms implements HSMS-SS (SEMI E37): message framing, the
// Connection abstraction over a TCP or in-memory duplex stream, and the
// Session selection state machine.
package hsms

import (
	"encoding/binary"
	"fmt"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// SType identifies an HSMS message's control/data type (spec.md §3 "HSMS
// Message Header").
type SType uint8

const (
	STypeData        SType = 0
	STypeSelectReq    SType = 1
	STypeSelectRsp    SType = 2
	STypeDeselectReq  SType = 3
	STypeDeselectRsp  SType = 4
	STypeLinktestReq  SType = 5
	STypeLinktestRsp  SType = 6
	STypeRejectReq    SType = 7
	STypeSeparateReq  SType = 9
)

func (t SType) String() string {
	switch t {
	case STypeData:
		return "data"
	case STypeSelectReq:
		return "select.req"
	case STypeSelectRsp:
		return "select.rsp"
	case STypeDeselectReq:
		return "deselect.req"
	case STypeDeselectRsp:
		return "deselect.rsp"
	case STypeLinktestReq:
		return "linktest.req"
	case STypeLinktestRsp:
		return "linktest.rsp"
	case STypeRejectReq:
		return "reject.req"
	case STypeSeparateReq:
		return "separate.req"
	default:
		return "unknown"
	}
}

// ControlSessionID is the reserved SessionID value (0xFFFF) used by all
// control messages.
const ControlSessionID uint16 = 0xFFFF

// MaxBodyLen is the largest HSMS message body (16 MiB), bounding frame
// Length to 10+MaxBodyLen (spec.md §3).
const MaxBodyLen = 16 * 1024 * 1024

// HeaderLen is the fixed 10-byte HSMS message header length.
const HeaderLen = 10

// Message is an HSMS-SS wire message: a 10-byte header plus body.
// Data-message fields (Stream/Function/WaitBit) and control-message fields
// (Status/ReasonCode) both live in Byte2/Byte3 of the header; accessors
// below interpret them per SType.
type Message struct {
	SessionID   uint16
	Byte2       byte
	Byte3       byte
	PType       byte
	SType       SType
	SystemBytes uint32
	Body        []byte
}

// IsData reports whether this message carries a SECS-II data body.
func (m Message) IsData() bool {
	return m.SType == STypeData
}

// Stream returns the data message's stream code (low 7 bits of Byte2).
func (m Message) Stream() uint8 {
	return m.Byte2 & 0x7F
}

// WaitBit reports the data message's wait bit (high bit of Byte2).
func (m Message) WaitBit() bool {
	return m.Byte2&0x80 != 0
}

// Function returns the data message's function code (Byte3).
func (m Message) Function() uint8 {
	return m.Byte3
}

// Status returns a control response's status/reason code (Byte3), e.g.
// Select.rsp's SelectStatus or Deselect.rsp's DeselectStatus.
func (m Message) Status() byte {
	return m.Byte3
}

// NewDataMessage builds a data message (spec.md §3 "Data Message").
func NewDataMessage(sessionID uint16, stream, function uint8, waitBit bool, systemBytes uint32, body []byte) Message {
	b2 := stream & 0x7F
	if waitBit {
		b2 |= 0x80
	}
	return Message{
		SessionID:   sessionID,
		Byte2:       b2,
		Byte3:       function,
		PType:       0,
		SType:       STypeData,
		SystemBytes: systemBytes,
		Body:        body,
	}
}

// NewSelectReq builds a Select.req control message.
func NewSelectReq(sessionID uint16, systemBytes uint32) Message {
	return Message{SessionID: sessionID, SType: STypeSelectReq, SystemBytes: systemBytes}
}

// NewSelectRsp builds a Select.rsp replying to req, carrying status.
func NewSelectRsp(req Message, status byte) Message {
	return Message{SessionID: req.SessionID, Byte3: status, SType: STypeSelectRsp, SystemBytes: req.SystemBytes}
}

// NewDeselectReq builds a Deselect.req control message.
func NewDeselectReq(sessionID uint16, systemBytes uint32) Message {
	return Message{SessionID: sessionID, SType: STypeDeselectReq, SystemBytes: systemBytes}
}

// NewDeselectRsp builds a Deselect.rsp replying to req, carrying status.
func NewDeselectRsp(req Message, status byte) Message {
	return Message{SessionID: req.SessionID, Byte3: status, SType: STypeDeselectRsp, SystemBytes: req.SystemBytes}
}

// NewLinktestReq builds a Linktest.req control message (always uses the
// reserved control SessionID).
func NewLinktestReq(systemBytes uint32) Message {
	return Message{SessionID: ControlSessionID, SType: STypeLinktestReq, SystemBytes: systemBytes}
}

// NewLinktestRsp builds a Linktest.rsp replying to req.
func NewLinktestRsp(req Message) Message {
	return Message{SessionID: ControlSessionID, SType: STypeLinktestRsp, SystemBytes: req.SystemBytes}
}

// NewSeparateReq builds a Separate.req control message.
func NewSeparateReq(sessionID uint16, systemBytes uint32) Message {
	return Message{SessionID: sessionID, SType: STypeSeparateReq, SystemBytes: systemBytes}
}

// NewRejectReq builds a Reject.req rejecting the given offending
// sessionID/pType/sType/systemBytes, per spec.md §4.6 reason codes:
// 1=unsupported sType, 2=unsupported pType, 3=transaction not open,
// 4=data message received outside selected state.
func NewRejectReq(sessionID uint16, pType, sType byte, systemBytes uint32, reasonCode byte) Message {
	byte2 := sType
	if reasonCode == 2 {
		byte2 = pType
	}
	return Message{
		SessionID:   sessionID,
		Byte2:       byte2,
		Byte3:       reasonCode,
		SType:       STypeRejectReq,
		SystemBytes: systemBytes,
	}
}

// EncodeHeader renders the message's 10-byte HSMS header.
func (m Message) EncodeHeader() [HeaderLen]byte {
	var h [HeaderLen]byte
	binary.BigEndian.PutUint16(h[0:2], m.SessionID)
	h[2] = m.Byte2
	h[3] = m.Byte3
	h[4] = m.PType
	h[5] = byte(m.SType)
	binary.BigEndian.PutUint32(h[6:10], m.SystemBytes)
	return h
}

// EncodeFrame renders the full wire frame: 4-byte big-endian length
// (10+len(Body)) followed by the header and body.
func (m Message) EncodeFrame() ([]byte, error) {
	if len(m.Body) > MaxBodyLen {
		return nil, secserr.Wrap("hsms.EncodeFrame", secserr.ErrInvalidArgument, fmt.Errorf("body length %d exceeds %d", len(m.Body), MaxBodyLen))
	}
	length := HeaderLen + len(m.Body)
	frame := make([]byte, 4+length)
	binary.BigEndian.PutUint32(frame[0:4], uint32(length))
	h := m.EncodeHeader()
	copy(frame[4:4+HeaderLen], h[:])
	copy(frame[4+HeaderLen:], m.Body)
	return frame, nil
}

// DecodeMessage parses a header+body (the frame's length prefix already
// consumed and validated by the Connection) into a Message.
func DecodeMessage(header [HeaderLen]byte, body []byte) Message {
	return Message{
		SessionID:   binary.BigEndian.Uint16(header[0:2]),
		Byte2:       header[2],
		Byte3:       header[3],
		PType:       header[4],
		SType:       SType(header[5]),
		SystemBytes: binary.BigEndian.Uint32(header[6:10]),
		Body:        body,
	}
}
