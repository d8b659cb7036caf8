// Package secs1 implements the SECS-I (SEMI E4) block codec, multi-block
// reassembly, and the half-duplex link state machine that drives the
// ENQ/EOT/ACK/NAK handshake over a serial byte stream.
package secs1

import (
	"encoding/binary"
	"fmt"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// Link control bytes (spec.md §6).
const (
	ENQ byte = 0x05
	EOT byte = 0x04
	ACK byte = 0x06
	NAK byte = 0x15
)

// MaxDataLen is the largest payload a single block can carry.
const MaxDataLen = 244

// MaxDeviceID is the largest representable device id (15 bits).
const MaxDeviceID = 0x7FFF

// Header is the 10-byte SECS-I block header (spec.md §3).
type Header struct {
	ReverseBit  bool
	DeviceID    uint16 // 0..32767
	WaitBit     bool
	Stream      uint8 // 0..127
	Function    uint8
	EndBit      bool
	BlockNumber uint8 // 1..255
	SystemBytes uint32
}

// EncodeBlock validates header and data and returns the wire frame:
// Length(1B) | Header(10B) | Data | Checksum(2B BE).
func EncodeBlock(h Header, data []byte) ([]byte, error) {
	if h.DeviceID > MaxDeviceID {
		return nil, secserr.Wrap("secs1.EncodeBlock", secserr.ErrInvalidArgument, fmt.Errorf("device id %d exceeds %d", h.DeviceID, MaxDeviceID))
	}
	if len(data) > MaxDataLen {
		return nil, secserr.Wrap("secs1.EncodeBlock", secserr.ErrInvalidArgument, fmt.Errorf("data length %d exceeds %d", len(data), MaxDataLen))
	}

	length := 10 + len(data)
	frame := make([]byte, 1+length+2)
	frame[0] = byte(length)
	writeHeader(frame[1:11], h)
	copy(frame[11:11+len(data)], data)
	checksum := sum16(frame[1 : 11+len(data)])
	binary.BigEndian.PutUint16(frame[11+len(data):], checksum)
	return frame, nil
}

// DecodeBlock validates and parses a wire frame back into its Header and
// data view (a slice into frame, valid as long as frame is not mutated).
func DecodeBlock(frame []byte) (Header, []byte, error) {
	if len(frame) < 1+10+2 {
		return Header{}, nil, secserr.Wrap("secs1.DecodeBlock", secserr.ErrInvalidBlock, fmt.Errorf("frame too short: %d bytes", len(frame)))
	}
	length := int(frame[0])
	if length < 10 || length > 254 {
		return Header{}, nil, secserr.Wrap("secs1.DecodeBlock", secserr.ErrInvalidBlock, fmt.Errorf("length byte %d out of range [10,254]", length))
	}
	if len(frame) != 1+length+2 {
		return Header{}, nil, secserr.Wrap("secs1.DecodeBlock", secserr.ErrInvalidBlock, fmt.Errorf("frame length %d does not match declared length %d", len(frame), length))
	}

	headerBytes := frame[1:11]
	data := frame[11 : 1+length]
	wantChecksum := sum16(frame[1 : 1+length])
	gotChecksum := binary.BigEndian.Uint16(frame[1+length:])
	if wantChecksum != gotChecksum {
		return Header{}, nil, secserr.Wrap("secs1.DecodeBlock", secserr.ErrChecksumMismatch, fmt.Errorf("want 0x%04x got 0x%04x", wantChecksum, gotChecksum))
	}

	h, err := readHeader(headerBytes)
	if err != nil {
		return Header{}, nil, err
	}
	return h, data, nil
}

func writeHeader(dst []byte, h Header) {
	dst[0] = byte(h.DeviceID>>8) & 0x7F
	if h.ReverseBit {
		dst[0] |= 0x80
	}
	dst[1] = byte(h.DeviceID)
	dst[2] = h.Stream & 0x7F
	if h.WaitBit {
		dst[2] |= 0x80
	}
	dst[3] = h.Function
	dst[4] = 0
	if h.EndBit {
		dst[4] = 0x80
	}
	dst[5] = h.BlockNumber
	binary.BigEndian.PutUint32(dst[6:10], h.SystemBytes)
}

func readHeader(src []byte) (Header, error) {
	if src[4]&0x7F != 0 {
		return Header{}, secserr.Wrap("secs1.readHeader", secserr.ErrInvalidBlock, fmt.Errorf("reserved bits nonzero: 0x%02x", src[4]))
	}
	h := Header{
		ReverseBit:  src[0]&0x80 != 0,
		DeviceID:    (uint16(src[0]&0x7F) << 8) | uint16(src[1]),
		WaitBit:     src[2]&0x80 != 0,
		Stream:      src[2] & 0x7F,
		Function:    src[3],
		EndBit:      src[4]&0x80 != 0,
		BlockNumber: src[5],
		SystemBytes: binary.BigEndian.Uint32(src[6:10]),
	}
	return h, nil
}

func sum16(b []byte) uint16 {
	var sum uint32
	for _, c := range b {
		sum += uint32(c)
	}
	return uint16(sum)
}
