package hsms

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// Stream is the narrow bidirectional byte-stream surface Connection needs.
// A *net.TCPConn (or any net.Conn) satisfies it directly; an in-memory
// duplex pair is provided by DialMemory for tests and loopback use.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Connection frames Messages over a Stream: 4-byte big-endian length
// prefix, 10-byte header, body. Reads are bounded by T8 per spec.md §4.4;
// writes from concurrent callers are serialized so a partial frame from
// one writer can never interleave with another's.
type Connection struct {
	stream Stream
	t8     func() (context.Context, context.CancelFunc)

	writeMu sync.Mutex
}

// NewConnection wraps stream. withTimeout builds a per-read deadline
// context (typically context.WithTimeout(ctx, t8)); passing nil disables
// the T8 bound.
func NewConnection(stream Stream, withTimeout func() (context.Context, context.CancelFunc)) *Connection {
	return &Connection{stream: stream, t8: withTimeout}
}

// ReadFrame reads one length-prefixed frame, enforcing MaxBodyLen and (if
// configured) T8 inactivity timeout on each underlying read.
func (c *Connection) ReadFrame(ctx context.Context) (Message, error) {
	lenBuf := make([]byte, 4)
	if err := c.readFull(ctx, lenBuf); err != nil {
		return Message{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length < HeaderLen || length > HeaderLen+MaxBodyLen {
		return Message{}, secserr.Wrap("hsms.ReadFrame", secserr.ErrInvalidArgument, fmt.Errorf("frame length %d out of range", length))
	}

	rest := make([]byte, length)
	if err := c.readFull(ctx, rest); err != nil {
		return Message{}, err
	}

	var header [HeaderLen]byte
	copy(header[:], rest[:HeaderLen])
	body := rest[HeaderLen:]
	return DecodeMessage(header, body), nil
}

func (c *Connection) readFull(ctx context.Context, buf []byte) error {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := io.ReadFull(c.stream, buf)
		done <- result{n, err}
	}()

	readCtx := ctx
	var cancel context.CancelFunc
	if c.t8 != nil {
		readCtx, cancel = c.t8()
		defer cancel()
	}

	select {
	case r := <-done:
		if r.err != nil {
			if r.err == io.EOF || r.err == io.ErrUnexpectedEOF {
				return r.err
			}
			return secserr.Wrap("hsms.readFull", secserr.ErrInvalidArgument, r.err)
		}
		return nil
	case <-readCtx.Done():
		_ = c.stream.Close()
		if readCtx.Err() == context.DeadlineExceeded {
			return secserr.Wrap("hsms.readFull", secserr.ErrTimeout, readCtx.Err())
		}
		return secserr.Wrap("hsms.readFull", secserr.ErrCancelled, readCtx.Err())
	}
}

// WriteFrame serializes msg and writes it atomically relative to other
// WriteFrame calls on this Connection.
func (c *Connection) WriteFrame(ctx context.Context, msg Message) error {
	frame, err := msg.EncodeFrame()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := c.stream.Write(frame)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = c.stream.Close()
		return secserr.Wrap("hsms.WriteFrame", secserr.ErrCancelled, ctx.Err())
	}
}

// Close releases the underlying stream.
func (c *Connection) Close() error {
	return c.stream.Close()
}

// DialMemory returns two Connections sharing an in-memory duplex byte
// pipe (net.Pipe), used by tests and the loopback mode to exercise the
// full stack without sockets (spec.md §4.4).
func DialMemory() (a, b *Connection) {
	pa, pb := net.Pipe()
	return NewConnection(pa, nil), NewConnection(pb, nil)
}
