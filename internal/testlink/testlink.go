// Package testlink provides an in-memory duplex pair implementing
// secs1.LinkPort, used to exercise the SECS-I state machine without a real
// serial device, following the MemoryLink pattern used by the original
// implementation's loopback examples.
package testlink

import (
	"context"
	"io"
)

// Pair returns two ends of an in-memory duplex byte pipe. Bytes written to
// one end are read from the other.
func Pair() (a, b *MemoryLink) {
	abToBa := make(chan byte, 4096)
	baToAb := make(chan byte, 4096)
	a = &MemoryLink{out: abToBa, in: baToAb, closed: make(chan struct{})}
	b = &MemoryLink{out: baToAb, in: abToBa, closed: make(chan struct{})}
	return a, b
}

// MemoryLink is one end of an in-memory byte pipe implementing
// secs1.LinkPort (kept dependency-free here so it can back other duplex
// byte-stream abstractions, e.g. an HSMS in-memory Connection, too).
type MemoryLink struct {
	out    chan<- byte
	in     <-chan byte
	closed chan struct{}
}

// WriteByte writes a single byte.
func (m *MemoryLink) WriteByte(ctx context.Context, b byte) error {
	select {
	case m.out <- b:
		return nil
	case <-m.closed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write writes p in full, one byte at a time.
func (m *MemoryLink) Write(ctx context.Context, p []byte) error {
	for _, b := range p {
		if err := m.WriteByte(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// ReadByte reads a single byte.
func (m *MemoryLink) ReadByte(ctx context.Context) (byte, error) {
	select {
	case b, ok := <-m.in:
		if !ok {
			return 0, io.EOF
		}
		return b, nil
	case <-m.closed:
		return 0, io.ErrClosedPipe
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close is idempotent and unblocks any pending Read/Write on this end.
func (m *MemoryLink) Close() error {
	closed := m.closed
	select {
	case <-closed:
	default:
		close(closed)
	}
	return nil
}
