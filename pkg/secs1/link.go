package secs1

import "context"

// LinkPort is the narrow surface the SECS-I state machine needs from an
// underlying serial connection. It is shaped after serial.Port's
// Read/Write/Close surface, but every blocking call takes a context so it
// is cancellable and carries its own deadline — the concrete OS-specific
// binding (e.g. a real serial port driver) is an external collaborator
// and is never imported by this package.
type LinkPort interface {
	// WriteByte writes a single byte, e.g. a handshake control byte.
	WriteByte(ctx context.Context, b byte) error

	// Write writes p in full.
	Write(ctx context.Context, p []byte) error

	// ReadByte reads and returns a single byte, blocking until one byte
	// is available, ctx is done, or the link is closed.
	ReadByte(ctx context.Context) (byte, error)

	// Close releases the underlying resource. Close is idempotent.
	Close() error
}
