package protocol

import (
	"context"

	"github.com/wolimst/secs-core/pkg/hsms"
)

// hsmsBackend adapts an *hsms.Session (full duplex; correlation and the
// reader loop already live inside it) to the backend interface.
type hsmsBackend struct {
	sess      *hsms.Session
	sessionID uint16
}

func newHSMSBackend(sess *hsms.Session, sessionID uint16) *hsmsBackend {
	return &hsmsBackend{sess: sess, sessionID: sessionID}
}

func (b *hsmsBackend) send(ctx context.Context, msg DataMessage) error {
	wire := hsms.NewDataMessage(b.sessionID, msg.Stream, msg.Function, msg.WaitBit, msg.SystemBytes, msg.Body)
	return b.sess.Send(ctx, wire)
}

func (b *hsmsBackend) request(ctx context.Context, _ *Session, msg DataMessage) (DataMessage, error) {
	wire := hsms.NewDataMessage(b.sessionID, msg.Stream, msg.Function, true, msg.SystemBytes, msg.Body)
	rsp, err := b.sess.Request(ctx, wire)
	if err != nil {
		return DataMessage{}, err
	}
	return DataMessage{
		Stream:      rsp.Stream(),
		Function:    rsp.Function(),
		WaitBit:     rsp.WaitBit(),
		SystemBytes: rsp.SystemBytes,
		Body:        rsp.Body,
	}, nil
}

func (b *hsmsBackend) receive(ctx context.Context) (DataMessage, error) {
	msg, err := b.sess.ReceiveData(ctx)
	if err != nil {
		return DataMessage{}, err
	}
	return DataMessage{
		Stream:      msg.Stream(),
		Function:    msg.Function(),
		WaitBit:     msg.WaitBit(),
		SystemBytes: msg.SystemBytes,
		Body:        msg.Body,
	}, nil
}

func (b *hsmsBackend) stop() {
	b.sess.Stop()
}
