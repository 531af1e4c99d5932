package im

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/backkem/matter-reporting/pkg/acl"
	"github.com/backkem/matter-reporting/pkg/im/message"
)

// ServeConn reads request frames from conn and dispatches them onto the
// engine's event loop until conn fails or ctx is done. Reports and
// responses go back over the same connection.
//
// subject is the identity of the peer; session establishment happens
// before a connection is handed to the engine.
func (e *Engine) ServeConn(ctx context.Context, conn net.Conn, subject acl.SubjectDescriptor) error {
	sender := NewConnSender(conn)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, message.MaxFrameSize)
	for {
		frame, err := readFrame(conn, buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, message.ErrMalformedFrame) {
				if e.log != nil {
					e.log.Warnf("dropping malformed frame: %v", err)
				}
				continue
			}
			return fmt.Errorf("im: read frame: %w", err)
		}
		e.loop.Post(func() { e.handleFrame(frame, sender, subject) })
	}
}

// handleFrame runs on the event loop.
func (e *Engine) handleFrame(frame message.Frame, sender *ConnSender, subject acl.SubjectDescriptor) {
	var err error
	switch frame.Opcode {
	case message.OpcodeReadRequest:
		err = e.handleReadRequest(frame, sender, subject)
	case message.OpcodeSubscribeRequest:
		err = e.handleSubscribeRequest(frame, sender, subject)
	case message.OpcodeStatusResponse:
		var msg message.StatusResponseMessage
		if err = frame.Decode(&msg); err == nil {
			err = e.OnStatusResponse(msg.SubscriptionID, msg.Status)
		}
		if err != nil {
			// A stray status response gets no answer.
			if e.log != nil {
				e.log.Debugf("status response: %v", err)
			}
			return
		}
	default:
		err = fmt.Errorf("%w: opcode %s", ErrInvalidAction, frame.Opcode)
	}

	if err == nil {
		return
	}
	if e.log != nil {
		e.log.Debugf("%s failed: %v", frame.Opcode, err)
	}
	if sendErr := sender.SendStatusResponse(&message.StatusResponseMessage{Status: ErrorToStatus(err)}); sendErr != nil && e.log != nil {
		e.log.Warnf("send status response: %v", sendErr)
	}
}

func (e *Engine) handleReadRequest(frame message.Frame, sender *ConnSender, subject acl.SubjectDescriptor) error {
	var msg message.ReadRequestMessage
	if err := frame.Decode(&msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	req, err := ReadRequestFromMessage(&msg, subject)
	if err != nil {
		return err
	}
	_, err = e.Read(req, sender)
	return err
}

func (e *Engine) handleSubscribeRequest(frame message.Frame, sender *ConnSender, subject acl.SubjectDescriptor) error {
	var msg message.SubscribeRequestMessage
	if err := frame.Decode(&msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	req, err := SubscribeRequestFromMessage(&msg, subject)
	if err != nil {
		return err
	}
	_, err = e.Subscribe(req, sender)
	return err
}
