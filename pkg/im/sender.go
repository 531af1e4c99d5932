package im

import (
	"fmt"
	"net"
	"sync"

	"github.com/backkem/matter-reporting/pkg/im/message"
)

// ReportSender delivers messages from a read handler to its peer.
type ReportSender interface {
	SendReport(report *message.ReportDataMessage) error
	SendSubscribeResponse(resp *message.SubscribeResponseMessage) error
	SendStatusResponse(resp *message.StatusResponseMessage) error
}

// ConnSender writes each message as one frame to a connection.
// It is safe for concurrent use.
type ConnSender struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewConnSender creates a sender writing to conn.
func NewConnSender(conn net.Conn) *ConnSender {
	return &ConnSender{conn: conn}
}

// SendReport implements ReportSender.
func (s *ConnSender) SendReport(report *message.ReportDataMessage) error {
	return s.writeFrame(message.OpcodeReportData, report)
}

// SendSubscribeResponse implements ReportSender.
func (s *ConnSender) SendSubscribeResponse(resp *message.SubscribeResponseMessage) error {
	return s.writeFrame(message.OpcodeSubscribeResponse, resp)
}

// SendStatusResponse implements ReportSender.
func (s *ConnSender) SendStatusResponse(resp *message.StatusResponseMessage) error {
	return s.writeFrame(message.OpcodeStatusResponse, resp)
}

// SendReadRequest writes a read request. Used by controllers.
func (s *ConnSender) SendReadRequest(req *message.ReadRequestMessage) error {
	return s.writeFrame(message.OpcodeReadRequest, req)
}

// SendSubscribeRequest writes a subscribe request. Used by controllers.
func (s *ConnSender) SendSubscribeRequest(req *message.SubscribeRequestMessage) error {
	return s.writeFrame(message.OpcodeSubscribeRequest, req)
}

func (s *ConnSender) writeFrame(op message.Opcode, msg any) error {
	data, err := message.EncodeFrame(op, msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("im: write %s: %w", op, err)
	}
	return nil
}

// readFrame reads one frame from conn. buf must hold MaxFrameSize bytes.
func readFrame(conn net.Conn, buf []byte) (message.Frame, error) {
	n, err := conn.Read(buf)
	if err != nil {
		return message.Frame{}, err
	}
	return message.DecodeFrame(buf[:n])
}

var _ ReportSender = (*ConnSender)(nil)
