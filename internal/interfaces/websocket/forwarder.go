package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"echo-server/internal/infrastructure/concurrency"
	"echo-server/internal/infrastructure/observability"
	apperrors "echo-server/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrForwarderFinished is returned when Run is called more than once.
var ErrForwarderFinished = errors.New("forwarder already finished")

// FrameWriter is the part of *websocket.Conn the forwarder writes through.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// Forwarder moves frames from a session's outbound queue to the socket.
type Forwarder struct {
	session      *Session
	conn         FrameWriter
	writeTimeout time.Duration
	metrics      *observability.Collector
	logger       *zap.Logger
	started      atomic.Bool
}

// NewForwarder creates the forwarder for session. metrics may be nil.
func NewForwarder(session *Session, conn FrameWriter, writeTimeout time.Duration, metrics *observability.Collector, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		session:      session,
		conn:         conn,
		writeTimeout: writeTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run writes queued frames in order until the queue is closed and drained,
// which returns nil after a close frame is sent. A failed write marks the
// session closing and returns a transport error. The outbound queue is
// closed whenever Run returns.
func (f *Forwarder) Run(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return ErrForwarderFinished
	}
	defer f.session.outbound.Close()

	for {
		frame, err := f.session.outbound.Pop(ctx)
		if errors.Is(err, concurrency.ErrQueueClosed) {
			f.writeClose()
			return nil
		}
		if err != nil {
			return err
		}

		if err := f.write(frame); err != nil {
			f.session.MarkClosing()
			if f.metrics != nil {
				f.metrics.SessionFailures.WithLabelValues("write").Inc()
			}
			return apperrors.NewTransport("write frame", err)
		}
		if f.metrics != nil {
			f.metrics.Frames.WithLabelValues("out").Inc()
		}
	}
}

func (f *Forwarder) write(frame Frame) error {
	if f.writeTimeout > 0 {
		if err := f.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout)); err != nil {
			return err
		}
	}
	return f.conn.WriteMessage(frame.Type, frame.Data)
}

// writeClose sends a close frame. Errors are expected when the peer closed
// first and are only logged.
func (f *Forwarder) writeClose() {
	code, reason := websocket.CloseNormalClosure, ""
	if f.session.Overflowed() {
		code, reason = websocket.CloseTryAgainLater, "outbound queue overflow"
		if f.metrics != nil {
			f.metrics.SessionFailures.WithLabelValues("overflow").Inc()
		}
		f.logger.Warn("Closing slow client", zap.String("session", f.session.Key()))
	}

	if err := f.write(Frame{Type: websocket.CloseMessage, Data: websocket.FormatCloseMessage(code, reason)}); err != nil {
		f.logger.Debug("Close frame not sent", zap.Error(err))
	}
}
