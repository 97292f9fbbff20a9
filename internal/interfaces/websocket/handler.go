package websocket

import (
	"context"
	"net/http"
	"time"

	"echo-server/internal/infrastructure/concurrency"
	"echo-server/internal/infrastructure/observability"
	apperrors "echo-server/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandlerConfig configures the connection handler.
type HandlerConfig struct {
	ReadLimit       int64
	ReadBufferSize  int
	WriteBufferSize int
	WriteTimeout    time.Duration
	// PingInterval enables keep-alive pings; 0 disables them.
	PingInterval time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// Handler upgrades requests and runs one echo session per connection.
type Handler struct {
	manager  *Manager
	upgrader websocket.Upgrader
	config   HandlerConfig
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewHandler creates the /ws handler. metrics may be nil.
func NewHandler(manager *Manager, config HandlerConfig, metrics *observability.Collector, logger *zap.Logger) *Handler {
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     checkOrigin,
		},
		config:  config,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "websocket")),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	h.serve(conn, r.RemoteAddr)
}

func (h *Handler) serve(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()

	key := ""
	if remoteAddr != "" {
		key = KeyPrefix + remoteAddr
	}
	session, err := h.manager.Create(key)
	if err != nil {
		h.logger.Error("Failed to create session", zap.Error(err), zap.String("remoteAddr", remoteAddr))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(time.Second))
		return
	}

	logger := h.logger.With(zap.String("session", session.Key()))
	logger.Info("WebSocket session started", zap.String("remoteAddr", remoteAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forwarder := NewForwarder(session, conn, h.config.WriteTimeout, h.metrics, logger)
	forwarding := concurrency.Go(ctx, "forwarder", func(ctx context.Context) error {
		err := forwarder.Run(ctx)
		// Unblocks the read loop when the forwarder stops first.
		conn.Close()
		return err
	})

	if h.config.PingInterval > 0 {
		pongWait := 2 * h.config.PingInterval
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go h.keepAlive(ctx, conn, logger)
	}

	h.readLoop(conn, session, logger)

	h.manager.Terminate(session)
	if err := forwarding.Wait(); err != nil {
		if apperrors.IsTransport(err) {
			logger.Info("WebSocket write failed", zap.Error(err))
		} else {
			logger.Error("Forwarder stopped unexpectedly", zap.Error(err))
		}
	}

	logger.Info("WebSocket session ended")
}

// readLoop dispatches inbound frames until the connection fails or closes.
func (h *Handler) readLoop(conn *websocket.Conn, session *Session, logger *zap.Logger) {
	if h.config.ReadLimit > 0 {
		conn.SetReadLimit(h.config.ReadLimit)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) && session.State() == StateActive {
				logger.Warn("WebSocket read error", zap.Error(err))
				if h.metrics != nil {
					h.metrics.SessionFailures.WithLabelValues("read").Inc()
				}
			}
			session.MarkClosing()
			return
		}

		if h.metrics != nil {
			h.metrics.Frames.WithLabelValues("in").Inc()
		}
		if err := h.manager.Dispatch(session, Frame{Type: messageType, Data: data}); err != nil {
			logger.Debug("Dropping frame", zap.Error(err))
		}
	}
}

// keepAlive pings the peer until ctx is cancelled. WriteControl may run
// concurrently with the forwarder's writes.
func (h *Handler) keepAlive(ctx context.Context, conn *websocket.Conn, logger *zap.Logger) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if h.config.WriteTimeout <= 0 {
				deadline = time.Now().Add(10 * time.Second)
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
