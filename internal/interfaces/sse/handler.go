// Package sse serves the /sse heartbeat stream.
package sse

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"echo-server/internal/infrastructure/observability"

	"go.uber.org/zap"
)

// Config configures the heartbeat stream.
type Config struct {
	Interval time.Duration
	// KeepAlive sends a comment when no event was written for this long;
	// 0 disables it.
	KeepAlive time.Duration
	Retry     time.Duration
}

// Event is one Server-Sent Event.
type Event struct {
	ID    string
	Retry time.Duration
	Data  string
}

// WriteTo encodes e in the text/event-stream format.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", e.Retry.Milliseconds())
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Handler streams a numbered RFC 3339 timestamp every interval.
type Handler struct {
	config  Config
	metrics *observability.Collector
	logger  *zap.Logger
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates the /sse handler. metrics may be nil.
func NewHandler(config Config, metrics *observability.Collector, logger *zap.Logger) *Handler {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	return &Handler{
		config:  config,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "sse")),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Close ends every open stream. http.Server.Shutdown does not cancel
// in-flight requests, so the server calls this before shutting down.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ServeHTTP streams events until the client goes away or Close is called.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.SSEClients.Inc()
		defer h.metrics.SSEClients.Dec()
	}
	h.logger.Debug("SSE client connected", zap.String("remoteAddr", r.RemoteAddr))

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	var keepAlive <-chan time.Time
	var keepAliveTimer *time.Timer
	if h.config.KeepAlive > 0 {
		keepAliveTimer = time.NewTimer(h.config.KeepAlive)
		defer keepAliveTimer.Stop()
		keepAlive = keepAliveTimer.C
	}

	var counter uint64
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("SSE client disconnected", zap.String("remoteAddr", r.RemoteAddr))
			return
		case <-h.done:
			return
		case <-ticker.C:
			counter++
			event := Event{
				ID:    strconv.FormatUint(counter, 10),
				Retry: h.config.Retry,
				Data:  h.now().UTC().Format(time.RFC3339),
			}
			if _, err := event.WriteTo(w); err != nil {
				return
			}
			flusher.Flush()
			if h.metrics != nil {
				h.metrics.SSEEvents.Inc()
			}
			if keepAliveTimer != nil {
				keepAliveTimer.Reset(h.config.KeepAlive)
			}
		case <-keepAlive:
			if _, err := io.WriteString(w, ": tick\n\n"); err != nil {
				return
			}
			flusher.Flush()
			keepAliveTimer.Reset(h.config.KeepAlive)
		}
	}
}
