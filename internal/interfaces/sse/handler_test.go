package sse

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"echo-server/internal/infrastructure/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventFormat(t *testing.T) {
	var buf bytes.Buffer
	_, err := Event{ID: "3", Retry: 500 * time.Millisecond, Data: "2024-01-01T00:00:00Z"}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "id: 3\nretry: 500\ndata: 2024-01-01T00:00:00Z\n\n", buf.String())

	buf.Reset()
	_, err = Event{Data: "a\nb"}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "data: a\ndata: b\n\n", buf.String())
}

func readEvent(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
}

func TestHandlerStreamsNumberedEvents(t *testing.T) {
	metrics := observability.NewCollector("test")
	h := NewHandler(Config{Interval: 10 * time.Millisecond, Retry: 500 * time.Millisecond}, metrics, zap.NewNop())
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	for i := 1; i <= 3; i++ {
		lines := readEvent(t, r)
		assert.Equal(t, []string{
			"id: " + strconv.Itoa(i),
			"retry: 500",
			"data: 2024-05-01T12:00:00Z",
		}, lines)
	}
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.SSEEvents), 3.0)
}

func TestHandlerSendsKeepAlive(t *testing.T) {
	h := NewHandler(Config{Interval: time.Hour, KeepAlive: 10 * time.Millisecond}, nil, zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, []string{": tick"}, lines)
}

func TestHandlerCloseEndsStreams(t *testing.T) {
	h := NewHandler(Config{Interval: time.Hour}, nil, zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	h.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = bufio.NewReader(resp.Body).ReadString('\n')
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after Close")
	}
}
