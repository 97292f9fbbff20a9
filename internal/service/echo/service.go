// Package echo builds the responses that reflect a request back to its sender.
package echo

import (
	"net/http"
	"os"
	"sort"
	"strings"

	"echo-server/internal/infrastructure/observability"

	"go.uber.org/zap"
)

// Header is one name/value pair. It encodes as a two element JSON array.
type Header [2]string

// Request is the transport independent view of an inbound request.
type Request struct {
	Source string
	Method string
	Path   string
	Host   string
	Header http.Header
	Body   []byte
}

// Envelope is the JSON document returned by echo routes.
type Envelope struct {
	Source  string   `json:"source"`
	Method  string   `json:"method"`
	Headers []Header `json:"headers"`
	Path    string   `json:"path"`
	Body    *string  `json:"body,omitempty"`
	Server  string   `json:"server"`
}

// IndexPage is the model rendered by the HTML index.
type IndexPage struct {
	Source  string
	Headers []Header
	Server  string
}

// Service builds envelopes and counts echoed requests.
type Service struct {
	hostname string
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewService creates an echo service. metrics may be nil.
func NewService(metrics *observability.Collector, logger *zap.Logger) *Service {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	return &Service{
		hostname: hostname,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "echo")),
	}
}

// Hostname returns the name reported in the server field.
func (s *Service) Hostname() string {
	return s.hostname
}

// Echo records the request and returns its envelope. Bodies are echoed as
// text; invalid UTF-8 is replaced when encoded.
func (s *Service) Echo(req Request) *Envelope {
	env := &Envelope{
		Source:  source(req.Source),
		Method:  req.Method,
		Headers: Headers(req.Host, req.Header),
		Path:    req.Path,
		Server:  s.hostname,
	}
	if len(req.Body) > 0 {
		body := strings.ToValidUTF8(string(req.Body), "�")
		env.Body = &body
	}

	s.record(req.Method)
	s.logger.Info("Handled request",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("body_bytes", len(req.Body)),
	)
	return env
}

// Index records a GET and returns the index page model.
func (s *Service) Index(req Request) IndexPage {
	s.record(http.MethodGet)
	return IndexPage{
		Source:  source(req.Source),
		Headers: Headers(req.Host, req.Header),
		Server:  s.hostname,
	}
}

func (s *Service) record(method string) {
	if s.metrics != nil {
		s.metrics.IncEcho(method)
	}
}

// Headers flattens h into lower-case name/value pairs sorted by name. The
// Host header, which net/http moves out of the map, is put back.
func Headers(host string, h http.Header) []Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Header, 0, len(h)+1)
	if host != "" && h.Get("Host") == "" {
		out = append(out, Header{"host", host})
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, v := range h[name] {
			out = append(out, Header{lower, v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func source(addr string) string {
	if addr == "" {
		return "unknown"
	}
	return addr
}
