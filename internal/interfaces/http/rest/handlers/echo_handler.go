package handlers

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"

	"echo-server/internal/service/echo"
	"echo-server/pkg/api"

	"go.uber.org/zap"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// EchoHandler reflects requests back to the client.
type EchoHandler struct {
	service     *echo.Service
	maxBodySize int64
	logger      *zap.Logger
}

// NewEchoHandler creates an echo handler. Bodies larger than maxBodySize
// are rejected; 0 means no limit.
func NewEchoHandler(service *echo.Service, maxBodySize int64, logger *zap.Logger) *EchoHandler {
	return &EchoHandler{
		service:     service,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Echo answers with the request envelope and 200.
func (h *EchoHandler) Echo(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)
}

// NotFound answers unmatched routes with the request envelope and 404.
func (h *EchoHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusNotFound)
}

func (h *EchoHandler) respond(w http.ResponseWriter, r *http.Request, status int) {
	body := r.Body
	if h.maxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.logger.Warn("Failed to read request body", zap.Error(err))
		api.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	env := h.service.Echo(requestView(r, data))
	api.Success(w, status, env)
}

// Index renders the HTML page describing the request.
func (h *EchoHandler) Index(w http.ResponseWriter, r *http.Request) {
	page := h.service.Index(requestView(r, nil))

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		h.logger.Error("Failed to render index", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	api.HTML(w, http.StatusOK, buf.Bytes())
}

func requestView(r *http.Request, body []byte) echo.Request {
	return echo.Request{
		Source: r.RemoteAddr,
		Method: r.Method,
		Path:   r.URL.Path,
		Host:   r.Host,
		Header: r.Header,
		Body:   body,
	}
}
