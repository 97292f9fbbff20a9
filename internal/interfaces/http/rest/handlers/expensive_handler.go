package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"echo-server/internal/service/compute"
	apperrors "echo-server/pkg/errors"
	"echo-server/pkg/api"

	"go.uber.org/zap"
)

// ExpensiveHandler runs the computation pipeline.
type ExpensiveHandler struct {
	pipeline *compute.Pipeline
	logger   *zap.Logger
}

// NewExpensiveHandler creates the /expensive handler.
func NewExpensiveHandler(pipeline *compute.Pipeline, logger *zap.Logger) *ExpensiveHandler {
	return &ExpensiveHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// Compute reads prime_limit and fib_length from the query string, a form
// body or a JSON body, runs the pipeline and answers with JSON or, when the
// client prefers it, the plain text summary.
func (h *ExpensiveHandler) Compute(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("Handling expensive computation request")
	result, err := h.pipeline.Run(r.Context(), params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if api.PrefersText(r) {
		api.Text(w, http.StatusOK, result.Summary)
		return
	}
	api.Success(w, http.StatusOK, result)
}

func (h *ExpensiveHandler) parseParams(r *http.Request) (compute.Params, error) {
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/json" {
			var params compute.Params
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err != io.EOF {
				return compute.Params{}, apperrors.NewValidation("invalid JSON body: prime_limit and fib_length must be integers")
			}
			return params, nil
		}
	}

	if err := r.ParseForm(); err != nil {
		return compute.Params{}, apperrors.NewValidation("invalid form body")
	}
	return compute.ParseParams(r.Form.Get("prime_limit"), r.Form.Get("fib_length"))
}

// handleServiceError maps typed errors to HTTP responses.
func (h *ExpensiveHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		h.logger.Error("Unexpected error", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := appErr.HTTPStatus()
	switch {
	case apperrors.IsValidation(err):
		h.logger.Debug("Rejected computation request", zap.String("reason", appErr.Message))
		api.Error(w, status, appErr.Message)
	case apperrors.IsTimeout(err):
		h.logger.Warn("Computation timed out", zap.Error(err))
		api.Error(w, status, "computation timed out")
	default:
		h.logger.Error("Computation failed", zap.Error(err))
		api.Error(w, status, "Internal server error")
	}
}
