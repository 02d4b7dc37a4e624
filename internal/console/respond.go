package console

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/apiclient"
	"github.com/wolfeidau/fpconsole/internal/router"
	"github.com/wolfeidau/fpconsole/internal/session"
)

// Error codes of the JSON error body.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeRejected     = "rejected"
	CodeTransient    = "transient"
	CodeTimeout      = "timeout"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"

	msgRateLimited = "too many login attempts, please wait and try again"
)

// ErrorBody is the JSON body of every failed console request.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Redirect  string `json:"redirect,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// errorResponse maps a failed operation to a status and a user-safe body.
func errorResponse(err error) (int, ErrorBody) {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apiclient.KindUnauthorized:
			return http.StatusUnauthorized, ErrorBody{Code: CodeUnauthorized, Message: apiErr.Message, Redirect: router.LoginPath}
		case apiclient.KindTransient:
			var netErr net.Error
			if errors.As(apiErr.Err, &netErr) && netErr.Timeout() {
				return http.StatusGatewayTimeout, ErrorBody{Code: CodeTimeout, Message: apiErr.Message, Retryable: true}
			}
			return http.StatusInternalServerError, ErrorBody{Code: CodeTransient, Message: apiErr.Message, Retryable: true}
		default:
			return apiErr.StatusCode, ErrorBody{Code: CodeRejected, Message: apiErr.Message}
		}
	}

	if errors.Is(err, session.ErrNotAuthenticated) {
		return http.StatusUnauthorized, ErrorBody{Code: CodeUnauthorized, Message: apiclient.MsgUnauthorized, Redirect: router.LoginPath}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, ErrorBody{Code: CodeTimeout, Message: apiclient.MsgNetwork, Retryable: true}
	}

	return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: apiclient.MsgServerError}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	writeErrorBody(w, r, err, status, body)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, err error, status int, body ErrorBody) {
	event := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("code", body.Code).Int("status", status).Msg("request failed")

	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorBody(w, r, err, http.StatusBadRequest, ErrorBody{Code: CodeBadRequest, Message: apiclient.MsgBadRequest})
}
