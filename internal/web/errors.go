package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler failure goes through respondError, which:
//   - logs the technical error with the request id
//   - maps it to a Spanish user message and code via core.MapError
//   - answers with an htmx fragment, JSON or plain text by request type

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/logging"
	"github.com/JonMunkholm/joyeria/internal/upstream"
	"github.com/JonMunkholm/joyeria/internal/web/templates"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errBadRequest  = errors.New("invalid request")
)

// ErrorResponse is the JSON body of API error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor picks the HTTP status of a handler error.
func statusFor(err error) int {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownTable), errors.Is(err, core.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrActionNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, core.ErrSubmitInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrNothingToExport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyExports), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &se):
		switch {
		case se.Code == http.StatusUnauthorized, se.Code == http.StatusForbidden, se.Code == http.StatusNotFound:
			return se.Code
		case se.Code == http.StatusTooManyRequests:
			return http.StatusTooManyRequests
		case se.Code >= 400 && se.Code < 500:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status statusFor picks.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs err and answers with a user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= 500 {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode, chimw.GetReqID(r.Context()))
	default:
		respondErrorHTML(w, userMsg, statusCode)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int, requestID ...string) {
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	if len(requestID) > 0 {
		resp.RequestID = requestID[0]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// respondErrorHTML writes a plain error response.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	text := msg.Message + " (Código: " + msg.Code + ")"
	if msg.Action != "" {
		text += ". " + msg.Action
	}
	http.Error(w, text, statusCode)
}

// renderErrorPartial renders an htmx error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// htmx ignores error responses unless told where to put them.
	w.Header().Set("HX-Reswap", "innerHTML")
	w.WriteHeader(statusCode)
	_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// isHTMX checks if the request is an htmx request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// clientIP is RemoteAddr without the port. TrustedRealIP has already
// replaced it for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
