// Package api holds the pieces shared by the HTTP handler packages:
// error-to-status mapping and request validation.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"winsbygroup.com/licverify/internal/activation"
)

// Client-facing messages, compatible with the legacy endpoint.
const (
	MsgIncompleteRequest  = "incomplete request data"
	MsgInvalidBody        = "invalid request body"
	MsgStorageUnavailable = "license storage unavailable, try again later"
	MsgBindConflict       = "license activation conflict, retry the request"
	MsgInternal           = "internal server error"
)

// errorResponse is the error envelope for non-verification endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps known
// errors to status codes, logs unexpected ones, and renders {"error": msg}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := Resolve(err)
		if code >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Int("status", code).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

// Resolve maps err to an HTTP status and a message safe to show clients.
func Resolve(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, activation.ErrMalformedRequest):
		return http.StatusBadRequest, MsgIncompleteRequest
	case errors.Is(err, activation.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, MsgStorageUnavailable
	case errors.Is(err, activation.ErrBindConflict):
		return http.StatusConflict, MsgBindConflict
	}
	return http.StatusInternalServerError, MsgInternal
}
