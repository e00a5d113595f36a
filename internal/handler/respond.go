// Package handler exposes the booking core over HTTP.  Handlers translate
// requests into service calls and return taxonomy errors; ErrorHandler
// renders every failure with the same envelope.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
)

// errorBody is the envelope of every failed request.
type errorBody struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// ErrorHandler renders taxonomy errors with their mapped status and
// framework errors (unknown route, oversized body) with theirs.  Internal
// details are logged, never returned.
func ErrorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				"path":       c.Request().URL.Path,
			}).Error("request failed")
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.WithError(err).Warn("write error response")
		}
	}
}

func render(err error) (int, errorBody) {
	if ae, ok := apperr.As(err); ok {
		body := errorBody{Error: ae.Kind.String(), Message: ae.Message, Fields: ae.Fields}
		switch ae.Kind {
		case apperr.KindInternal:
			body.Message = "something went wrong, please try again"
		case apperr.KindConfiguration:
			body.Message = "server configuration error"
		}
		return apperr.HTTPStatus(ae.Kind), body
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		kind := "http_error"
		switch he.Code {
		case http.StatusNotFound:
			kind = apperr.KindNotFound.String()
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = apperr.KindSecurity.String()
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
			kind = apperr.KindValidation.String()
		}
		return he.Code, errorBody{Error: kind, Message: msg}
	}
	return http.StatusInternalServerError, errorBody{
		Error:   apperr.KindInternal.String(),
		Message: "something went wrong, please try again",
	}
}

// caller builds the booking identity from the auth middleware's context.
func caller(c echo.Context) booking.Caller {
	id, role := middleware.Identity(c)
	return booking.Caller{UserID: id, Role: role}
}

// bind decodes the JSON body, reporting malformed input as a validation
// error rather than Echo's plain 400.
func bind(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
