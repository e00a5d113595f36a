package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// RequestLogger writes one structured line per request, tagged with the
// trace id when a span is active.  Server errors log at error level, client
// errors at warn.
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the HTTP error handler write the response so the
				// status below is final
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			uid, role := Identity(c)
			entry := log.WithFields(logrus.Fields{
				"request_id": res.Header().Get(echo.HeaderXRequestID),
				"method":     req.Method,
				"path":       req.URL.Path,
				"route":      c.Path(),
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         c.RealIP(),
			})
			if sc := trace.SpanContextFromContext(req.Context()); sc.IsValid() {
				entry = entry.WithField("trace_id", sc.TraceID().String())
			}
			if uid != 0 {
				entry = entry.WithFields(logrus.Fields{"user_id": uid, "role": role})
			}
			switch {
			case res.Status >= 500:
				entry.WithError(err).Error("request failed")
			case res.Status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
			return nil
		}
	}
}
