package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing opens a server span per request, continuing any incoming W3C
// trace context.  It must run before RequestLogger so the access line
// carries the trace id.
func Tracing(operation string) echo.MiddlewareFunc {
	return echo.WrapMiddleware(otelhttp.NewMiddleware(operation,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))
}
