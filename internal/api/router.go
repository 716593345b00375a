package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GuidancePaths are the routes the guidance endpoint answers on. The second keeps
// existing clients that call the edge-function path working.
var GuidancePaths = []string{"/get-guidance", "/functions/v1/get-guidance"}

// RouterOptions collects what NewRouter needs.
type RouterOptions struct {
	Guidance *GuidanceHandler
	Logger   *slog.Logger
	// Ready reports backend readiness for /health. Nil means always ready.
	Ready func(ctx context.Context) error
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	// Middleware is installed ahead of the recover and request-logging middleware, e.g. sentryecho.
	Middleware []echo.MiddlewareFunc
}

// NewRouter builds the echo instance with middleware and routes.
func NewRouter(opts RouterOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// slog does the logging.
	e.Logger.SetOutput(io.Discard)
	e.HTTPErrorHandler = JSONErrorHandler(opts.Logger)

	for _, mw := range opts.Middleware {
		e.Use(mw)
	}
	e.Use(SlogPanicRecover(opts.Logger))
	e.Use(RequestLogger(opts.Logger))

	e.GET("/health", func(c echo.Context) error {
		if opts.Ready != nil {
			if err := opts.Ready(c.Request().Context()); err != nil {
				opts.Logger.ErrorContext(c.Request().Context(), "Readiness check failed", slog.Any("error", err))
				sentry.CaptureException(err)
				return c.String(http.StatusServiceUnavailable, "Not Ready")
			}
		}
		return c.String(http.StatusOK, "OK")
	})

	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	opts.Guidance.RegisterRoutes(e, GuidancePaths...)
	return e
}

// JSONErrorHandler writes errors that reach echo, such as recovered panics and unknown routes,
// in the same {"error": message} shape and with the same CORS headers as the guidance endpoint.
func JSONErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}

		setCORSHeaders(c)
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			logger.ErrorContext(c.Request().Context(), "Failed to write error response", slog.Any("error", err))
		}
	}
}
