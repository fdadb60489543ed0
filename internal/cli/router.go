package cli

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/doorman/handler"
	"github.com/dmitrymomot/doorman/pkg/clientip"
	"github.com/dmitrymomot/doorman/pkg/door"
	"github.com/dmitrymomot/doorman/pkg/environment"
	"github.com/dmitrymomot/doorman/pkg/httpserver"
	"github.com/dmitrymomot/doorman/pkg/logger"
	"github.com/dmitrymomot/doorman/pkg/ratelimiter"
	"github.com/dmitrymomot/doorman/pkg/requestid"
)

const tracerName = "github.com/dmitrymomot/doorman/internal/cli"

// routes is everything the router needs to know about the running process.
type routes struct {
	log         *slog.Logger
	environment environment.Environment
	doors       []*door.Door
	limiter     *ratelimiter.TokenBucket
	checks      []httpserver.Check
}

// newRouter mounts the health endpoints, one door per provider and a guarded
// /me/{provider} route that returns the login result. Door routes are rate
// limited per client when a limiter is set.
func newRouter(rt routes) http.Handler {
	if rt.log == nil {
		rt.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracing)
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Use(environment.Middleware(rt.environment))
	r.Use(accessLog(rt.log))

	r.NotFound(handler.Wrap(func(handler.Context) handler.Response {
		return handler.JSONError(handler.ErrNotFound)
	}))
	r.MethodNotAllowed(handler.Wrap(func(handler.Context) handler.Response {
		return handler.JSONError(handler.ErrMethodNotAllowed)
	}))

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(rt.log, rt.checks...))

	for _, d := range rt.doors {
		var mw []func(http.Handler) http.Handler
		if rt.limiter != nil {
			mw = append(mw, ratelimiter.Middleware(rt.limiter, ratelimiter.Prefixed(d.Provider(), ratelimiter.ByClientIP)))
		}
		r.With(mw...).Handle(d.Path(), d)
		r.With(d.Require).Get("/me/"+d.Provider(), whoami)
	}

	return r
}

// whoami renders the result a door stored in the request context.
var whoami = handler.Wrap(func(ctx handler.Context) handler.Response {
	res, ok := door.ResultFromContext(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	return handler.JSON(res)
})

// tracing starts a server span per request, continuing any trace the caller
// propagated.
func tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
			span.SetName(r.Method + " " + pattern)
		}
	})
}

// accessLog logs one line per request. The query string is left out since
// callbacks carry authorization codes in it.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	log = log.With(logger.Component("http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				logger.StatusCode(status),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
