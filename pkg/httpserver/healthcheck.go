package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/doorman/handler"
	"github.com/dmitrymomot/doorman/pkg/logger"
)

// Check is a named readiness dependency.
type Check struct {
	Name string
	Func func(context.Context) error
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always answers 200 with status "alive".
func LivenessHandler() http.HandlerFunc {
	return handler.Wrap(func(handler.Context) handler.Response {
		return handler.JSON(healthStatus{Status: "alive"})
	})
}

// ReadinessHandler runs every check and answers 200 with status "ready"
// when all pass, or 503 with the failing checks otherwise. Failure details
// are logged, not returned.
func ReadinessHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return handler.Wrap(func(ctx handler.Context) handler.Response {
		res := healthStatus{Status: "ready", Checks: make(map[string]string, len(checks))}
		for _, c := range checks {
			if err := c.Func(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", slog.String("check", c.Name), logger.Error(err))
				res.Status = "not_ready"
				res.Checks[c.Name] = "failed"
				continue
			}
			res.Checks[c.Name] = "ok"
		}
		if res.Status != "ready" {
			return handler.JSON(res, handler.WithJSONStatus(http.StatusServiceUnavailable))
		}
		return handler.JSON(res)
	})
}
