package handler

import (
	"errors"
	"net/http"
)

// HandlerFunc handles a request and returns the Response to render.
//
// Example:
//
//	h := handler.HandlerFunc(func(ctx handler.Context) handler.Response {
//		return handler.JSON(map[string]string{"status": "ok"})
//	})
type HandlerFunc func(ctx Context) Response

// Response renders itself to an http.ResponseWriter.
// Implementations set headers, status code, and write the body.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// ResponseFunc adapts a function to the Response interface.
type ResponseFunc func(w http.ResponseWriter, r *http.Request) error

func (f ResponseFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// ErrorHandler handles errors returned while rendering.
type ErrorHandler func(ctx Context, err error)

// Decorator wraps a HandlerFunc to add cross-cutting functionality.
// The first decorator in the list is the outermost wrapper.
type Decorator func(HandlerFunc) HandlerFunc

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	errorHandler ErrorHandler
	decorators   []Decorator
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithDecorators adds decorators to wrap the handler.
func WithDecorators(decorators ...Decorator) WrapOption {
	return func(c *wrapConfig) {
		c.decorators = append(c.decorators, decorators...)
	}
}

// DefaultErrorHandler renders err as a JSON error. HTTPError values keep
// their status code; anything else is a 500.
func DefaultErrorHandler(ctx Context, err error) {
	_ = JSONError(err).Render(ctx.ResponseWriter(), ctx.Request())
}

// Wrap converts a HandlerFunc to an http.HandlerFunc.
//
//	mux.Handle("/bell/door", handler.Wrap(door.Handle,
//		handler.WithErrorHandler(customErrorHandler),
//	))
func Wrap(h HandlerFunc, opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{errorHandler: DefaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	// Apply decorators in reverse order so the first one is outermost.
	final := h
	for i := len(cfg.decorators) - 1; i >= 0; i-- {
		final = cfg.decorators[i](final)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(w, r)

		response := final(ctx)
		if response == nil {
			cfg.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := response.Render(w, r); err != nil {
			if errors.Is(err, ErrResponseCommitted) {
				return
			}
			cfg.errorHandler(ctx, err)
		}
	}
}
