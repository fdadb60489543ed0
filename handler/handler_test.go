package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/doorman/handler"
)

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("renders response", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(ctx handler.Context) handler.Response {
			return handler.JSON(map[string]string{"path": ctx.Request().URL.Path})
		})

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"path":"/health"}}`, w.Body.String())
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		var got error
		h := handler.Wrap(
			func(handler.Context) handler.Response { return nil },
			handler.WithErrorHandler(func(_ handler.Context, err error) { got = err }),
		)

		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, got, handler.ErrNilResponse)
	})

	t.Run("render error goes to default handler", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(handler.Context) handler.Response {
			return handler.ResponseFunc(func(http.ResponseWriter, *http.Request) error {
				return handler.ErrForbidden
			})
		})

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("committed response is left alone", func(t *testing.T) {
		t.Parallel()
		called := false
		h := handler.Wrap(
			func(handler.Context) handler.Response {
				return handler.ResponseFunc(func(w http.ResponseWriter, _ *http.Request) error {
					w.WriteHeader(http.StatusTeapot)
					return handler.ErrResponseCommitted
				})
			},
			handler.WithErrorHandler(func(handler.Context, error) { called = true }),
		)

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.False(t, called)
	})

	t.Run("decorators run outermost first", func(t *testing.T) {
		t.Parallel()
		var order []string
		trace := func(name string) handler.Decorator {
			return func(next handler.HandlerFunc) handler.HandlerFunc {
				return func(ctx handler.Context) handler.Response {
					order = append(order, name)
					return next(ctx)
				}
			}
		}
		h := handler.Wrap(
			func(handler.Context) handler.Response { return handler.JSON(nil) },
			handler.WithDecorators(trace("first"), trace("second")),
		)

		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, []string{"first", "second"}, order)
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"http error", handler.NewHTTPError(http.StatusForbidden, "state_mismatch"), http.StatusForbidden, "state_mismatch"},
		{"wrapped http error", errors.Join(errors.New("cause"), handler.ErrGatewayTimeout), http.StatusGatewayTimeout, "gateway_timeout"},
		{"plain error", errors.New("secret detail"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			require.NoError(t, handler.JSONError(tt.err).Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

			var body handler.JSONResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotContains(t, w.Body.String(), "secret detail")
		})
	}
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	require.NoError(t, handler.Redirect("http://localhost:80/").Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://localhost:80/", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	require.NoError(t, handler.RedirectWithCode("/next", http.StatusSeeOther).Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestContextValue(t *testing.T) {
	t.Parallel()

	key := handler.NewContextKey("count")
	ctx := context.WithValue(context.Background(), key, 0)

	v, ok := handler.ContextValueOK[int](ctx, key)
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	_, ok = handler.ContextValueOK[string](ctx, key)
	assert.False(t, ok)
	assert.Equal(t, "", handler.ContextValue[string](ctx, handler.NewContextKey("missing")))
	assert.Equal(t, "count", key.String())
}

func TestNewContext(t *testing.T) {
	t.Parallel()

	key := handler.NewContextKey("k")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), key, "v"))
	w := httptest.NewRecorder()

	ctx := handler.NewContext(w, r)
	assert.Same(t, r, ctx.Request())
	assert.Equal(t, "v", ctx.Value(key))
	assert.NoError(t, ctx.Err())
}
