package handler

import (
	"context"
	"net/http"
)

// Context is the request context plus the request and its writer.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
}

type httpContext struct {
	context.Context
	w http.ResponseWriter
	r *http.Request
}

// NewContext binds w and r. The returned value carries r.Context().
func NewContext(w http.ResponseWriter, r *http.Request) Context {
	return &httpContext{Context: r.Context(), w: w, r: r}
}

func (c *httpContext) Request() *http.Request              { return c.r }
func (c *httpContext) ResponseWriter() http.ResponseWriter { return c.w }

// ContextKey is a named, pointer-identity context key.
type ContextKey struct{ name string }

func (k *ContextKey) String() string { return k.name }

// NewContextKey returns a fresh key; two keys with the same name differ.
//
//	var resultKey = handler.NewContextKey("door.result")
func NewContextKey(name string) *ContextKey {
	return &ContextKey{name: name}
}

// ContextValue returns the value stored under key, or the zero T when it is
// missing or of another type.
func ContextValue[T any](ctx context.Context, key any) T {
	v, _ := ContextValueOK[T](ctx, key)
	return v
}

// ContextValueOK is ContextValue reporting whether a T was found.
func ContextValueOK[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}
