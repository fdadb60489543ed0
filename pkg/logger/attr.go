package logger

import (
	"log/slog"
	"time"
)

// Error logs err under "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ErrorCode logs a stable error code under "error_code".
func ErrorCode(code string) slog.Attr {
	if code == "" {
		return slog.Attr{}
	}
	return slog.String("error_code", code)
}

func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

func Protocol(p string) slog.Attr {
	return slog.String("protocol", p)
}

// Outcome logs the terminal handshake state.
func Outcome(state string) slog.Attr {
	return slog.String("outcome", state)
}

// Endpoint logs a provider URL. Strip query strings that may carry
// credentials before passing it in.
func Endpoint(url string) slog.Attr {
	return slog.String("endpoint", url)
}

// StatusCode logs an HTTP status. Zero means no response was received.
func StatusCode(code int) slog.Attr {
	if code == 0 {
		return slog.Attr{}
	}
	return slog.Int("status_code", code)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
