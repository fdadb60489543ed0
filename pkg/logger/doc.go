// Package logger builds *slog.Logger values the way every doorman binary
// wants them: JSON in production, text in development, a fixed set of
// service attributes, and request-scoped attributes pulled from the context
// at log time.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "doorman"),
//		logger.WithLevelName(os.Getenv("LOG_LEVEL")),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "handshake completed",
//		logger.Provider("github"),
//		logger.Outcome("AUTHENTICATED"),
//	)
//
// The attribute helpers in attr.go keep key names consistent across
// packages. Helpers that take an optional value (Error, StatusCode,
// ErrorCode, RequestID) return an empty attribute for the zero value, which
// slog drops.
package logger
