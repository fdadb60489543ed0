// Package httpserver runs an http.Handler with sane timeouts, lifecycle
// logging and graceful shutdown.
//
// Run blocks until its context is cancelled or the process receives
// SIGINT/SIGTERM, then shuts the server down within the configured
// deadline. Listen failures are wrapped with ErrStart and shutdown failures
// with ErrShutdown.
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log, httpserver.Check{Name: "seal", Func: sealCheck}))
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		return err
//	}
package httpserver
