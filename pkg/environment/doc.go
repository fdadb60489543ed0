// Package environment names the deployment environment a process runs in
// and carries it through request contexts.
//
// Parse maps the usual spellings ("prod", "stage", "dev") onto the
// Environment constants. Middleware stores the value on every request so
// handlers can ask IsProduction(ctx) without threading configuration
// through.
//
//	r.Use(environment.Middleware(environment.Parse(os.Getenv("LOG_ENV"))))
package environment
