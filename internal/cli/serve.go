package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/doorman/pkg/broker"
	"github.com/dmitrymomot/doorman/pkg/clientip"
	"github.com/dmitrymomot/doorman/pkg/config"
	"github.com/dmitrymomot/doorman/pkg/cookie"
	"github.com/dmitrymomot/doorman/pkg/door"
	"github.com/dmitrymomot/doorman/pkg/environment"
	"github.com/dmitrymomot/doorman/pkg/httpserver"
	"github.com/dmitrymomot/doorman/pkg/logger"
	"github.com/dmitrymomot/doorman/pkg/provider"
	"github.com/dmitrymomot/doorman/pkg/ratelimiter"
	"github.com/dmitrymomot/doorman/pkg/requestid"
	"github.com/dmitrymomot/doorman/pkg/seal"
)

// ErrNoProviders is returned when no provider has credentials configured.
var ErrNoProviders = errors.New("no provider has credentials configured")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the login broker HTTP server",
	Long: `Run the login broker HTTP server.

Every provider with credentials in the environment gets a door at
DOOR_PATH/<provider> and a guarded /me/<provider> route that returns the
normalized login result as JSON.

Credentials are read per provider, e.g. for github:

  GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET, GITHUB_SCOPES, GITHUB_CALLBACK_URL`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	env := environment.Parse(cfg.Environment)
	log := logger.New(
		logger.WithEnvironment(env, cfg.ServiceName),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	shutdownTracing, err := setupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("tracer shutdown failed", logger.Error(err))
		}
	}()

	sealer, err := seal.NewFromList(cfg.SealPasswords)
	if err != nil {
		return fmt.Errorf("seal passwords: %w", err)
	}

	var brokerCfg broker.Config
	if err := config.Load(&brokerCfg); err != nil {
		return err
	}
	b, err := broker.NewFromConfig(brokerCfg, sealer, broker.WithLogger(log))
	if err != nil {
		return err
	}

	var cookieCfg cookie.Config
	if err := config.Load(&cookieCfg); err != nil {
		return err
	}
	cookies, err := cookie.NewFromConfig(cookieCfg, sealer)
	if err != nil {
		return err
	}

	reg, err := loadRegistry(cfg.ProvidersFile)
	if err != nil {
		return err
	}

	var doorCfg door.Config
	if err := config.Load(&doorCfg); err != nil {
		return err
	}
	doors, err := buildDoors(reg, cfg.Providers, doorCfg, b, cookies, log)
	if err != nil {
		return err
	}
	if len(doors) == 0 {
		return ErrNoProviders
	}
	for _, d := range doors {
		log.Info("door mounted", logger.Provider(d.Provider()), slog.String("path", d.Path()))
	}

	var limiter *ratelimiter.TokenBucket
	if cfg.RateLimit > 0 {
		store := ratelimiter.NewMemoryStore()
		defer store.Close()
		limiter, err = ratelimiter.NewTokenBucket(store, ratelimiter.Config{
			Capacity:       cfg.RateLimit,
			RefillRate:     cfg.RateLimit,
			RefillInterval: cfg.RateLimitInterval,
		})
		if err != nil {
			return fmt.Errorf("door rate limit: %w", err)
		}
	}

	var serverCfg httpserver.Config
	if err := config.Load(&serverCfg); err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(serverCfg, httpserver.WithLogger(log))

	return srv.Run(ctx, newRouter(routes{
		log:         log,
		environment: env,
		doors:       doors,
		limiter:     limiter,
		checks:      readinessChecks(sealer, doors),
	}))
}

// buildDoors creates one door per provider. Only names lists restrict the
// set; an explicitly listed provider without credentials is an error, while
// unlisted builtins without credentials are skipped.
func buildDoors(reg *provider.Registry, only []string, cfg door.Config, b *broker.Broker, cookies *cookie.Manager, log *slog.Logger) ([]*door.Door, error) {
	names := reg.Names()
	explicit := len(only) > 0
	if explicit {
		names = slices.Compact(slices.Sorted(slices.Values(only)))
	}

	doors := make([]*door.Door, 0, len(names))
	for _, name := range names {
		d, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		creds, ok, err := loadCredentials(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			if explicit {
				return nil, fmt.Errorf("provider %s: %sCLIENT_ID is not set", name, envPrefix(name))
			}
			continue
		}

		dc := cfg
		dc.Path = joinPath(cfg.Path, name)
		if dc.CookieName == "" {
			dc.CookieName = door.DefaultCookieName
		}
		dc.CookieName += "_" + name
		dr, err := door.NewFromConfig(dc, b, cookies, d, creds, door.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		doors = append(doors, dr)
	}
	return doors, nil
}

func joinPath(base, name string) string {
	if base == "" {
		base = door.DefaultPath
	}
	return strings.TrimRight(base, "/") + "/" + name
}

// readinessChecks reports ready once sealing works and at least one door is
// mounted.
func readinessChecks(sealer *seal.Sealer, doors []*door.Door) []httpserver.Check {
	return []httpserver.Check{
		{
			Name: "seal",
			Func: func(context.Context) error {
				sealed, err := sealer.Seal([]byte("ping"))
				if err != nil {
					return err
				}
				_, err = sealer.Unseal(sealed)
				return err
			},
		},
		{
			Name: "providers",
			Func: func(context.Context) error {
				if len(doors) == 0 {
					return ErrNoProviders
				}
				return nil
			},
		},
	}
}
