package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/doorman/pkg/broker"
	"github.com/dmitrymomot/doorman/pkg/provider"
)

// appConfig holds process-wide settings for the server.
type appConfig struct {
	ServiceName   string   `env:"DOORMAN_SERVICE_NAME" envDefault:"doorman"`
	Environment   string   `env:"LOG_ENV" envDefault:"development"`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:""`
	ProvidersFile string   `env:"DOORMAN_PROVIDERS_FILE" envDefault:""`
	Providers     []string `env:"DOORMAN_PROVIDERS" envSeparator:","`
	SealPasswords string   `env:"SEAL_PASSWORDS,required"`
	OTLPEndpoint  string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// RateLimit caps door requests per client and interval; 0 disables it.
	RateLimit         int           `env:"DOOR_RATE_LIMIT" envDefault:"60"`
	RateLimitInterval time.Duration `env:"DOOR_RATE_LIMIT_INTERVAL" envDefault:"1m"`
}

// credentialsConfig is read once per provider under the provider's prefix,
// e.g. GITHUB_CLIENT_ID.
type credentialsConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	CallbackURL  string   `env:"CALLBACK_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// envPrefix returns the environment prefix for a provider name.
func envPrefix(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name)) + "_"
}

// loadCredentials reads client credentials for the named provider.
// A provider without a client id is reported as not configured.
func loadCredentials(name string) (broker.Credentials, bool, error) {
	var c credentialsConfig
	if err := env.ParseWithOptions(&c, env.Options{Prefix: envPrefix(name)}); err != nil {
		return broker.Credentials{}, false, fmt.Errorf("credentials for %s: %w", name, err)
	}
	if c.ClientID == "" {
		return broker.Credentials{}, false, nil
	}
	return broker.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		CallbackURL:  c.CallbackURL,
		Scopes:       c.Scopes,
	}, true, nil
}

// loadRegistry returns the builtin providers merged with those declared in
// file. File entries replace builtins of the same name.
func loadRegistry(file string) (*provider.Registry, error) {
	reg, err := provider.NewRegistry(provider.Builtin()...)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return reg, nil
	}
	ds, err := provider.LoadFile(file)
	if err != nil {
		return nil, err
	}
	for _, d := range ds {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
