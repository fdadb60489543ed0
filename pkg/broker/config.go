package broker

import "time"

// Config holds broker settings loaded from the environment.
type Config struct {
	Timeout               time.Duration `env:"BROKER_TIMEOUT" envDefault:"10s"`
	TransactionTTL        time.Duration `env:"BROKER_TRANSACTION_TTL" envDefault:"10m"`
	TolerateProfileErrors bool          `env:"BROKER_TOLERATE_PROFILE_ERRORS" envDefault:"false"`
}

// DefaultConfig returns the defaults used when no environment is loaded.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		TransactionTTL: 10 * time.Minute,
	}
}

// Options converts non-zero config values into broker options.
func (c Config) Options() []Option {
	var opts []Option
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.TransactionTTL > 0 {
		opts = append(opts, WithTransactionTTL(c.TransactionTTL))
	}
	if c.TolerateProfileErrors {
		opts = append(opts, WithTolerateProfileErrors(true))
	}
	return opts
}

// NewFromConfig creates a Broker from cfg; opts are applied after it.
func NewFromConfig(cfg Config, sealer Sealer, opts ...Option) (*Broker, error) {
	return New(sealer, append(cfg.Options(), opts...)...)
}
