package door

// Config holds door settings loaded from the environment.
type Config struct {
	Path       string `env:"DOOR_PATH" envDefault:"/bell/door"`
	Location   string `env:"DOOR_LOCATION" envDefault:""`
	CookieName string `env:"DOOR_COOKIE_NAME" envDefault:"doorman"`
}

// DefaultConfig returns the defaults used when no environment is loaded.
func DefaultConfig() Config {
	return Config{
		Path:       DefaultPath,
		CookieName: DefaultCookieName,
	}
}

// Options converts non-zero config values into door options.
func (c Config) Options() []Option {
	var opts []Option
	if c.Path != "" {
		opts = append(opts, WithPath(c.Path))
	}
	if c.Location != "" {
		opts = append(opts, WithLocation(c.Location))
	}
	if c.CookieName != "" {
		opts = append(opts, WithCookieName(c.CookieName))
	}
	return opts
}
