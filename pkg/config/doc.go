// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - LoadEnv reads one or more .env files into the process environment.
//   - Load parses the environment into any struct using `env` field tags.
//   - Each struct type is parsed once per process and cached by value.
//
// # Usage
//
//	if err := config.LoadEnv(os.Getenv("DOORMAN_ENV_FILE")); err != nil {
//	    return err
//	}
//
//	var cfg door.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Later calls to Load for the same type are served from the cache. Tests
// that change the environment can call ResetCache or ForceReload.
//
// # Error Handling
//
//   - ErrParsingConfig: the environment could not be parsed into the struct.
//   - ErrLoadingEnvFile: an explicitly requested .env file could not be read.
//   - ErrNilPointer: a nil pointer was passed to Load or ForceReload.
package config
