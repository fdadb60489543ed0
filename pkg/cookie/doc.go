// Package cookie provides an HTTP cookie manager with sealed values.
//
// It wraps net/http's http.Cookie with helpers for creating, reading and
// deleting cookies using a consistent set of default attributes, and for
// storing values that the client can hold but neither read nor alter.
//
// # Overview
//
// The Manager type is the entry point. It is initialised with a Sealer (see
// package seal) and a set of default cookie Options. Once created you can:
//
//   - Set(), Get(), Delete() – plain cookies
//   - Cookie(), Expired() – build cookies without writing them
//   - SetSealed(), GetSealed() – sealed cookies (integrity + privacy)
//
// # Usage
//
//	s, _ := seal.New(os.Getenv("SEAL_PASSWORD"))
//	man, err := cookie.New(s, cookie.WithSecure(true))
//	if err != nil { log.Fatal(err) }
//
//	http.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
//	    _ = man.SetSealed(w, "doorman", `{"nonce":"abc"}`)
//	})
//
// # Configuration
//
// The Config struct allows the defaults to be loaded from environment
// variables via github.com/caarlos0/env.
//
//	cfg := cookie.DefaultConfig()
//	_ = env.Parse(&cfg)
//	man, _ := cookie.NewFromConfig(cfg, sealer)
//
// # Error Handling
//
// ErrCookieNotFound is returned for missing or empty cookies and
// ErrInvalidValue (joined with the sealer's error) for values that fail to
// unseal. Callers can use errors.Is.
package cookie
