package cookie

import (
	"errors"
	"net/http"
	"time"
)

// Sealer protects cookie values. *seal.Sealer satisfies it.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Unseal(sealed string) ([]byte, error)
}

type Manager struct {
	sealer   Sealer
	defaults Options
}

func New(sealer Sealer, opts ...Option) (*Manager, error) {
	if sealer == nil {
		return nil, ErrNoSealer
	}

	defaults := Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		sealer:   sealer,
		defaults: applyOptions(defaults, opts),
	}, nil
}

// Sealer exposes the sealer so callers can build tokens with the same keys.
func (m *Manager) Sealer() Sealer {
	return m.sealer
}

func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) {
	http.SetCookie(w, m.Cookie(name, value, opts...))
}

// Cookie builds the cookie Set would write without writing it.
func (m *Manager) Cookie(name, value string, opts ...Option) *http.Cookie {
	options := applyOptions(m.defaults, opts)

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   options.MaxAge,
		Secure:   options.Secure,
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
	}
}

func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	if c.Value == "" {
		return "", ErrCookieNotFound
	}
	return c.Value, nil
}

func (m *Manager) Delete(w http.ResponseWriter, name string, opts ...Option) {
	http.SetCookie(w, m.Expired(name, opts...))
}

// Expired builds a cookie that clears name on the client.
func (m *Manager) Expired(name string, opts ...Option) *http.Cookie {
	options := applyOptions(m.defaults, opts)

	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
		Secure:   options.Secure,
	}
}

// SetSealed seals value before writing it, making it tamper-evident and opaque.
func (m *Manager) SetSealed(w http.ResponseWriter, name, value string, opts ...Option) error {
	sealed, err := m.sealer.Seal([]byte(value))
	if err != nil {
		return err
	}
	m.Set(w, name, sealed, opts...)
	return nil
}

// GetSealed reads and unseals a cookie written by SetSealed.
func (m *Manager) GetSealed(r *http.Request, name string) (string, error) {
	sealed, err := m.Get(r, name)
	if err != nil {
		return "", err
	}

	plain, err := m.sealer.Unseal(sealed)
	if err != nil {
		return "", errors.Join(ErrInvalidValue, err)
	}
	return string(plain), nil
}
