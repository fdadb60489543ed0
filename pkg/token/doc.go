// Package token serialises small typed records into opaque, expiring strings.
//
// A token is a JSON envelope holding the payload and an absolute expiry
// (Unix seconds) that is sealed by a Sealer, typically *seal.Sealer. The
// package knows nothing about what the payload means; it only guarantees that
// a decoded payload was produced by a holder of the sealing password and has
// not outlived its TTL.
//
// # Usage
//
//	type state struct {
//	    Nonce string `json:"nonce"`
//	    Next  string `json:"next"`
//	}
//
//	s, _ := seal.New(password)
//	tok, err := token.GenerateToken(state{Nonce: "abc", Next: "/"}, s, 10*time.Minute)
//	st, err := token.ParseToken[state](tok, s)
//
// # Error Handling
//
// ParseToken returns ErrInvalidToken for anything that cannot be unsealed or
// decoded and ErrTokenExpired when the envelope's expiry has passed. The
// underlying cause is joined to the sentinel.
package token
