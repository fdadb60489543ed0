// Package seal turns small plaintext payloads into opaque, tamper-evident
// strings that are safe to place in cookies and URLs.
//
// A Sealer is created from one or more passwords. Every Seal call derives a
// fresh 32-byte AES-256 key from the first password and a random salt using
// HKDF-SHA-256, then encrypts the payload with AES-GCM. The salt and nonce are
// prepended to the ciphertext so the sealed value is self-contained.
//
// # Key rotation
//
// Only the first password is used for sealing. Unseal tries every configured
// password in order, so values sealed with a retired password remain readable
// until it is removed from the list.
//
// # Usage
//
//	import "github.com/dmitrymomot/doorman/pkg/seal"
//
//	s, err := seal.New(os.Getenv("SEAL_PASSWORD"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sealed, err := s.Seal([]byte(`{"nonce":"abc"}`))
//	plain, err := s.Unseal(sealed)
//
// # Error Handling
//
// Unseal returns ErrInvalidFormat for values that are not sealed strings at
// all and ErrUnsealFailed when authentication fails with every password
// (tampered value, unknown password). Both are safe to treat as "no value".
package seal
