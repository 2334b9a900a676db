// Package errkind defines the error taxonomy shared by the container, encryption and license packages.
//
// Every failure surfaced to a caller wraps exactly one of the kind sentinels,
// so callers can branch with errors.Is:
//
//   - ErrFormat: malformed container, missing trailer, truncated header
//   - ErrCrypto: invalid key material or a failed key unwrap
//   - ErrNetwork: the license authority could not be reached
//   - ErrAuth: the license authority refused the request or answered incompletely
//   - ErrIntegrity: the decrypted payload does not match the recorded digest
package errkind

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned for malformed or unrecognized containers.
	ErrFormat = errors.New("format error")
	// ErrCrypto is returned for invalid keys and failed key unwrapping.
	ErrCrypto = errors.New("crypto error")
	// ErrNetwork is returned when the license authority cannot be reached.
	ErrNetwork = errors.New("network error")
	// ErrAuth is returned when the license authority rejects a request.
	ErrAuth = errors.New("authorization error")
	// ErrIntegrity is returned when a decrypted payload fails digest verification.
	ErrIntegrity = errors.New("integrity error")

	// ErrMissingField is returned when a successful license response lacks key material.
	// It matches ErrAuth, but is never an *AuthError.
	ErrMissingField = fmt.Errorf("%w: response is missing required fields", ErrAuth)
)

// AuthError carries the message sent by the license authority with a rejection.
type AuthError struct {
	// Message is the server-provided reason.
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAuth, e.Message)
}

// Is reports whether target is ErrAuth.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth //nolint:errorlint,err113
}

// Kind returns the name of the kind err belongs to, or "error" for anything unclassified.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFormat):
		return "FormatError"
	case errors.Is(err, ErrCrypto):
		return "CryptoError"
	case errors.Is(err, ErrNetwork):
		return "NetworkError"
	case errors.Is(err, ErrAuth):
		return "AuthError"
	case errors.Is(err, ErrIntegrity):
		return "IntegrityError"
	default:
		return "error"
	}
}
