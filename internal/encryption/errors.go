package encryption

import (
	"fmt"

	"github.com/idelchi/modelseal/internal/errkind"
)

var (
	// ErrEmptyKey is returned for zero-length XOR keys.
	ErrEmptyKey = fmt.Errorf("%w: key must not be empty", errkind.ErrCrypto)
	// ErrKeySize is returned for AES keys that are not 32 bytes.
	ErrKeySize = fmt.Errorf("%w: AES-256 requires a %d-byte key", errkind.ErrCrypto, AESKeySize)
	// ErrUnwrap is the only error reported for failed key unwrapping.
	ErrUnwrap = fmt.Errorf("%w: unable to unwrap key", errkind.ErrCrypto)
)
