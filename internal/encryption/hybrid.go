package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/tink-crypto/tink-go/v2/subtle/random"

	"github.com/idelchi/modelseal/internal/errkind"
)

const (
	// AESKeySize is the AES-256 key size.
	AESKeySize = 32
	// IVSize is the CFB initialization vector size.
	IVSize = aes.BlockSize
	// XORKeySize is the size of generated XOR keys.
	XORKeySize = 16
)

// GenerateXORKey returns a random XOR key of XORKeySize bytes.
func GenerateXORKey() []byte {
	return random.GetRandomBytes(XORKeySize)
}

// GenerateAESKey returns a fresh AES-256 key. Keys are generated per container and never reused.
func GenerateAESKey() []byte {
	return random.GetRandomBytes(AESKeySize)
}

// GenerateIV returns a fresh CFB initialization vector.
func GenerateIV() []byte {
	return random.GetRandomBytes(IVSize)
}

// NewCFBEncrypter returns an AES-256-CFB encrypting stream.
func NewCFBEncrypter(key, iv []byte) (cipher.Stream, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}

	return cipher.NewCFBEncrypter(block, iv), nil //nolint:staticcheck // CFB is the container format
}

// NewCFBDecrypter returns an AES-256-CFB decrypting stream.
func NewCFBDecrypter(key, iv []byte) (cipher.Stream, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}

	return cipher.NewCFBDecrypter(block, iv), nil //nolint:staticcheck // CFB is the container format
}

func newBlock(key, iv []byte) (cipher.Block, error) {
	if len(key) != AESKeySize {
		return nil, ErrKeySize
	}

	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: IV must be %d bytes", errkind.ErrCrypto, IVSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %w", errkind.ErrCrypto, err)
	}

	return block, nil
}
