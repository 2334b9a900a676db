package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/idelchi/modelseal/internal/errkind"
	"github.com/idelchi/modelseal/internal/fileutil"
)

// MinRSABits is the smallest accepted RSA modulus.
const MinRSABits = 2048

const (
	pemPublicKey     = "PUBLIC KEY"
	pemPrivateKey    = "PRIVATE KEY"
	pemRSAPrivateKey = "RSA PRIVATE KEY"
)

// GenerateKeyPair returns a new RSA key of the given size.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("%w: RSA keys must be at least %d bits, got %d", errkind.ErrCrypto, MinRSABits, bits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}

	return key, nil
}

// SaveKeyPair writes the public half as PKIX PEM and the private half as unencrypted PKCS#8 PEM.
// The private key file is readable by the owner only.
func SaveKeyPair(key *rsa.PrivateKey, publicPath, privatePath string) error {
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("encoding public key: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("encoding private key: %w", err)
	}

	const (
		publicPerm  = 0o644
		privatePerm = 0o600
	)

	if err := fileutil.WriteFile(publicPath, pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: publicDER}), publicPerm); err != nil {
		return fmt.Errorf("saving public key: %w", err)
	}

	if err := fileutil.WriteFile(privatePath, pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: privateDER}), privatePerm); err != nil {
		return fmt.Errorf("saving private key: %w", err)
	}

	return nil
}

// LoadPublicKey reads a PEM encoded RSA public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		if key, pkcs1Err := x509.ParsePKCS1PublicKey(block.Bytes); pkcs1Err == nil {
			return key, nil
		}

		return nil, fmt.Errorf("%w: parsing public key %q", errkind.ErrCrypto, path)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an RSA public key", errkind.ErrCrypto, path)
	}

	return key, nil
}

// LoadPrivateKey reads a PEM encoded RSA private key in PKCS#8 or PKCS#1 form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if block.Type == pemRSAPrivateKey {
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing private key %q", errkind.ErrCrypto, path)
		}

		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key %q", errkind.ErrCrypto, path)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an RSA private key", errkind.ErrCrypto, path)
	}

	return key, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: %q contains no PEM block", errkind.ErrCrypto, path)
	}

	return block, nil
}

// Wrap encrypts a symmetric key with RSA-OAEP using SHA-256 for the hash and MGF1.
// Repeated calls yield different ciphertexts.
func Wrap(key []byte, pub *rsa.PublicKey) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrapping key: %w", errkind.ErrCrypto, err)
	}

	return wrapped, nil
}

// Unwrap reverses Wrap. Every failure yields ErrUnwrap without further detail.
func Unwrap(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return nil, ErrUnwrap
	}

	return key, nil
}

// PublicKeyDigest identifies a public key by the sha256 digest of its PKIX encoding.
func PublicKeyDigest(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("encoding public key: %w", err)
	}

	return digest.FromBytes(der).String(), nil
}
