package encryption

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/idelchi/gogen/pkg/key"

	"github.com/idelchi/modelseal/internal/container"
	"github.com/idelchi/modelseal/internal/errkind"
)

// KeyResolver supplies the key needed to decrypt a container: the XOR key for xor containers,
// the unwrapped AES key for hybrid containers.
type KeyResolver interface {
	ResolveKey(ctx context.Context, meta container.Metadata) ([]byte, error)
}

// KeyResolverFunc adapts a function to KeyResolver.
type KeyResolverFunc func(ctx context.Context, meta container.Metadata) ([]byte, error)

// ResolveKey calls f.
func (f KeyResolverFunc) ResolveKey(ctx context.Context, meta container.Metadata) ([]byte, error) {
	return f(ctx, meta)
}

// StaticKey is a key known up front.
type StaticKey []byte

// ResolveKey returns the key, checking its length against the container mode.
func (k StaticKey) ResolveKey(_ context.Context, meta container.Metadata) ([]byte, error) {
	return checkKey(k, meta.Mode)
}

// PrivateKey unwraps the AES key of hybrid containers.
type PrivateKey struct {
	Key *rsa.PrivateKey
}

// ResolveKey unwraps the container's AES key. When the metadata names the wrapping public key,
// it must match the public half of Key.
func (p PrivateKey) ResolveKey(_ context.Context, meta container.Metadata) ([]byte, error) {
	if meta.Mode != container.ModeHybrid {
		return nil, fmt.Errorf("%w: a private key only decrypts hybrid containers", errkind.ErrCrypto)
	}

	if meta.RSAPubKey != "" {
		ref, err := PublicKeyDigest(&p.Key.PublicKey)
		if err != nil {
			return nil, err
		}

		if ref != meta.RSAPubKey {
			return nil, ErrUnwrap
		}
	}

	wrapped, err := meta.WrappedKey()
	if err != nil {
		return nil, err
	}

	aesKey, err := Unwrap(wrapped, p.Key)
	if err != nil {
		return nil, err
	}

	return checkKey(aesKey, meta.Mode)
}

// LicensedKey obtains a hex key from a license authority, typically license.Client.RequestKey.
type LicensedKey func(ctx context.Context) (string, error)

// ResolveKey requests the key and decodes it from hex.
func (f LicensedKey) ResolveKey(ctx context.Context, meta container.Metadata) ([]byte, error) {
	hexKey, err := f(ctx)
	if err != nil {
		return nil, err
	}

	decoded, err := key.FromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: license key is not valid hex", errkind.ErrCrypto)
	}

	return checkKey(decoded, meta.Mode)
}

// ParseHexKey decodes a hex key given on the command line.
func ParseHexKey(hexKey string) (StaticKey, error) {
	decoded, err := key.FromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not valid hex", errkind.ErrCrypto)
	}

	if len(decoded) == 0 {
		return nil, ErrEmptyKey
	}

	return StaticKey(decoded), nil
}

func checkKey(k []byte, mode container.Mode) ([]byte, error) {
	switch mode {
	case container.ModeXOR:
		if len(k) == 0 {
			return nil, ErrEmptyKey
		}
	case container.ModeHybrid:
		if len(k) != AESKeySize {
			return nil, ErrKeySize
		}
	default:
		return nil, fmt.Errorf("%w: unsupported encryption mode %q", errkind.ErrFormat, mode)
	}

	return k, nil
}
