package container

import (
	"crypto/aes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/idelchi/modelseal/internal/errkind"
)

// Mode is the cipher mode recorded in the metadata.
type Mode string

const (
	// ModeXOR applies a repeating key to the payload.
	ModeXOR Mode = "xor"
	// ModeHybrid encrypts the payload with AES-256-CFB under an RSA-OAEP wrapped key.
	ModeHybrid Mode = "hybrid"
)

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	switch mode := Mode(s); mode {
	case ModeXOR, ModeHybrid:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unsupported encryption mode %q", errkind.ErrFormat, s)
	}
}

// Metadata is the JSON document embedded in the container trailer.
// It is written once at encryption time and never modified afterwards.
type Metadata struct {
	// Mode selects the cipher used for the body.
	Mode Mode `json:"mode"`

	// ModelMD5 is the hex MD5 digest of the original file.
	ModelMD5 string `json:"model_md5"`

	// Time is the encryption time in Unix seconds.
	Time int64 `json:"time"`

	// Author identifies who produced the container.
	Author string `json:"author"`

	// AESKeyRSA is the base64 RSA-OAEP wrapped AES key (hybrid only).
	AESKeyRSA string `json:"aes_key_rsa,omitempty"`

	// IV is the base64 16-byte CFB initialization vector (hybrid only).
	IV string `json:"iv,omitempty"`

	// RSAPubKey references the public key used for wrapping (hybrid only).
	RSAPubKey string `json:"rsa_pubkey,omitempty"`
}

// ParseMetadata decodes and validates raw trailer JSON.
func ParseMetadata(raw []byte) (Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: parsing metadata: %w", errkind.ErrFormat, err)
	}

	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}

	return meta, nil
}

// Validate checks that the metadata describes a decryptable container.
func (m Metadata) Validate() error {
	if _, err := ParseMode(string(m.Mode)); err != nil {
		return err
	}

	if m.ModelMD5 == "" {
		return fmt.Errorf("%w: metadata lacks model_md5", errkind.ErrFormat)
	}

	if m.Mode != ModeHybrid {
		return nil
	}

	if _, err := m.WrappedKey(); err != nil {
		return err
	}

	if _, err := m.InitVector(); err != nil {
		return err
	}

	return nil
}

// WrappedKey decodes AESKeyRSA.
func (m Metadata) WrappedKey() ([]byte, error) {
	if m.AESKeyRSA == "" {
		return nil, fmt.Errorf("%w: hybrid metadata lacks aes_key_rsa", errkind.ErrFormat)
	}

	wrapped, err := base64.StdEncoding.DecodeString(m.AESKeyRSA)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding aes_key_rsa: %w", errkind.ErrFormat, err)
	}

	return wrapped, nil
}

// InitVector decodes IV and checks its length.
func (m Metadata) InitVector() ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(m.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding iv: %w", errkind.ErrFormat, err)
	}

	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", errkind.ErrFormat, aes.BlockSize, len(iv))
	}

	return iv, nil
}

// String returns an indented JSON representation of the metadata.
func (m Metadata) String() string {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "invalid metadata"
	}

	return string(data)
}
