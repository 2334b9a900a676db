package license

import (
	"encoding/base64"
	"fmt"

	"github.com/idelchi/modelseal/internal/errkind"
)

// timestampBytes expands ts to its low 32 bits in big-endian order.
func timestampBytes(ts int64) [4]byte {
	return [4]byte{byte(ts >> 24), byte(ts >> 16), byte(ts >> 8), byte(ts)} //nolint:gosec // truncation intended
}

func xorTimestamp(data []byte, ts int64) []byte {
	mask := timestampBytes(ts)

	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ mask[i%len(mask)]
	}

	return out
}

// Obfuscate XORs key with the timestamp bytes and returns the base64 encoding.
// The key is transmitted as its text form, so a hex key is obfuscated character by character.
func Obfuscate(key string, ts int64) string {
	return base64.StdEncoding.EncodeToString(xorTimestamp([]byte(key), ts))
}

// Recover reverses Obfuscate.
func Recover(xorResult string, ts int64) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(xorResult)
	if err != nil {
		return "", fmt.Errorf("%w: xorResult is not valid base64", errkind.ErrAuth)
	}

	return string(xorTimestamp(decoded, ts)), nil
}
