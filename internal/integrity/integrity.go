// Package integrity recomputes and compares content digests of decrypted models.
//
// The digest is MD5, matching the "model_md5" metadata field written at encryption time.
// It detects corruption and wrong keys, not tampering.
package integrity

import (
	"crypto/md5" //nolint:gosec // content checksum, not a security primitive
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/idelchi/modelseal/internal/errkind"
)

// Result is the outcome of a digest comparison.
type Result struct {
	// Match reports whether the actual digest equals the expected one.
	Match bool

	// Expected is the digest recorded in the container metadata.
	Expected string

	// Actual is the digest of the decrypted payload.
	Actual string
}

// Err returns an ErrIntegrity error for a mismatch and nil otherwise.
func (r Result) Err() error {
	if r.Match {
		return nil
	}

	return fmt.Errorf("%w: md5 mismatch: expected %s, got %s", errkind.ErrIntegrity, r.Expected, r.Actual)
}

func (r Result) String() string {
	if r.Match {
		return "MD5 verified: " + r.Actual
	}

	return fmt.Sprintf("MD5 mismatch: expected %s, got %s", r.Expected, r.Actual)
}

// New returns the hash used for model digests.
func New() hash.Hash {
	return md5.New() //nolint:gosec // content checksum
}

// Sum returns the lowercase hex digest of data.
func Sum(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // content checksum

	return hex.EncodeToString(sum[:])
}

// Compare builds a Result from an already computed digest.
// The comparison ignores case and surrounding whitespace of the expected value.
func Compare(actual, expected string) Result {
	expected = strings.ToLower(strings.TrimSpace(expected))

	return Result{
		Match:    actual == expected,
		Expected: expected,
		Actual:   actual,
	}
}

// Verify hashes payload and compares the digest against expected.
func Verify(payload []byte, expected string) Result {
	return Compare(Sum(payload), expected)
}
