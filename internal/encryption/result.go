package encryption

import (
	"github.com/idelchi/modelseal/internal/container"
	"github.com/idelchi/modelseal/internal/integrity"
)

// EncryptResult represents the outcome of encrypting a single model.
type EncryptResult struct {
	// Output file path, empty for in-memory operations
	Output string

	// Key is the hex XOR key, or the hex AES key for hybrid containers
	Key string

	// Layout of the written container
	Layout container.Layout

	// Metadata embedded in the trailer
	Metadata container.Metadata

	// Size of the written container in bytes
	Size int64
}

// DecryptResult represents the outcome of decrypting a single container.
type DecryptResult struct {
	// Output file path, empty for in-memory operations
	Output string

	// Layout of the source container
	Layout container.Layout

	// Metadata read from the trailer
	Metadata container.Metadata

	// Verification compares the recomputed digest with the recorded one
	Verification integrity.Result

	// Size of the decrypted payload in bytes
	Size int64
}
