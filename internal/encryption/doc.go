// Package encryption implements the cipher engine and key management of modelseal containers.
//
// Two modes are supported. XOR applies a repeating key to the payload and is its own inverse.
// Hybrid encrypts the payload with AES-256-CFB under a fresh per-file key and IV, and stores the
// key wrapped with RSA-OAEP (SHA-256) in the container metadata.
//
// Payloads are streamed in fixed-size chunks through a single cipher.Stream, so memory use is
// bounded by the chunk size and the keystream continues across chunk boundaries.
package encryption
