// Package container reads and writes encrypted model containers.
//
// Two layouts exist:
//
//	flagged:    [16-byte flag][ciphertext][trailer]
//	preserving: [8-byte LE length L][L bytes structural header][ciphertext][trailer]
//
// The preserving layout keeps a safetensors-style header readable by generic tools;
// it is detected structurally since no flag is embedded.
//
// The trailer is the literal marker "__META__" followed by the JSON metadata.
// Containers written by this package additionally end with an 8-byte footer
// ([uint32 LE metadata length]["WKMF"]) so the trailer can be located exactly.
// Containers without the footer are read by scanning the last 4 KiB for the
// last occurrence of the marker.
package container
