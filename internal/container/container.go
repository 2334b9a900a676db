package container

import (
	"errors"
	"io"
)

const (
	// Flag prefixes every flagged container.
	Flag = "WK_ENCRYPTED_v1\x00"
	// FlagSize is the length of Flag.
	FlagSize = len(Flag)

	// Marker separates the ciphertext from the JSON metadata.
	Marker = "__META__"

	// TailWindow bounds the backwards scan for Marker in containers without a footer.
	TailWindow = 4096

	// LengthPrefixSize is the size of the little-endian structural header length.
	LengthPrefixSize = 8

	// MaxHeaderSize caps the declared structural header length.
	MaxHeaderSize = 100_000_000

	// minHeaderSize is the smallest structural header that can be a JSON object ("{}").
	minHeaderSize = 2

	footerMagic     = "WKMF"
	footerSize      = 8
	maxMetadataSize = 1 << 20
)

// Layout identifies how a container arranges its segments.
type Layout int

const (
	// LayoutUnknown is not a container.
	LayoutUnknown Layout = iota
	// LayoutFlagged starts with Flag.
	LayoutFlagged
	// LayoutPreserving starts with an untouched length-prefixed structural header.
	LayoutPreserving
)

func (l Layout) String() string {
	switch l {
	case LayoutFlagged:
		return "flagged"
	case LayoutPreserving:
		return "preserving"
	default:
		return "unknown"
	}
}

// readAt fills p from r at off, tolerating io.EOF on a complete read.
func readAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) && (err == nil || errors.Is(err, io.EOF)) {
		return nil
	}

	if err == nil {
		err = io.ErrUnexpectedEOF
	}

	return err
}
