package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/idelchi/modelseal/internal/errkind"
)

// IsRecognized reports whether data starts like a container:
// either with Flag, or with a plausible length-prefixed structural header.
func IsRecognized(data []byte) bool {
	layout, _, err := Detect(bytes.NewReader(data), int64(len(data)))

	return err == nil && layout != LayoutUnknown
}

// Detect reports the layout of the size bytes behind r and, for the preserving layout,
// the declared structural header length. Unrecognized input yields LayoutUnknown and no error;
// only read failures are returned.
func Detect(r io.ReaderAt, size int64) (Layout, int64, error) {
	layout, headerLen, err := detect(r, size)
	if err != nil {
		if errors.Is(err, errkind.ErrFormat) {
			return LayoutUnknown, 0, nil
		}

		return LayoutUnknown, 0, err
	}

	return layout, headerLen, nil
}

// detect is Detect but explains why input is not recognized with an ErrFormat error.
func detect(r io.ReaderAt, size int64) (Layout, int64, error) {
	if size >= int64(FlagSize) {
		prefix := make([]byte, FlagSize)
		if err := readAt(r, prefix, 0); err != nil {
			return LayoutUnknown, 0, fmt.Errorf("reading container prefix: %w", err)
		}

		if string(prefix) == Flag {
			return LayoutFlagged, 0, nil
		}
	}

	headerLen, err := StructuralHeaderLength(r, size)
	if err != nil {
		return LayoutUnknown, 0, fmt.Errorf("unrecognized container: %w", err)
	}

	return LayoutPreserving, headerLen, nil
}

// StructuralHeaderLength validates the 8-byte little-endian length prefix at the start of r
// and returns the declared header length. Lengths below 2, lengths past the end of the input
// and headers not starting with '{' are rejected with ErrFormat.
func StructuralHeaderLength(r io.ReaderAt, size int64) (int64, error) {
	if size < LengthPrefixSize+minHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes is too short for a length-prefixed header", errkind.ErrFormat, size)
	}

	prefix := make([]byte, LengthPrefixSize+1)
	if err := readAt(r, prefix, 0); err != nil {
		return 0, fmt.Errorf("reading length prefix: %w", err)
	}

	declared := binary.LittleEndian.Uint64(prefix)

	switch {
	case declared < minHeaderSize:
		return 0, fmt.Errorf("%w: header length %d is not a structural header", errkind.ErrFormat, declared)
	case declared > MaxHeaderSize:
		return 0, fmt.Errorf("%w: header length %d exceeds the %d byte limit", errkind.ErrFormat, declared, MaxHeaderSize)
	case declared > uint64(size-LengthPrefixSize): //nolint:gosec // size >= LengthPrefixSize here
		return 0, fmt.Errorf("%w: declared header length %d exceeds file size %d", errkind.ErrFormat, declared, size)
	case prefix[LengthPrefixSize] != '{':
		return 0, fmt.Errorf("%w: structural header does not start with '{'", errkind.ErrFormat)
	}

	return int64(declared), nil //nolint:gosec // bounded by MaxHeaderSize
}
