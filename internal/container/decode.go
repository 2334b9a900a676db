package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/idelchi/modelseal/internal/errkind"
)

// Index locates the segments of a container without loading its body.
type Index struct {
	// Layout is the detected layout.
	Layout Layout

	// Header is the untouched structural header, without its length prefix.
	// It is nil for flagged containers.
	Header []byte

	// BodyOffset is the offset of the first ciphertext byte.
	BodyOffset int64

	// BodySize is the ciphertext length.
	BodySize int64

	// Metadata is the validated trailer metadata.
	Metadata Metadata

	// Framed reports whether the trailer carried a length footer.
	Framed bool
}

// Body returns a reader over the ciphertext segment of r.
func (ix *Index) Body(r io.ReaderAt) *io.SectionReader {
	return io.NewSectionReader(r, ix.BodyOffset, ix.BodySize)
}

// Open detects the layout of the size bytes behind r and locates the ciphertext and trailer.
// It fails with ErrFormat when the input is not a container, the structural header is
// truncated, the trailer is missing or the metadata does not parse.
func Open(r io.ReaderAt, size int64) (*Index, error) {
	layout, headerLen, err := detect(r, size)
	if err != nil {
		return nil, err
	}

	index := &Index{Layout: layout}

	switch layout {
	case LayoutFlagged:
		index.BodyOffset = int64(FlagSize)
	case LayoutPreserving:
		index.Header = make([]byte, headerLen)
		if err := readAt(r, index.Header, LengthPrefixSize); err != nil {
			return nil, fmt.Errorf("reading structural header: %w", err)
		}

		index.BodyOffset = LengthPrefixSize + headerLen
	default:
		return nil, fmt.Errorf("%w: unknown layout", errkind.ErrFormat)
	}

	start, raw, framed, err := locateTrailer(r, size, index.BodyOffset)
	if err != nil {
		return nil, err
	}

	meta, err := ParseMetadata(raw)
	if err != nil {
		return nil, err
	}

	index.BodySize = start - index.BodyOffset
	index.Metadata = meta
	index.Framed = framed

	return index, nil
}

// Container is a fully loaded container.
type Container struct {
	Layout     Layout
	Header     []byte
	Ciphertext []byte
	Metadata   Metadata
}

// Decode splits an in-memory container into its segments.
func Decode(data []byte) (*Container, error) {
	index, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	return &Container{
		Layout:     index.Layout,
		Header:     index.Header,
		Ciphertext: data[index.BodyOffset : index.BodyOffset+index.BodySize],
		Metadata:   index.Metadata,
	}, nil
}

// locateTrailer returns the offset of the trailer marker and the raw metadata bytes.
// The footer is trusted only when it points exactly at a marker after bodyOffset;
// otherwise the last TailWindow bytes are scanned for the last marker occurrence.
func locateTrailer(r io.ReaderAt, size, bodyOffset int64) (int64, []byte, bool, error) {
	start, raw, err := framedTrailer(r, size, bodyOffset)
	if err != nil {
		return 0, nil, false, err
	}

	if raw != nil {
		return start, raw, true, nil
	}

	start, raw, err = scanTrailer(r, size, bodyOffset)

	return start, raw, false, err
}

func framedTrailer(r io.ReaderAt, size, bodyOffset int64) (int64, []byte, error) {
	if size-bodyOffset < int64(footerSize+len(Marker)) {
		return 0, nil, nil
	}

	footer := make([]byte, footerSize)
	if err := readAt(r, footer, size-footerSize); err != nil {
		return 0, nil, fmt.Errorf("reading trailer footer: %w", err)
	}

	if string(footer[4:]) != footerMagic {
		return 0, nil, nil
	}

	length := int64(binary.LittleEndian.Uint32(footer[:4]))
	if length > maxMetadataSize {
		return 0, nil, nil
	}

	start := size - footerSize - length - int64(len(Marker))
	if start < bodyOffset {
		return 0, nil, nil
	}

	trailer := make([]byte, int64(len(Marker))+length)
	if err := readAt(r, trailer, start); err != nil {
		return 0, nil, fmt.Errorf("reading trailer: %w", err)
	}

	if string(trailer[:len(Marker)]) != Marker {
		return 0, nil, nil
	}

	return start, trailer[len(Marker):], nil
}

func scanTrailer(r io.ReaderAt, size, bodyOffset int64) (int64, []byte, error) {
	window := min(int64(TailWindow), size-bodyOffset)

	tail := make([]byte, window)
	if err := readAt(r, tail, size-window); err != nil {
		return 0, nil, fmt.Errorf("reading container tail: %w", err)
	}

	idx := bytes.LastIndex(tail, []byte(Marker))
	if idx < 0 {
		return 0, nil, fmt.Errorf("%w: metadata marker %q not found in the last %d bytes", errkind.ErrFormat, Marker, window)
	}

	return size - window + int64(idx), tail[idx+len(Marker):], nil
}
