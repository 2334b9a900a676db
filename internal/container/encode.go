package container

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/idelchi/modelseal/internal/errkind"
)

// EncodeOptions tunes how a container is written.
type EncodeOptions struct {
	// LegacyTrailer omits the length footer, producing marker + JSON up to EOF.
	LegacyTrailer bool
}

// Encode assembles a container in memory. A nil header selects the flagged layout;
// otherwise header is emitted untouched behind its 8-byte length prefix.
func Encode(ciphertext, header []byte, meta Metadata, opts EncodeOptions) ([]byte, error) {
	layout := LayoutFlagged
	if header != nil {
		layout = LayoutPreserving
	}

	var buf bytes.Buffer

	if err := WritePrefix(&buf, layout, header); err != nil {
		return nil, err
	}

	buf.Write(ciphertext)

	if err := WriteTrailer(&buf, meta, opts); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WritePrefix writes the segment preceding the ciphertext: the flag, or the
// length-prefixed structural header.
func WritePrefix(w io.Writer, layout Layout, header []byte) error {
	switch layout {
	case LayoutFlagged:
		if _, err := io.WriteString(w, Flag); err != nil {
			return fmt.Errorf("writing flag: %w", err)
		}
	case LayoutPreserving:
		if len(header) < minHeaderSize || header[0] != '{' {
			return fmt.Errorf("%w: structural header must be a JSON object of at least %d bytes",
				errkind.ErrFormat, minHeaderSize)
		}

		var prefix [LengthPrefixSize]byte

		binary.LittleEndian.PutUint64(prefix[:], uint64(len(header)))

		if _, err := w.Write(prefix[:]); err != nil {
			return fmt.Errorf("writing length prefix: %w", err)
		}

		if _, err := w.Write(header); err != nil {
			return fmt.Errorf("writing structural header: %w", err)
		}
	default:
		return fmt.Errorf("%w: cannot write layout %s", errkind.ErrFormat, layout)
	}

	return nil
}

// WriteTrailer writes the marker, the JSON metadata and, unless legacy output was requested,
// the length footer.
func WriteTrailer(w io.Writer, meta Metadata, opts EncodeOptions) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	if opts.LegacyTrailer && bytes.Contains(raw, []byte(Marker)) {
		return fmt.Errorf("%w: metadata containing %q needs the framed trailer", errkind.ErrFormat, Marker)
	}

	if opts.LegacyTrailer && len(raw)+len(Marker) > TailWindow {
		return fmt.Errorf("%w: %d bytes of metadata do not fit the legacy trailer window", errkind.ErrFormat, len(raw))
	}

	if len(raw) > maxMetadataSize {
		return fmt.Errorf("%w: metadata exceeds %d bytes", errkind.ErrFormat, maxMetadataSize)
	}

	trailer := make([]byte, 0, len(Marker)+len(raw)+footerSize)
	trailer = append(trailer, Marker...)
	trailer = append(trailer, raw...)

	if !opts.LegacyTrailer {
		trailer = binary.LittleEndian.AppendUint32(trailer, uint32(len(raw))) //nolint:gosec // bounded above
		trailer = append(trailer, footerMagic...)
	}

	if _, err := w.Write(trailer); err != nil {
		return fmt.Errorf("writing trailer: %w", err)
	}

	return nil
}
