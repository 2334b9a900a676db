package encryption

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

// Transform reads src in chunks of chunkSize bytes, passes each chunk through stream in place
// and writes it to dst. It returns the number of bytes written.
// A non-positive chunkSize selects DefaultChunkSize.
func Transform(dst io.Writer, src io.Reader, stream cipher.Stream, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	buf, release := getBuffer(chunkSize)
	defer release()

	var written int64

	for {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			chunk := buf[:n]

			stream.XORKeyStream(chunk, chunk)

			if _, err := dst.Write(chunk); err != nil {
				return written, fmt.Errorf("writing chunk: %w", err)
			}

			written += int64(n)
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return written, nil
		}

		if readErr != nil {
			return written, fmt.Errorf("reading chunk: %w", readErr)
		}
	}
}
