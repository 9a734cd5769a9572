package nifti

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// isGzip reports whether data starts with the RFC 1952 magic bytes.
func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// inflate decompresses a whole gzip stream in memory, capped at the
// configured inflated-size limit to block decompression bombs.
func inflate(data []byte, limits Limits) ([]byte, error) {
	if uint64(len(data)) > limits.MaxCompressedBytes {
		return nil, fmt.Errorf("%w: compressed input is %d bytes", ErrLimitExceeded, len(data))
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, int64(limits.MaxInflatedBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	if uint64(len(out)) > limits.MaxInflatedBytes {
		return nil, fmt.Errorf("%w: inflated beyond %d bytes", ErrLimitExceeded, limits.MaxInflatedBytes)
	}
	return out, nil
}

// writeChunks writes the given byte chunks to w, gzip-wrapped when
// compressed is set.
func writeChunks(w io.Writer, chunks [][]byte, compressed bool, level int) error {
	if !compressed {
		for _, chunk := range chunks {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		}
		return nil
	}
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompression, err)
	}
	for _, chunk := range chunks {
		if _, err := zw.Write(chunk); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}
