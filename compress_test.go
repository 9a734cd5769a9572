package nifti

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestGzipRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("voxels"), 1000)
	var buf bytes.Buffer
	if err := writeChunks(&buf, [][]byte{payload[:100], payload[100:]}, true, gzip.DefaultCompression); err != nil {
		t.Fatal(err)
	}
	if !isGzip(buf.Bytes()) {
		t.Fatal("output does not start with gzip magic")
	}
	out, err := inflate(buf.Bytes(), defaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("inflate did not recover the payload")
	}
}

func TestWriteChunksUncompressed(t *testing.T) {
	var buf bytes.Buffer
	if err := writeChunks(&buf, [][]byte{[]byte("ab"), []byte("cd")}, false, 0); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "abcd" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestIsGzip(t *testing.T) {
	if isGzip([]byte{0x1f}) || isGzip([]byte("nii")) {
		t.Fatal("false positive")
	}
	if !isGzip([]byte{0x1f, 0x8b, 0x08}) {
		t.Fatal("false negative")
	}
}

func TestInflateRejectsGarbage(t *testing.T) {
	if _, err := inflate([]byte{0x1f, 0x8b, 0xff, 0xff}, defaultLimits()); !errors.Is(err, ErrCompression) {
		t.Fatalf("expected ErrCompression, got %v", err)
	}
}

func TestInflateCompressedSizeLimit(t *testing.T) {
	limits := defaultLimits()
	limits.MaxCompressedBytes = 2
	if _, err := inflate(make([]byte, 10), limits); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestFailingWriter(t *testing.T) {
	img := sampleImage(t)
	hdrBytes, err := encodeHeader(img.Header(), img.ByteOrder())
	if err != nil {
		t.Fatal(err)
	}
	w := &failingWriter{n: 10}
	if err := writeChunks(w, [][]byte{hdrBytes, img.Data()}, false, 0); err == nil {
		t.Fatal("expected short-write error")
	}
}

type failingWriter struct {
	n int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, errors.New("write failed")
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), nil
}
