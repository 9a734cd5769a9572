package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeSampleFile(t *testing.T, name string) string {
	t.Helper()
	img := sampleImage(t)
	h := NewHandle(img)
	defer h.Release()
	path := filepath.Join(t.TempDir(), name)
	if err := Write(path, h); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.nii"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestReadUnknownExtension(t *testing.T) {
	if _, err := Read("volume.dcm"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	if err := Write("volume.dcm", newTestHandle(t)); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat on write, got %v", err)
	}
}

func TestReadTruncatedVoxelData(t *testing.T) {
	path := writeSampleFile(t, "trunc.nii")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw[:len(raw)-10], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestReadInconsistentVoxOffset(t *testing.T) {
	path := writeSampleFile(t, "off.nii")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// vox_offset lives at byte 108; point it past the end of the file.
	binary.LittleEndian.PutUint32(raw[108:112], bitsOf(1e9))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestReadVoxOffsetBelowHeader(t *testing.T) {
	path := writeSampleFile(t, "low.nii")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(raw[108:112], bitsOf(100))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestReadGzNamedButNotGzip(t *testing.T) {
	plain := writeSampleFile(t, "plain.nii")
	raw, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	fake := filepath.Join(t.TempDir(), "fake.nii.gz")
	if err := os.WriteFile(fake, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(fake); !errors.Is(err, ErrCompression) {
		t.Fatalf("expected ErrCompression, got %v", err)
	}
}

func TestReadCorruptGzip(t *testing.T) {
	path := writeSampleFile(t, "ok.nii.gz")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 20; i < len(raw)-8 && i < 60; i++ {
		raw[i] ^= 0xff
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrCompression) {
		t.Fatalf("expected ErrCompression, got %v", err)
	}
}

func TestReadVoxelAllocationLimit(t *testing.T) {
	path := writeSampleFile(t, "big.nii")
	limits := Limits{MaxVoxelBytes: 16}
	if _, err := Read(path, WithReadLimits(limits)); !errors.Is(err, ErrAllocation) {
		t.Fatalf("expected ErrAllocation, got %v", err)
	}
}

func TestReadInflationLimit(t *testing.T) {
	path := writeSampleFile(t, "bomb.nii.gz")
	limits := Limits{MaxInflatedBytes: 64}
	if _, err := Read(path, WithReadLimits(limits)); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestReadLayoutMagicMismatch(t *testing.T) {
	// A .nii file carrying the dual-file magic is inconsistent.
	hdr := NewHeader()
	if err := hdr.SetDims([]int{2}); err != nil {
		t.Fatal(err)
	}
	if err := hdr.SetDatatype(Uint8); err != nil {
		t.Fatal(err)
	}
	hdr.Magic = MagicPair
	hdr.VoxOffset = 0
	raw, err := encodeHeader(hdr, binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.Write(raw)
	buf.Write(make([]byte, extenderSize))
	buf.Write([]byte{1, 2})

	path := filepath.Join(t.TempDir(), "mismatch.nii")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestReadDualMissingImg(t *testing.T) {
	img := sampleImage(t)
	h := NewHandle(img)
	defer h.Release()
	dir := t.TempDir()
	if err := Write(filepath.Join(dir, "pair.hdr"), h); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "pair.img")); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(filepath.Join(dir, "pair.hdr")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

// bitsOf returns the IEEE-754 bit pattern of a float32 value, for patching
// header bytes in place.
func bitsOf(v float32) uint32 {
	return math.Float32bits(v)
}
