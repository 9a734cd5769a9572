package nifti

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// sampleImage builds a small int16 image with a gradient payload, scaling,
// transforms, and one extension.
func sampleImage(t *testing.T) *Image {
	t.Helper()
	img, err := NewImage([]int{6, 5, 4}, Int16)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < img.NVoxels(); i++ {
		binary.LittleEndian.PutUint16(img.Data()[i*2:], uint16(i*3))
	}
	merged, err := MergeFields(img, map[string]any{
		"pixdim":     []float64{1, 2, 2, 3},
		"scl_slope":  0.5,
		"scl_inter":  10.0,
		"qform_code": 1,
		"quatern_b":  0.1,
		"quatern_c":  0.2,
		"quatern_d":  0.3,
		"qoffset_x":  -12.0,
		"descrip":    "round trip sample",
	})
	if err != nil {
		t.Fatal(err)
	}
	merged.SetExtensions([]Extension{{Code: 6, Data: []byte("plain text comment")}})
	return merged
}

// headersEqualExceptLayout compares two headers ignoring the
// layout-dependent fields vox_offset and magic.
func headersEqualExceptLayout(a, b Header) bool {
	a.VoxOffset, b.VoxOffset = 0, 0
	a.Magic, b.Magic = [4]byte{}, [4]byte{}
	return reflect.DeepEqual(a, b)
}

func TestRoundTripSingleFile(t *testing.T) {
	for _, name := range []string{"img.nii", "img.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			img := sampleImage(t)
			h := NewHandle(img)
			defer h.Release()

			path := filepath.Join(t.TempDir(), name)
			if err := Write(path, h); err != nil {
				t.Fatalf("write: %v", err)
			}

			got, err := Read(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			defer got.Release()

			gotImg := got.Image()
			if !headersEqualExceptLayout(gotImg.Header(), img.Header()) {
				t.Fatalf("header mismatch\nwant: %#v\ngot:  %#v", img.Header(), gotImg.Header())
			}
			if !bytes.Equal(gotImg.Data(), img.Data()) {
				t.Fatal("voxel buffer not byte-identical")
			}
			exts := gotImg.Extensions()
			if len(exts) != 1 || exts[0].Code != 6 {
				t.Fatalf("extensions %v", exts)
			}
			if !bytes.HasPrefix(exts[0].Data, []byte("plain text comment")) {
				t.Fatalf("extension payload %q", exts[0].Data)
			}
		})
	}
}

func TestRoundTripDualFile(t *testing.T) {
	for _, name := range []string{"img.hdr", "img.hdr.gz"} {
		t.Run(name, func(t *testing.T) {
			img := sampleImage(t)
			h := NewHandle(img)
			defer h.Release()

			path := filepath.Join(t.TempDir(), name)
			if err := Write(path, h); err != nil {
				t.Fatalf("write: %v", err)
			}

			got, err := Read(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			defer got.Release()

			gotImg := got.Image()
			if !headersEqualExceptLayout(gotImg.Header(), img.Header()) {
				t.Fatalf("header mismatch\nwant: %#v\ngot:  %#v", img.Header(), gotImg.Header())
			}
			if gotImg.Header().Magic != MagicPair {
				t.Fatalf("magic %q", gotImg.Header().Magic)
			}
			if gotImg.Header().VoxOffset != 0 {
				t.Fatalf("dual-file vox_offset %v", gotImg.Header().VoxOffset)
			}
			if !bytes.Equal(gotImg.Data(), img.Data()) {
				t.Fatal("voxel buffer not byte-identical")
			}
		})
	}
}

func TestReadDualFileByImgPath(t *testing.T) {
	img := sampleImage(t)
	h := NewHandle(img)
	defer h.Release()

	dir := t.TempDir()
	if err := Write(filepath.Join(dir, "vol.hdr"), h); err != nil {
		t.Fatal(err)
	}
	got, err := Read(filepath.Join(dir, "vol.img"))
	if err != nil {
		t.Fatalf("read by .img path: %v", err)
	}
	defer got.Release()
	if !bytes.Equal(got.Image().Data(), img.Data()) {
		t.Fatal("voxel buffer mismatch")
	}
}

func TestCompressionTransparency(t *testing.T) {
	img := sampleImage(t)
	h := NewHandle(img)
	defer h.Release()

	dir := t.TempDir()
	plain := filepath.Join(dir, "a.nii")
	zipped := filepath.Join(dir, "b.nii.gz")
	if err := Write(plain, h); err != nil {
		t.Fatal(err)
	}
	if err := Write(zipped, h); err != nil {
		t.Fatal(err)
	}

	hp, err := Read(plain)
	if err != nil {
		t.Fatal(err)
	}
	defer hp.Release()
	hz, err := Read(zipped)
	if err != nil {
		t.Fatal(err)
	}
	defer hz.Release()

	if !reflect.DeepEqual(hp.Image().Header(), hz.Image().Header()) {
		t.Fatal("headers differ between compressed and plain reads")
	}
	if !bytes.Equal(hp.Image().Data(), hz.Image().Data()) {
		t.Fatal("voxel buffers differ between compressed and plain reads")
	}
}

func TestCompressionForcedOff(t *testing.T) {
	img := sampleImage(t)
	h := NewHandle(img)
	defer h.Release()

	path := filepath.Join(t.TempDir(), "forced.nii.gz")
	if err := Write(path, h, WithCompression(false)); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if isGzip(raw) {
		t.Fatal("WithCompression(false) still produced gzip output")
	}
}

func TestBigEndianRead(t *testing.T) {
	hdr := NewHeader()
	if err := hdr.SetDims([]int{3, 2}); err != nil {
		t.Fatal(err)
	}
	if err := hdr.SetDatatype(Int16); err != nil {
		t.Fatal(err)
	}
	hdr.VoxOffset = float32(baseVoxOffset)

	raw, err := encodeHeader(hdr, binary.BigEndian)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.Write(raw)
	buf.Write(make([]byte, extenderSize))
	for i := 0; i < 6; i++ {
		var vox [2]byte
		binary.BigEndian.PutUint16(vox[:], uint16(i+1))
		buf.Write(vox[:])
	}

	path := filepath.Join(t.TempDir(), "be.nii")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()

	img := h.Image()
	if img.ByteOrder() != binary.BigEndian {
		t.Fatal("byte order not detected")
	}
	v, err := img.At(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 6 {
		t.Fatalf("voxel (2,1) = %v, want 6", v)
	}

	// Round-trip must preserve the stored byte order.
	out := filepath.Join(t.TempDir(), "be-out.nii")
	if err := Write(out, h); err != nil {
		t.Fatal(err)
	}
	rt, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rt, buf.Bytes()) {
		t.Fatal("big-endian file did not round-trip byte-identically")
	}
}

func TestEndToEndSpacingExample(t *testing.T) {
	img, err := NewImage([]int{96, 96, 60}, Float32)
	if err != nil {
		t.Fatal(err)
	}
	merged, err := MergeFields(img, map[string]any{
		"pixdim":     []float64{-1, 2.5, 2.5, 2.5, 0, 0, 0, 0},
		"qform_code": 2,
		"sform_code": 2,
		"srow_x":     []float64{2.5, 0, 0, 0},
		"srow_y":     []float64{0, 2.5, 0, 0},
		"srow_z":     []float64{0, 0, 2.5, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandle(merged)
	defer h.Release()

	path := filepath.Join(t.TempDir(), "spacing.nii.gz")
	if err := Write(path, h); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()

	gi := got.Image()
	if !reflect.DeepEqual(gi.Dims(), []int{96, 96, 60}) {
		t.Fatalf("dims %v", gi.Dims())
	}
	pd := gi.PixDims()
	if len(pd) != 3 || pd[0] != 2.5 || pd[1] != 2.5 || pd[2] != 2.5 {
		t.Fatalf("pixdims %v", pd)
	}
	hdr := gi.Header()
	if hdr.QFac() != -1 {
		t.Fatalf("qfac %v", hdr.QFac())
	}
	if hdr.QformCode != 2 || hdr.SformCode != 2 {
		t.Fatalf("codes %d/%d", hdr.QformCode, hdr.SformCode)
	}
}

func TestWriteUnsupportedDatatypeLeavesNoFile(t *testing.T) {
	// Corrupt an image's datatype below the public API to exercise the
	// pre-write rejection.
	img, err := NewImage([]int{2, 2}, Uint8)
	if err != nil {
		t.Fatal(err)
	}
	img.hdr.Datatype = 2304 // rgba32, outside the supported set
	h := NewHandle(img)
	defer h.Release()

	path := filepath.Join(t.TempDir(), "rejected.nii")
	if err := Write(path, h); err == nil {
		t.Fatal("expected write to fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("failed write must not leave an output file")
	}
}

func TestWriteReleasedHandle(t *testing.T) {
	h := newTestHandle(t)
	h.Release()
	if err := Write(filepath.Join(t.TempDir(), "x.nii"), h); err != ErrReleased {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
}

func TestLazyScalingSurvivesRoundTrip(t *testing.T) {
	img := sampleImage(t) // scl_slope 0.5, scl_inter 10
	h := NewHandle(img)
	defer h.Release()

	path := filepath.Join(t.TempDir(), "scaled.nii")
	if err := Write(path, h); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()

	raw, err := got.Image().RawValueAt(4)
	if err != nil {
		t.Fatal(err)
	}
	scaled, err := got.Image().ValueAt(4)
	if err != nil {
		t.Fatal(err)
	}
	if raw != 12 {
		t.Fatalf("raw value %v, want 12", raw)
	}
	if math.Abs(scaled-16) > 1e-9 {
		t.Fatalf("scaled value %v, want 16", scaled)
	}
}
