package nifti

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Image is a native NIfTI-1 image: one header record, one contiguous voxel
// buffer it exclusively owns, and the two affine transforms derived from
// the header. The buffer keeps its on-disk byte order; value accessors
// interpret it through the stored order, so writing an image back out is
// byte-identical to what was read.
//
// An Image is not internally synchronized. Two distinct Images may be used
// from different goroutines freely, but concurrent mutation of one Image
// must be serialized by the caller.
type Image struct {
	hdr   Header
	order binary.ByteOrder
	data  []byte
	exts  []Extension

	// qto and sto are derived from the header and recomputed whenever a
	// transform-relevant field changes. They are never written back into
	// the quaternion or srow fields except through SetQForm/SetSForm.
	qto *mat.Dense
	sto *mat.Dense
}

// NewImage creates a zero-filled image with the given axis extents (1 to 7
// axes, each at least 1) and datatype. Spacing defaults to 1 on every axis
// and both transform codes are unset.
func NewImage(dims []int, dt Datatype) (*Image, error) {
	if !dt.valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnsupportedDatatype, dt)
	}
	hdr := NewHeader()
	if err := hdr.SetDims(dims); err != nil {
		return nil, err
	}
	if err := hdr.SetDatatype(dt); err != nil {
		return nil, err
	}
	size, err := hdr.dataSize()
	if err != nil {
		return nil, err
	}
	if uint64(size) > defaultLimits().MaxVoxelBytes {
		return nil, fmt.Errorf("%w: %d voxel bytes", ErrAllocation, size)
	}
	img := &Image{
		hdr:   hdr,
		order: binary.LittleEndian,
		data:  make([]byte, size),
	}
	img.recompute()
	return img, nil
}

// FromTemplate builds an image around an existing voxel buffer, copying
// every header field from template except dim, datatype, and bitpix, which
// are derived from the buffer's shape. The buffer length must match.
func FromTemplate(template *Header, data []byte, dims []int, dt Datatype) (*Image, error) {
	if template == nil {
		return nil, fmt.Errorf("%w: nil template", ErrValidation)
	}
	if !dt.valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnsupportedDatatype, dt)
	}
	hdr := *template
	hdr.SizeofHdr = headerSize
	if err := hdr.SetDims(dims); err != nil {
		return nil, err
	}
	if err := hdr.SetDatatype(dt); err != nil {
		return nil, err
	}
	size, err := hdr.dataSize()
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("%w: buffer is %d bytes, header implies %d", ErrValidation, len(data), size)
	}
	img := &Image{hdr: hdr, order: binary.LittleEndian, data: data}
	img.recompute()
	return img, nil
}

// MergeFields produces a new image whose header has only the named fields
// replaced; every other field, the voxel buffer, and the extensions are
// copied verbatim from base. Field names are the on-disk names surfaced by
// [Header.Describe]. This is the update-with-template operation used to
// restore metadata after host-side attribute loss.
func MergeFields(base *Image, overrides map[string]any) (*Image, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: nil base image", ErrValidation)
	}
	out := base.clone()

	// Deterministic application order so a bad override always reports
	// the same field first.
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := setHeaderField(&out.hdr, name, overrides[name]); err != nil {
			return nil, err
		}
	}

	size, err := out.hdr.dataSize()
	if err != nil {
		return nil, err
	}
	if int64(len(out.data)) != size {
		return nil, fmt.Errorf("%w: overrides imply %d voxel bytes but buffer has %d",
			ErrValidation, size, len(out.data))
	}
	out.recompute()
	return out, nil
}

func (img *Image) clone() *Image {
	out := &Image{
		hdr:   img.hdr,
		order: img.order,
		data:  make([]byte, len(img.data)),
	}
	copy(out.data, img.data)
	if len(img.exts) > 0 {
		out.exts = make([]Extension, len(img.exts))
		for i, e := range img.exts {
			out.exts[i] = Extension{Code: e.Code, Data: append([]byte(nil), e.Data...)}
		}
	}
	out.recompute()
	return out
}

// recompute rederives both affines from the current header fields. The two
// are always computed independently: the qform never feeds the sform or
// vice versa.
func (img *Image) recompute() {
	img.qto = qformMatrix(&img.hdr)
	img.sto = sformMatrix(&img.hdr)
}

// Header returns a copy of the image's header record.
func (img *Image) Header() Header {
	return img.hdr
}

// Data returns the raw voxel buffer. The slice aliases the image's own
// storage; it is not a copy.
func (img *Image) Data() []byte {
	return img.data
}

// ByteOrder returns the byte order the voxel buffer is stored in.
func (img *Image) ByteOrder() binary.ByteOrder {
	return img.order
}

// Datatype returns the image's on-disk voxel encoding.
func (img *Image) Datatype() Datatype {
	return img.hdr.Datatype
}

// Dims returns the extents of the used axes.
func (img *Image) Dims() []int {
	return img.hdr.Dims()
}

// PixDims returns the physical spacing of the used axes.
func (img *Image) PixDims() []float64 {
	return img.hdr.PixDims()
}

// NVoxels returns the total voxel count.
func (img *Image) NVoxels() int {
	n, _ := img.hdr.nVoxels()
	return int(n)
}

// Extensions returns the image's opaque header extensions.
func (img *Image) Extensions() []Extension {
	return img.exts
}

// SetExtensions replaces the image's header extensions.
func (img *Image) SetExtensions(exts []Extension) {
	img.exts = exts
}

// QtoXYZ returns a copy of the quaternion-derived affine.
func (img *Image) QtoXYZ() *mat.Dense {
	return mat.DenseCopyOf(img.qto)
}

// StoXYZ returns a copy of the direct-matrix affine.
func (img *Image) StoXYZ() *mat.Dense {
	return mat.DenseCopyOf(img.sto)
}

// SetQForm persists m into the quaternion header fields: pixdim 1..3 from
// the column norms, qfac into pixdim[0], the vector part into quatern_b/c/d
// and the translation into qoffset_x/y/z. This is the explicit request that
// writes a derived transform back into the header.
func (img *Image) SetQForm(m *mat.Dense, code XformCode) error {
	b, c, d, qfac, err := MatrixToQuaternion(m)
	if err != nil {
		return err
	}
	for j := 0; j < 3; j++ {
		norm := 0.0
		for i := 0; i < 3; i++ {
			norm += m.At(i, j) * m.At(i, j)
		}
		img.hdr.Pixdim[j+1] = float32(math.Sqrt(norm))
	}
	img.hdr.Pixdim[0] = float32(qfac)
	img.hdr.QuaternB = float32(b)
	img.hdr.QuaternC = float32(c)
	img.hdr.QuaternD = float32(d)
	img.hdr.QoffsetX = float32(m.At(0, 3))
	img.hdr.QoffsetY = float32(m.At(1, 3))
	img.hdr.QoffsetZ = float32(m.At(2, 3))
	img.hdr.QformCode = code
	img.recompute()
	return nil
}

// SetSForm persists m into the srow header fields.
func (img *Image) SetSForm(m *mat.Dense, code XformCode) error {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return fmt.Errorf("%w: affine must be 4x4, got %dx%d", ErrValidation, r, c)
	}
	for j := 0; j < 4; j++ {
		img.hdr.SrowX[j] = float32(m.At(0, j))
		img.hdr.SrowY[j] = float32(m.At(1, j))
		img.hdr.SrowZ[j] = float32(m.At(2, j))
	}
	img.hdr.SformCode = code
	img.recompute()
	return nil
}

// SetScaling sets the intensity rescale applied lazily by the value
// accessors. The raw buffer is never modified.
func (img *Image) SetScaling(slope, inter float64) {
	img.hdr.SclSlope = float32(slope)
	img.hdr.SclInter = float32(inter)
}

// flatIndex converts per-axis indices to a flat voxel index, first axis
// fastest, and validates bounds.
func (img *Image) flatIndex(idx []int) (int, error) {
	dims := img.hdr.Dims()
	if len(idx) != len(dims) {
		return 0, fmt.Errorf("%w: %d indices for %d axes", ErrDimension, len(idx), len(dims))
	}
	flat := 0
	stride := 1
	for i, x := range idx {
		if x < 0 || x >= dims[i] {
			return 0, fmt.Errorf("%w: index %d out of range on axis %d (extent %d)", ErrDimension, x, i, dims[i])
		}
		flat += x * stride
		stride *= dims[i]
	}
	return flat, nil
}

// scale applies scl_slope/scl_inter lazily. Slope 0 means unset per the
// format convention, so raw values pass through.
func (img *Image) scale(v float64) float64 {
	slope := float64(img.hdr.SclSlope)
	if slope == 0 {
		return v
	}
	return v*slope + float64(img.hdr.SclInter)
}

// At returns the intensity at the given per-axis indices with the header's
// intensity rescale applied. Only integer and float datatypes are scalar;
// use ComplexAt or RGBAt for the others.
func (img *Image) At(idx ...int) (float64, error) {
	flat, err := img.flatIndex(idx)
	if err != nil {
		return 0, err
	}
	return img.ValueAt(flat)
}

// ValueAt is At for a flat voxel index.
func (img *Image) ValueAt(flat int) (float64, error) {
	size := img.hdr.Datatype.Size()
	off := flat * size
	if flat < 0 || off+size > len(img.data) {
		return 0, fmt.Errorf("%w: flat index %d", ErrDimension, flat)
	}
	raw, err := decodeReal(img.data[off:off+size], img.hdr.Datatype, img.order)
	if err != nil {
		return 0, err
	}
	return img.scale(raw), nil
}

// RawValueAt returns the stored value at a flat index without the
// intensity rescale.
func (img *Image) RawValueAt(flat int) (float64, error) {
	size := img.hdr.Datatype.Size()
	off := flat * size
	if flat < 0 || off+size > len(img.data) {
		return 0, fmt.Errorf("%w: flat index %d", ErrDimension, flat)
	}
	return decodeReal(img.data[off:off+size], img.hdr.Datatype, img.order)
}

// SetAt stores a raw (unscaled) intensity at the given indices.
func (img *Image) SetAt(v float64, idx ...int) error {
	flat, err := img.flatIndex(idx)
	if err != nil {
		return err
	}
	size := img.hdr.Datatype.Size()
	return encodeReal(img.data[flat*size:], v, img.hdr.Datatype, img.order)
}

// ComplexAt returns the complex voxel at the given indices.
func (img *Image) ComplexAt(idx ...int) (complex128, error) {
	flat, err := img.flatIndex(idx)
	if err != nil {
		return 0, err
	}
	size := img.hdr.Datatype.Size()
	return decodeComplex(img.data[flat*size:], img.hdr.Datatype, img.order)
}

// RGBAt returns the RGB voxel at the given indices.
func (img *Image) RGBAt(idx ...int) ([3]uint8, error) {
	flat, err := img.flatIndex(idx)
	if err != nil {
		return [3]uint8{}, err
	}
	size := img.hdr.Datatype.Size()
	return decodeRGB(img.data[flat*size:flat*size+size], img.hdr.Datatype)
}
