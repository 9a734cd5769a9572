package nifti

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// Header mirrors the fixed 348-byte NIfTI-1 header, field for field and in
// declaration order. All fields are fixed-size so the struct round-trips
// through encoding/binary unchanged.
type Header struct {
	SizeofHdr     int32
	DataTypeName  [10]byte // unused legacy field, carried opaquely
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      Datatype
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     XformCode
	SformCode     XformCode
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// NewHeader returns a header with the format's conventional defaults:
// single-file magic, unit spacing, qfac +1, and no transforms set.
func NewHeader() Header {
	h := Header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Magic:     MagicSingle,
	}
	h.Dim[0] = 1
	for i := range h.Dim {
		if i > 0 {
			h.Dim[i] = 1
		}
	}
	h.Pixdim[0] = 1
	for i := 1; i < len(h.Pixdim); i++ {
		h.Pixdim[i] = 1
	}
	return h
}

// NDim returns the number of used dimensions.
func (h *Header) NDim() int {
	return int(h.Dim[0])
}

// Dims returns the extents of the used dimensions.
func (h *Header) Dims() []int {
	n := h.NDim()
	if n < 1 || n > MaxDims {
		return nil
	}
	dims := make([]int, n)
	for i := range dims {
		dims[i] = int(h.Dim[i+1])
	}
	return dims
}

// PixDims returns the physical spacing of the used dimensions.
func (h *Header) PixDims() []float64 {
	n := h.NDim()
	if n < 1 || n > MaxDims {
		return nil
	}
	pd := make([]float64, n)
	for i := range pd {
		pd[i] = float64(h.Pixdim[i+1])
	}
	return pd
}

// QFac returns the quaternion handedness flag, normalized to -1 or +1.
// pixdim[0] is the on-disk carrier; anything non-negative means +1.
func (h *Header) QFac() float64 {
	if h.Pixdim[0] < 0 {
		return -1
	}
	return 1
}

// SetDims sets dim[0] and the per-axis extents, padding the rest with 1.
func (h *Header) SetDims(dims []int) error {
	if len(dims) < 1 || len(dims) > MaxDims {
		return fmt.Errorf("%w: %d axes", ErrDimension, len(dims))
	}
	h.Dim[0] = int16(len(dims))
	for i := 1; i < len(h.Dim); i++ {
		h.Dim[i] = 1
	}
	for i, d := range dims {
		if d < 1 || d > math.MaxInt16 {
			return fmt.Errorf("%w: axis %d extent %d", ErrDimension, i, d)
		}
		h.Dim[i+1] = int16(d)
	}
	return nil
}

// SetDatatype sets the datatype code and the matching bitpix.
func (h *Header) SetDatatype(dt Datatype) error {
	if !dt.valid() {
		return fmt.Errorf("%w: code %d", ErrUnsupportedDatatype, dt)
	}
	h.Datatype = dt
	h.Bitpix = int16(dt.Bits())
	return nil
}

// nVoxels returns the total number of voxels implied by dim, or an error
// when dim is out of range.
func (h *Header) nVoxels() (int64, error) {
	n := h.NDim()
	if n < 1 || n > MaxDims {
		return 0, fmt.Errorf("%w: dim[0] = %d", ErrDimension, h.Dim[0])
	}
	total := int64(1)
	for i := 1; i <= n; i++ {
		if h.Dim[i] < 1 {
			return 0, fmt.Errorf("%w: dim[%d] = %d", ErrDimension, i, h.Dim[i])
		}
		if total > math.MaxInt64/int64(h.Dim[i]) {
			return 0, fmt.Errorf("%w: voxel count overflows with dim[%d] = %d", ErrDimension, i, h.Dim[i])
		}
		total *= int64(h.Dim[i])
	}
	return total, nil
}

// dataSize returns the voxel buffer size in bytes implied by dim and bitpix.
func (h *Header) dataSize() (int64, error) {
	nvox, err := h.nVoxels()
	if err != nil {
		return 0, err
	}
	if !h.Datatype.valid() {
		return 0, fmt.Errorf("%w: code %d", ErrUnsupportedDatatype, h.Datatype)
	}
	size := int64(h.Datatype.Size())
	if nvox > math.MaxInt64/size {
		return 0, fmt.Errorf("%w: %d voxels of %d bytes overflows", ErrAllocation, nvox, size)
	}
	return nvox * size, nil
}

// DescripString returns descrip as a Go string, without trailing NULs.
func (h *Header) DescripString() string {
	return cstring(h.Descrip[:])
}

// SetDescrip stores s into descrip, truncating to the field width.
func (h *Header) SetDescrip(s string) {
	h.Descrip = [80]byte{}
	copy(h.Descrip[:], s)
}

// IntentNameString returns intent_name without trailing NULs.
func (h *Header) IntentNameString() string {
	return cstring(h.IntentName[:])
}

// Units returns the spatial and temporal unit codes from xyzt_units.
func (h *Header) Units() (space, time Unit) {
	return unpackUnits(h.XyztUnits)
}

// SetUnits packs the spatial and temporal unit codes into xyzt_units.
func (h *Header) SetUnits(space, time Unit) {
	h.XyztUnits = packUnits(space, time)
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Field is one named header field for introspection.
type Field struct {
	Name  string
	Value string
}

// Describe lists every header field by its on-disk name, in declaration
// order, with a printable rendering of its value.
func (h *Header) Describe() []Field {
	f := func(format string, args ...any) string { return fmt.Sprintf(format, args...) }
	return []Field{
		{"sizeof_hdr", f("%d", h.SizeofHdr)},
		{"data_type", f("%q", cstring(h.DataTypeName[:]))},
		{"db_name", f("%q", cstring(h.DBName[:]))},
		{"extents", f("%d", h.Extents)},
		{"session_error", f("%d", h.SessionError)},
		{"regular", f("%q", string(rune(h.Regular)))},
		{"dim_info", f("%d", h.DimInfo)},
		{"dim", formatInt16s(h.Dim[:])},
		{"intent_p1", f("%g", h.IntentP1)},
		{"intent_p2", f("%g", h.IntentP2)},
		{"intent_p3", f("%g", h.IntentP3)},
		{"intent_code", f("%d", h.IntentCode)},
		{"datatype", f("%d (%s)", int16(h.Datatype), h.Datatype)},
		{"bitpix", f("%d", h.Bitpix)},
		{"slice_start", f("%d", h.SliceStart)},
		{"pixdim", formatFloat32s(h.Pixdim[:])},
		{"vox_offset", f("%g", h.VoxOffset)},
		{"scl_slope", f("%g", h.SclSlope)},
		{"scl_inter", f("%g", h.SclInter)},
		{"slice_end", f("%d", h.SliceEnd)},
		{"slice_code", f("%d", h.SliceCode)},
		{"xyzt_units", f("%d", h.XyztUnits)},
		{"cal_max", f("%g", h.CalMax)},
		{"cal_min", f("%g", h.CalMin)},
		{"slice_duration", f("%g", h.SliceDuration)},
		{"toffset", f("%g", h.Toffset)},
		{"glmax", f("%d", h.Glmax)},
		{"glmin", f("%d", h.Glmin)},
		{"descrip", f("%q", h.DescripString())},
		{"aux_file", f("%q", cstring(h.AuxFile[:]))},
		{"qform_code", f("%d (%s)", int16(h.QformCode), h.QformCode)},
		{"sform_code", f("%d (%s)", int16(h.SformCode), h.SformCode)},
		{"quatern_b", f("%g", h.QuaternB)},
		{"quatern_c", f("%g", h.QuaternC)},
		{"quatern_d", f("%g", h.QuaternD)},
		{"qoffset_x", f("%g", h.QoffsetX)},
		{"qoffset_y", f("%g", h.QoffsetY)},
		{"qoffset_z", f("%g", h.QoffsetZ)},
		{"srow_x", formatFloat32s(h.SrowX[:])},
		{"srow_y", formatFloat32s(h.SrowY[:])},
		{"srow_z", formatFloat32s(h.SrowZ[:])},
		{"intent_name", f("%q", h.IntentNameString())},
		{"magic", f("%q", cstring(h.Magic[:]))},
	}
}

func formatInt16s(v []int16) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatFloat32s(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
