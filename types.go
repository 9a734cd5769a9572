package nifti

const (
	headerSize int32 = 348

	// extenderSize is the 4-byte extension flag that follows the fixed
	// header in single-file layout.
	extenderSize = 4

	// baseVoxOffset is the smallest legal vox_offset in single-file
	// layout: fixed header plus extender flag, no extensions.
	baseVoxOffset = int64(headerSize) + extenderSize

	// MaxDims is the largest number of axes the format can describe.
	MaxDims = 7
)

// Magic values identifying the two on-disk layouts.
var (
	MagicSingle = [4]byte{'n', '+', '1', 0}
	MagicPair   = [4]byte{'n', 'i', '1', 0}
)

// Datatype is an on-disk voxel encoding code.
type Datatype int16

const (
	Uint8      Datatype = 2
	Int16      Datatype = 4
	Int32      Datatype = 8
	Float32    Datatype = 16
	Complex64  Datatype = 32
	Float64    Datatype = 64
	RGB24      Datatype = 128
	Int8       Datatype = 256
	Uint16     Datatype = 512
	Uint32     Datatype = 768
	Int64      Datatype = 1024
	Uint64     Datatype = 1280
	Complex128 Datatype = 1792
)

// Kind classifies the numeric interpretation of a datatype.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindComplex
	KindRGB
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "signed integer"
	case KindUint:
		return "unsigned integer"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	case KindRGB:
		return "rgb"
	default:
		return "invalid"
	}
}

// dtypeInfo describes one entry of the closed datatype table.
type dtypeInfo struct {
	bits int16
	kind Kind
	name string
}

// datatypes is the closed set of supported on-disk encodings. Any code
// outside this table is a hard error, never a default.
var datatypes = map[Datatype]dtypeInfo{
	Uint8:      {8, KindUint, "uint8"},
	Int16:      {16, KindInt, "int16"},
	Int32:      {32, KindInt, "int32"},
	Float32:    {32, KindFloat, "float32"},
	Complex64:  {64, KindComplex, "complex64"},
	Float64:    {64, KindFloat, "float64"},
	RGB24:      {24, KindRGB, "rgb24"},
	Int8:       {8, KindInt, "int8"},
	Uint16:     {16, KindUint, "uint16"},
	Uint32:     {32, KindUint, "uint32"},
	Int64:      {64, KindInt, "int64"},
	Uint64:     {64, KindUint, "uint64"},
	Complex128: {128, KindComplex, "complex128"},
}

func (dt Datatype) valid() bool {
	_, ok := datatypes[dt]
	return ok
}

// Bits returns the bits per voxel for dt, or 0 if dt is unsupported.
func (dt Datatype) Bits() int {
	return int(datatypes[dt].bits)
}

// Size returns the bytes per voxel for dt, or 0 if dt is unsupported.
func (dt Datatype) Size() int {
	return int(datatypes[dt].bits) / 8
}

// Kind returns the numeric kind of dt, or KindInvalid if unsupported.
func (dt Datatype) Kind() Kind {
	return datatypes[dt].kind
}

func (dt Datatype) String() string {
	if info, ok := datatypes[dt]; ok {
		return info.name
	}
	return "unknown"
}

// XformCode identifies the coordinate frame a transform maps into.
type XformCode int16

const (
	XformUnknown     XformCode = 0
	XformScannerAnat XformCode = 1
	XformAlignedAnat XformCode = 2
	XformTalairach   XformCode = 3
	XformMNI152      XformCode = 4
)

func (x XformCode) String() string {
	switch x {
	case XformUnknown:
		return "unknown"
	case XformScannerAnat:
		return "scanner-based anatomical"
	case XformAlignedAnat:
		return "aligned anatomical"
	case XformTalairach:
		return "Talairach"
	case XformMNI152:
		return "MNI 152"
	default:
		return "invalid"
	}
}

// Unit is a spatial or temporal unit code. Space and time units share the
// header's xyzt_units byte: space in bits 0-2, time in bits 3-5.
type Unit uint8

const (
	UnitUnknown Unit = 0
	UnitMeter   Unit = 1
	UnitMM      Unit = 2
	UnitMicron  Unit = 3
	UnitSec     Unit = 8
	UnitMsec    Unit = 16
	UnitUsec    Unit = 24
	UnitHz      Unit = 32
	UnitPPM     Unit = 40
	UnitRads    Unit = 48
)

func (u Unit) String() string {
	switch u {
	case UnitUnknown:
		return "unknown"
	case UnitMeter:
		return "m"
	case UnitMM:
		return "mm"
	case UnitMicron:
		return "um"
	case UnitSec:
		return "s"
	case UnitMsec:
		return "ms"
	case UnitUsec:
		return "us"
	case UnitHz:
		return "Hz"
	case UnitPPM:
		return "ppm"
	case UnitRads:
		return "rad/s"
	default:
		return "invalid"
	}
}

// packUnits combines a space and a time unit into an xyzt_units byte.
func packUnits(space, time Unit) uint8 {
	return uint8(space)&0x07 | uint8(time)&0x38
}

// unpackUnits splits an xyzt_units byte into space and time units.
func unpackUnits(xyzt uint8) (space, time Unit) {
	return Unit(xyzt & 0x07), Unit(xyzt & 0x38)
}

// Extension is one opaque header extension block. On disk an extension is
// esize(int32) + ecode(int32) + payload, with esize a multiple of 16.
type Extension struct {
	Code int32
	Data []byte
}

// size returns the on-disk size of the extension including its 8-byte
// prologue, rounded up to the required multiple of 16.
func (e Extension) size() int64 {
	n := int64(8 + len(e.Data))
	if rem := n % 16; rem != 0 {
		n += 16 - rem
	}
	return n
}
