package nifti

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodeReal converts one voxel's raw bytes into a float64. Valid for the
// integer and float kinds; complex and RGB voxels have their own decoders.
func decodeReal(raw []byte, dt Datatype, order binary.ByteOrder) (float64, error) {
	if len(raw) < dt.Size() {
		return 0, fmt.Errorf("%w: %d bytes for %s voxel", ErrFormat, len(raw), dt)
	}
	switch dt {
	case Uint8:
		return float64(raw[0]), nil
	case Int8:
		return float64(int8(raw[0])), nil
	case Int16:
		return float64(int16(order.Uint16(raw))), nil
	case Uint16:
		return float64(order.Uint16(raw)), nil
	case Int32:
		return float64(int32(order.Uint32(raw))), nil
	case Uint32:
		return float64(order.Uint32(raw)), nil
	case Int64:
		return float64(int64(order.Uint64(raw))), nil
	case Uint64:
		return float64(order.Uint64(raw)), nil
	case Float32:
		return float64(math.Float32frombits(order.Uint32(raw))), nil
	case Float64:
		return math.Float64frombits(order.Uint64(raw)), nil
	default:
		return 0, fmt.Errorf("%w: %s is not a scalar real type", ErrUnsupportedDatatype, dt)
	}
}

// encodeReal writes v into dst as one voxel of type dt. Integer kinds are
// rounded to nearest and clamped to the type's range.
func encodeReal(dst []byte, v float64, dt Datatype, order binary.ByteOrder) error {
	if len(dst) < dt.Size() {
		return fmt.Errorf("%w: %d bytes for %s voxel", ErrFormat, len(dst), dt)
	}
	switch dt {
	case Uint8:
		dst[0] = uint8(clamp(v, 0, math.MaxUint8))
	case Int8:
		dst[0] = byte(int8(clamp(v, math.MinInt8, math.MaxInt8)))
	case Int16:
		order.PutUint16(dst, uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
	case Uint16:
		order.PutUint16(dst, uint16(clamp(v, 0, math.MaxUint16)))
	case Int32:
		order.PutUint32(dst, uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
	case Uint32:
		order.PutUint32(dst, uint32(clamp(v, 0, math.MaxUint32)))
	case Int64:
		order.PutUint64(dst, uint64(int64(clamp(v, math.MinInt64, math.MaxInt64))))
	case Uint64:
		order.PutUint64(dst, uint64(clamp(v, 0, math.MaxUint64)))
	case Float32:
		order.PutUint32(dst, math.Float32bits(float32(v)))
	case Float64:
		order.PutUint64(dst, math.Float64bits(v))
	default:
		return fmt.Errorf("%w: %s is not a scalar real type", ErrUnsupportedDatatype, dt)
	}
	return nil
}

// decodeComplex converts one complex voxel's raw bytes.
func decodeComplex(raw []byte, dt Datatype, order binary.ByteOrder) (complex128, error) {
	if len(raw) < dt.Size() {
		return 0, fmt.Errorf("%w: %d bytes for %s voxel", ErrFormat, len(raw), dt)
	}
	switch dt {
	case Complex64:
		re := math.Float32frombits(order.Uint32(raw[0:4]))
		im := math.Float32frombits(order.Uint32(raw[4:8]))
		return complex(float64(re), float64(im)), nil
	case Complex128:
		re := math.Float64frombits(order.Uint64(raw[0:8]))
		im := math.Float64frombits(order.Uint64(raw[8:16]))
		return complex(re, im), nil
	default:
		return 0, fmt.Errorf("%w: %s is not a complex type", ErrUnsupportedDatatype, dt)
	}
}

// encodeComplex writes v into dst as one complex voxel.
func encodeComplex(dst []byte, v complex128, dt Datatype, order binary.ByteOrder) error {
	if len(dst) < dt.Size() {
		return fmt.Errorf("%w: %d bytes for %s voxel", ErrFormat, len(dst), dt)
	}
	switch dt {
	case Complex64:
		order.PutUint32(dst[0:4], math.Float32bits(float32(real(v))))
		order.PutUint32(dst[4:8], math.Float32bits(float32(imag(v))))
	case Complex128:
		order.PutUint64(dst[0:8], math.Float64bits(real(v)))
		order.PutUint64(dst[8:16], math.Float64bits(imag(v)))
	default:
		return fmt.Errorf("%w: %s is not a complex type", ErrUnsupportedDatatype, dt)
	}
	return nil
}

// decodeRGB converts one RGB24 voxel's raw bytes.
func decodeRGB(raw []byte, dt Datatype) ([3]uint8, error) {
	if dt != RGB24 {
		return [3]uint8{}, fmt.Errorf("%w: %s is not an rgb type", ErrUnsupportedDatatype, dt)
	}
	if len(raw) < 3 {
		return [3]uint8{}, fmt.Errorf("%w: %d bytes for rgb voxel", ErrFormat, len(raw))
	}
	return [3]uint8{raw[0], raw[1], raw[2]}, nil
}

// encodeRGB writes one RGB24 voxel.
func encodeRGB(dst []byte, v [3]uint8, dt Datatype) error {
	if dt != RGB24 {
		return fmt.Errorf("%w: %s is not an rgb type", ErrUnsupportedDatatype, dt)
	}
	if len(dst) < 3 {
		return fmt.Errorf("%w: %d bytes for rgb voxel", ErrFormat, len(dst))
	}
	dst[0], dst[1], dst[2] = v[0], v[1], v[2]
	return nil
}

func clamp(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CodeForKind picks the on-disk code for a host element kind and bit
// width: the smallest lossless code covering both, falling back to Float64
// when no real-valued code is wide enough. Kinds with no covering code at
// all fail with ErrUnsupportedDatatype.
func CodeForKind(kind Kind, bits int) (Datatype, error) {
	candidates := map[Kind][]Datatype{
		KindInt:     {Int8, Int16, Int32, Int64},
		KindUint:    {Uint8, Uint16, Uint32, Uint64},
		KindFloat:   {Float32, Float64},
		KindComplex: {Complex64, Complex128},
		KindRGB:     {RGB24},
	}
	list, ok := candidates[kind]
	if !ok {
		return 0, fmt.Errorf("%w: kind %v", ErrUnsupportedDatatype, kind)
	}
	for _, dt := range list {
		if dt.Bits() >= bits {
			return dt, nil
		}
	}
	// Real values wider than 64 bits cannot be stored losslessly; the
	// widest float is the documented compatibility fallback.
	if kind == KindInt || kind == KindUint || kind == KindFloat {
		return Float64, nil
	}
	return 0, fmt.Errorf("%w: no code covers %v/%d bits", ErrUnsupportedDatatype, kind, bits)
}
