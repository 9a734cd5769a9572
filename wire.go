package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// decodeHeader parses the fixed 348-byte header from data. Byte order is
// resolved by probing sizeof_hdr against both endiannesses; the resolved
// order is returned so the caller can interpret the voxel buffer and any
// extensions the same way.
func decodeHeader(data []byte) (Header, binary.ByteOrder, error) {
	if len(data) < int(headerSize) {
		return Header{}, nil, fmt.Errorf("%w: header truncated at %d bytes", ErrFormat, len(data))
	}
	var order binary.ByteOrder
	switch {
	case int32(binary.LittleEndian.Uint32(data[:4])) == headerSize:
		order = binary.LittleEndian
	case int32(binary.BigEndian.Uint32(data[:4])) == headerSize:
		order = binary.BigEndian
	default:
		return Header{}, nil, fmt.Errorf("%w: sizeof_hdr is %d in either byte order", ErrFormat,
			binary.LittleEndian.Uint32(data[:4]))
	}
	var h Header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), order, &h); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if h.Magic != MagicSingle && h.Magic != MagicPair {
		return Header{}, nil, fmt.Errorf("%w: bad magic %q", ErrFormat, cstring(h.Magic[:]))
	}
	info, ok := datatypes[h.Datatype]
	if !ok {
		return Header{}, nil, fmt.Errorf("%w: code %d", ErrUnsupportedDatatype, h.Datatype)
	}
	if h.Bitpix != info.bits {
		return Header{}, nil, fmt.Errorf("%w: bitpix %d does not match datatype %s (%d bits)",
			ErrFormat, h.Bitpix, h.Datatype, info.bits)
	}
	return h, order, nil
}

// encodeHeader serializes h in the given byte order.
func encodeHeader(h Header, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(headerSize))
	if err := binary.Write(&buf, order, &h); err != nil {
		return nil, err
	}
	if buf.Len() != int(headerSize) {
		return nil, fmt.Errorf("%w: encoded header is %d bytes", ErrFormat, buf.Len())
	}
	return buf.Bytes(), nil
}

// parseExtensions reads the extender flag and any extension blocks from
// data, which starts immediately after the fixed header. It returns the
// extensions and the number of bytes consumed including the extender.
func parseExtensions(data []byte, order binary.ByteOrder, limits Limits) ([]Extension, int64, error) {
	if len(data) < extenderSize {
		// Dual-file headers may end at exactly 348 bytes.
		if len(data) == 0 {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("%w: truncated extender flag", ErrFormat)
	}
	if data[0] == 0 {
		return nil, extenderSize, nil
	}
	var (
		exts     []Extension
		consumed = int64(extenderSize)
		total    uint64
	)
	rest := data[extenderSize:]
	for len(rest) > 0 {
		if len(rest) < 8 {
			return nil, 0, fmt.Errorf("%w: truncated extension prologue", ErrFormat)
		}
		esize := int32(order.Uint32(rest[0:4]))
		ecode := int32(order.Uint32(rest[4:8]))
		if esize < 16 || esize%16 != 0 {
			return nil, 0, fmt.Errorf("%w: extension size %d", ErrFormat, esize)
		}
		if int(esize) > len(rest) {
			return nil, 0, fmt.Errorf("%w: extension size %d exceeds remaining %d bytes", ErrFormat, esize, len(rest))
		}
		total += uint64(esize)
		if total > limits.MaxExtensionBytes {
			return nil, 0, fmt.Errorf("%w: extensions exceed %d bytes", ErrLimitExceeded, limits.MaxExtensionBytes)
		}
		if len(exts) >= limits.MaxExtensionCount {
			return nil, 0, fmt.Errorf("%w: more than %d extensions", ErrLimitExceeded, limits.MaxExtensionCount)
		}
		payload := make([]byte, esize-8)
		copy(payload, rest[8:esize])
		exts = append(exts, Extension{Code: ecode, Data: payload})
		rest = rest[esize:]
		consumed += int64(esize)
	}
	return exts, consumed, nil
}

// encodeExtensions serializes the extender flag and extension blocks. Each
// block is padded with zero bytes up to the required multiple of 16.
func encodeExtensions(exts []Extension, order binary.ByteOrder) []byte {
	if len(exts) == 0 {
		return make([]byte, extenderSize)
	}
	var buf bytes.Buffer
	buf.Write([]byte{1, 0, 0, 0})
	for _, e := range exts {
		esize := e.size()
		var prologue [8]byte
		order.PutUint32(prologue[0:4], uint32(esize))
		order.PutUint32(prologue[4:8], uint32(e.Code))
		buf.Write(prologue[:])
		buf.Write(e.Data)
		for pad := esize - int64(8+len(e.Data)); pad > 0; pad-- {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// extensionBytes returns the on-disk size of the extender flag plus all
// extension blocks.
func extensionBytes(exts []Extension) int64 {
	n := int64(extenderSize)
	for _, e := range exts {
		n += e.size()
	}
	return n
}
