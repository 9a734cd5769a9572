package nifti

import "fmt"

// validateHeader checks the structural invariants a header must satisfy
// before its voxel buffer can be interpreted.
func validateHeader(h *Header) error {
	if h.SizeofHdr != headerSize {
		return fmt.Errorf("%w: sizeof_hdr is %d", ErrFormat, h.SizeofHdr)
	}
	if h.Magic != MagicSingle && h.Magic != MagicPair {
		return fmt.Errorf("%w: bad magic %q", ErrFormat, cstring(h.Magic[:]))
	}
	n := h.NDim()
	if n < 1 || n > MaxDims {
		return fmt.Errorf("%w: dim[0] = %d", ErrDimension, h.Dim[0])
	}
	for i := 1; i <= n; i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("%w: dim[%d] = %d", ErrDimension, i, h.Dim[i])
		}
	}
	info, ok := datatypes[h.Datatype]
	if !ok {
		return fmt.Errorf("%w: code %d", ErrUnsupportedDatatype, h.Datatype)
	}
	if h.Bitpix != info.bits {
		return fmt.Errorf("%w: bitpix %d does not match datatype %s", ErrFormat, h.Bitpix, h.Datatype)
	}
	for i := 1; i <= n && i <= 3; i++ {
		if h.Pixdim[i] < 0 {
			return fmt.Errorf("%w: pixdim[%d] = %g is negative", ErrValidation, i, h.Pixdim[i])
		}
	}
	return nil
}

// validateImage checks the image-level invariant: the buffer length always
// matches what the header's dim and bitpix imply.
func validateImage(img *Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrValidation)
	}
	if err := validateHeader(&img.hdr); err != nil {
		return err
	}
	size, err := img.hdr.dataSize()
	if err != nil {
		return err
	}
	if int64(len(img.data)) != size {
		return fmt.Errorf("%w: buffer is %d bytes, header implies %d", ErrValidation, len(img.data), size)
	}
	return nil
}
