package nifti

import (
	"fmt"
	"os"
	"strings"
)

// splitNiftiPath separates a NIfTI path into its stem, its layout
// extension (".nii", ".hdr", or ".img"), and whether a ".gz" suffix is
// present.
func splitNiftiPath(path string) (stem, ext string, gz bool, err error) {
	p := path
	if strings.HasSuffix(strings.ToLower(p), ".gz") {
		gz = true
		p = p[:len(p)-len(".gz")]
	}
	lower := strings.ToLower(p)
	for _, e := range []string{".nii", ".hdr", ".img"} {
		if strings.HasSuffix(lower, e) {
			return p[:len(p)-len(e)], e, gz, nil
		}
	}
	return "", "", false, fmt.Errorf("%w: %q has no NIfTI extension (.nii, .hdr, or .img)", ErrFormat, path)
}

// loadFile reads a whole file and transparently inflates it when it starts
// with the gzip magic. A .gz name without gzip content is an error.
func loadFile(path string, limits Limits) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isGzip(data) {
		return inflate(data, limits)
	}
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		return nil, fmt.Errorf("%w: %q is named .gz but is not gzip data", ErrCompression, path)
	}
	return data, nil
}

// siblingImg locates the .img companion of a dual-file header path,
// preferring whichever compression variant exists on disk.
func siblingImg(stem string) string {
	for _, candidate := range []string{stem + ".img", stem + ".img.gz"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return stem + ".img"
}

// Read decodes the NIfTI-1 file at path into a new image handle. The
// layout is chosen by filename convention: .nii for single-file, .hdr or
// .img for the dual-file pair (either half may be named). Gzip compression
// is detected by content and handled transparently. The caller owns the
// returned handle and should Release it.
func Read(path string, opts ...ReadOption) (*Handle, error) {
	cfg := readConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()

	stem, ext, _, err := splitNiftiPath(path)
	if err != nil {
		return nil, err
	}
	hdrPath := path
	if ext == ".img" {
		// Given the data half of a pair; the header is the authority.
		for _, candidate := range []string{stem + ".hdr", stem + ".hdr.gz"} {
			if _, err := os.Stat(candidate); err == nil {
				hdrPath = candidate
				break
			}
		}
		if hdrPath == path {
			hdrPath = stem + ".hdr"
		}
	}

	raw, err := loadFile(hdrPath, cfg.limits)
	if err != nil {
		return nil, err
	}
	hdr, order, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if err := validateHeader(&hdr); err != nil {
		return nil, err
	}
	size, err := hdr.dataSize()
	if err != nil {
		return nil, err
	}
	if uint64(size) > cfg.limits.MaxVoxelBytes {
		return nil, fmt.Errorf("%w: %d voxel bytes", ErrAllocation, size)
	}
	voxOffset := int64(hdr.VoxOffset)
	if float64(voxOffset) != float64(hdr.VoxOffset) || voxOffset < 0 {
		return nil, fmt.Errorf("%w: vox_offset %g", ErrFormat, hdr.VoxOffset)
	}

	img := &Image{hdr: hdr, order: order}
	if hdr.Magic == MagicSingle {
		if ext != ".nii" {
			return nil, fmt.Errorf("%w: single-file magic in %q", ErrFormat, path)
		}
		if voxOffset < baseVoxOffset || voxOffset > int64(len(raw)) {
			return nil, fmt.Errorf("%w: inconsistent vox_offset %d", ErrFormat, voxOffset)
		}
		exts, consumed, err := parseExtensions(raw[headerSize:voxOffset], order, cfg.limits)
		if err != nil {
			return nil, err
		}
		if int64(headerSize)+consumed > voxOffset {
			return nil, fmt.Errorf("%w: extensions overrun vox_offset %d", ErrFormat, voxOffset)
		}
		if voxOffset+size > int64(len(raw)) {
			return nil, fmt.Errorf("%w: voxel data truncated (%d of %d bytes)",
				ErrFormat, int64(len(raw))-voxOffset, size)
		}
		img.exts = exts
		img.data = make([]byte, size)
		copy(img.data, raw[voxOffset:voxOffset+size])
	} else {
		if ext == ".nii" {
			return nil, fmt.Errorf("%w: dual-file magic in %q", ErrFormat, path)
		}
		exts, _, err := parseExtensions(raw[headerSize:], order, cfg.limits)
		if err != nil {
			return nil, err
		}
		img.exts = exts
		imgRaw, err := loadFile(siblingImg(stem), cfg.limits)
		if err != nil {
			return nil, err
		}
		if voxOffset+size > int64(len(imgRaw)) {
			return nil, fmt.Errorf("%w: voxel data truncated (%d of %d bytes)",
				ErrFormat, int64(len(imgRaw))-voxOffset, size)
		}
		img.data = make([]byte, size)
		copy(img.data, imgRaw[voxOffset:voxOffset+size])
	}

	img.recompute()
	return NewHandle(img), nil
}
