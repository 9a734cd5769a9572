package nifti

import (
	"fmt"
	"os"
)

// Write encodes the handle's image to path. The layout follows the path's
// extension: .nii writes a single file, .hdr or .img writes the pair (both
// halves, whichever is named). A .gz suffix or WithCompression turns on
// gzip. vox_offset and magic are recomputed for the chosen layout; the
// image in memory is not modified.
//
// Writes are not atomic: a failure partway through may leave a partial
// file behind. Callers that need atomicity should write to a temporary
// path and rename on success.
func Write(path string, h *Handle, opts ...WriteOption) error {
	cfg := defaultWriteConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()

	img := h.Image()
	if img == nil {
		return ErrReleased
	}
	// Reject before any file is created so a failed write leaves nothing.
	if err := validateImage(img); err != nil {
		return err
	}

	stem, ext, gz, err := splitNiftiPath(path)
	if err != nil {
		return err
	}
	compressed := gz
	if cfg.compressSet {
		compressed = cfg.compress
	}

	hdr := img.hdr
	extBlock := encodeExtensions(img.exts, img.order)
	if ext == ".nii" {
		hdr.Magic = MagicSingle
		hdr.VoxOffset = float32(int64(headerSize) + int64(len(extBlock)))
	} else {
		hdr.Magic = MagicPair
		hdr.VoxOffset = 0
	}
	hdrBytes, err := encodeHeader(hdr, img.order)
	if err != nil {
		return err
	}

	if ext == ".nii" {
		return writeFile(path, [][]byte{hdrBytes, extBlock, img.data}, compressed, cfg.gzipLevel)
	}

	hdrPath := stem + ".hdr"
	imgPath := stem + ".img"
	if compressed {
		hdrPath += ".gz"
		imgPath += ".gz"
	}
	if err := writeFile(hdrPath, [][]byte{hdrBytes, extBlock}, compressed, cfg.gzipLevel); err != nil {
		return err
	}
	return writeFile(imgPath, [][]byte{img.data}, compressed, cfg.gzipLevel)
}

func writeFile(path string, chunks [][]byte, compressed bool, level int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeChunks(f, chunks, compressed, level); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
