// Package nifti implements reading, writing, and in-memory manipulation of
// the NIfTI-1 neuroimaging file format.
//
// NIfTI-1 stores a multidimensional numeric array (up to 7 axes) annotated
// with physical-space metadata: voxel spacing, units, two independent
// orientation transforms (quaternion-based qform and matrix-based sform),
// and an affine intensity rescale.
//
// # File Format Overview
//
// A NIfTI-1 file consists of:
//   - A 348-byte fixed header, little- or big-endian
//   - A 4-byte extender flag, optionally followed by extension blocks
//   - The voxel data, starting at the header's vox_offset
//
// Two on-disk layouts exist: single-file (.nii), where header and voxels
// share one file, and dual-file (.hdr + .img), where they are split. Either
// layout may be gzip-compressed (.nii.gz, .hdr.gz, .img.gz); compression is
// detected transparently on read.
//
// # Basic Usage
//
// To read an image:
//
//	h, err := nifti.Read("brain.nii.gz")
//	if err != nil {
//		...
//	}
//	defer h.Release()
//	img := h.Image()
//	v, err := img.At(48, 48, 30)
//
// To create and write one:
//
//	img, _ := nifti.NewImage([]int{96, 96, 60}, nifti.Float32)
//	h := nifti.NewHandle(img)
//	defer h.Release()
//	err := nifti.Write("out.nii.gz", h)
//
// # Handles and Arrays
//
// Images are owned through reference-counted [Handle] values; an image is
// released when its last handle goes away unless it has been marked
// persistent. [ToArray] exposes an image's voxel buffer to callers as an
// [Array] without copying, carrying a weak back-reference so [FromArray]
// can recover the full image later. When the back-reference has been lost,
// FromArray rebuilds the image from the array's shape and element type
// alone and reports that the defaults path ran.
//
// # Safety
//
// Decoding enforces configurable [Limits] on header, extension, and voxel
// buffer sizes, including the inflated size of compressed inputs, so a
// malformed or hostile file cannot trigger oversized allocations.
package nifti
