package nifti

import "errors"

var (
	ErrFormat              = errors.New("nifti: invalid file format")
	ErrCompression         = errors.New("nifti: compression error")
	ErrUnsupportedDatatype = errors.New("nifti: unsupported datatype")
	ErrDimension           = errors.New("nifti: invalid dimensions")
	ErrAllocation          = errors.New("nifti: allocation too large")
	ErrLimitExceeded       = errors.New("nifti: limit exceeded")
	ErrValidation          = errors.New("nifti: validation failed")
	ErrField               = errors.New("nifti: unknown or invalid header field")
	ErrReleased            = errors.New("nifti: image released")
)
