package nifti

type Limits struct {
	MaxVoxelBytes      uint64 // voxel buffer size computed from dims and bitpix
	MaxExtensionBytes  uint64 // total size of all header extensions
	MaxExtensionCount  int
	MaxInflatedBytes   uint64 // whole file after gzip inflation
	MaxCompressedBytes uint64 // stored size of a gzip member
}

func defaultLimits() Limits {
	return Limits{
		MaxVoxelBytes:      8 << 30, // 8 GiB
		MaxExtensionBytes:  64 << 20,
		MaxExtensionCount:  1024,
		MaxInflatedBytes:   16 << 30,
		MaxCompressedBytes: 8 << 30,
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxVoxelBytes == 0 {
		l.MaxVoxelBytes = d.MaxVoxelBytes
	}
	if l.MaxExtensionBytes == 0 {
		l.MaxExtensionBytes = d.MaxExtensionBytes
	}
	if l.MaxExtensionCount == 0 {
		l.MaxExtensionCount = d.MaxExtensionCount
	}
	if l.MaxInflatedBytes == 0 {
		l.MaxInflatedBytes = d.MaxInflatedBytes
	}
	if l.MaxCompressedBytes == 0 {
		l.MaxCompressedBytes = d.MaxCompressedBytes
	}
	return l
}
