package nifti

import "github.com/klauspost/compress/gzip"

type readConfig struct {
	limits Limits
}

type ReadOption func(*readConfig)

func WithReadLimits(l Limits) ReadOption {
	return func(c *readConfig) { c.limits = l }
}

type writeConfig struct {
	limits      Limits
	compress    bool
	compressSet bool
	gzipLevel   int
}

type WriteOption func(*writeConfig)

func WithWriteLimits(l Limits) WriteOption {
	return func(c *writeConfig) { c.limits = l }
}

// WithCompression forces gzip on or off regardless of the target path's
// extension. Without it, a .gz suffix decides.
func WithCompression(on bool) WriteOption {
	return func(c *writeConfig) {
		c.compress = on
		c.compressSet = true
	}
}

// WithGzipLevel sets the gzip compression level used when compressing.
func WithGzipLevel(level int) WriteOption {
	return func(c *writeConfig) { c.gzipLevel = level }
}

func defaultWriteConfig() writeConfig {
	return writeConfig{
		limits:    defaultLimits(),
		gzipLevel: gzip.DefaultCompression,
	}
}
