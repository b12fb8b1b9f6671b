//go:build test

package cache

const (
	// MaxCacheTries is the maximum number of probes using open addressing before taking over a block in cache.
	MaxCacheTries = 2
)
