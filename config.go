package dynhash

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/dynhash/record"
)

const (
	// DefaultMaxDepth is the max depth of the directory used if none is configured.
	DefaultMaxDepth = 16

	// DefaultCacheBlocks is the number of blocks cached per file by default.
	DefaultCacheBlocks = 64
)

// Config is the configuration of the hash file.
type Config struct {
	// MainPath is the path of the file storing main blocks.
	MainPath string
	// OverflowPath is the path of the file storing overflow blocks.
	OverflowPath string
	// MainBlockingFactor is the number of records in the main block.
	MainBlockingFactor int
	// OverflowBlockingFactor is the number of records in the overflow block.
	OverflowBlockingFactor int
	// MaxDepth is the maximum depth of the directory, deeper collisions go to overflow blocks.
	MaxDepth int
	// CacheBlocks is the number of blocks cached in memory per file, 0 disables the cache.
	CacheBlocks int64
	// Logger is the logger to use, nothing is logged if nil.
	Logger *zap.Logger
}

// DefaultConfig returns default config for files stored under provided paths.
func DefaultConfig(mainPath, overflowPath string) Config {
	return Config{
		MainPath:               mainPath,
		OverflowPath:           overflowPath,
		MainBlockingFactor:     5,
		OverflowBlockingFactor: 10,
		MaxDepth:               DefaultMaxDepth,
		CacheBlocks:            DefaultCacheBlocks,
	}
}

// Validate verifies the config.
func (c Config) Validate() error {
	if c.MainBlockingFactor <= 0 {
		return errors.Errorf("main blocking factor must be positive, provided: %d", c.MainBlockingFactor)
	}
	if c.OverflowBlockingFactor <= 0 {
		return errors.Errorf("overflow blocking factor must be positive, provided: %d", c.OverflowBlockingFactor)
	}
	if c.MaxDepth < 1 || c.MaxDepth > record.KeyBits {
		return errors.Errorf("max depth must be in range [1, %d], provided: %d", record.KeyBits, c.MaxDepth)
	}
	if c.CacheBlocks < 0 {
		return errors.Errorf("number of cached blocks can't be negative, provided: %d", c.CacheBlocks)
	}
	return nil
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Info describes the hash file.
type Info struct {
	MainBlockingFactor     int
	OverflowBlockingFactor int
	RecordType             string
	MainPath               string
	OverflowPath           string
	MaxDepth               int
}
