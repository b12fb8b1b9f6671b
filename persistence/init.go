package persistence

import (
	"io"

	"github.com/pkg/errors"
)

// Dev is the interface required from the device.
type Dev interface {
	io.ReadWriteSeeker
	Sync() error
	Size() int64
	Truncate(size int64) error
	Close() error
}

// Initialize wipes the content of the device.
func Initialize(dev Dev) error {
	if err := dev.Truncate(0); err != nil {
		return err
	}
	if _, err := dev.Seek(0, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	return dev.Sync()
}
