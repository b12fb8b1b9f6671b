package memdev

import (
	"io"

	"github.com/pkg/errors"
)

var _ io.ReadWriteSeeker = &MemDev{}

// ErrClosed is returned when closed memdev is used.
var ErrClosed = errors.New("memdev is closed")

// MemDev simulates file io operations in memory. Writing past the end grows the device.
type MemDev struct {
	offset int64
	data   []byte
	closed bool
}

// New returns new memdev.
func New(size int64) *MemDev {
	return &MemDev{
		data: make([]byte, size),
	}
}

// Seek seeks the position.
func (md *MemDev) Seek(offset int64, whence int) (int64, error) {
	if md.closed {
		return 0, errors.WithStack(ErrClosed)
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = md.offset + offset
	case io.SeekEnd:
		offset = md.Size() + offset
	}

	if offset < 0 || offset > md.Size() {
		return 0, errors.Errorf("invalid offset: %d", offset)
	}

	md.offset = offset
	return offset, nil
}

// Read reads data from the memdev.
func (md *MemDev) Read(p []byte) (int, error) {
	if md.closed {
		return 0, errors.WithStack(ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if md.offset >= md.Size() {
		return 0, io.EOF
	}
	n := copy(p, md.data[md.offset:])
	md.offset += int64(n)
	return n, nil
}

// Write writes data to the memdev.
func (md *MemDev) Write(p []byte) (int, error) {
	if md.closed {
		return 0, errors.WithStack(ErrClosed)
	}
	if end := md.offset + int64(len(p)); end > md.Size() {
		md.resize(end)
	}
	n := copy(md.data[md.offset:], p)
	md.offset += int64(n)
	return n, nil
}

// Sync does nothing.
func (md *MemDev) Sync() error {
	if md.closed {
		return errors.WithStack(ErrClosed)
	}
	return nil
}

// Size returns the size of the memdev.
func (md *MemDev) Size() int64 {
	return int64(len(md.data))
}

// Truncate changes the size of the memdev.
func (md *MemDev) Truncate(size int64) error {
	if md.closed {
		return errors.WithStack(ErrClosed)
	}
	if size < 0 {
		return errors.Errorf("invalid size: %d", size)
	}
	md.resize(size)
	if md.offset > size {
		md.offset = size
	}
	return nil
}

// Close closes the memdev.
func (md *MemDev) Close() error {
	md.closed = true
	return nil
}

func (md *MemDev) resize(size int64) {
	if size <= int64(cap(md.data)) {
		old := len(md.data)
		md.data = md.data[:size]
		for i := old; i < len(md.data); i++ {
			md.data[i] = 0
		}
		return
	}
	data := make([]byte, size, 2*size)
	copy(data, md.data)
	md.data = data
}
