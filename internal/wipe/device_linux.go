//go:build linux

package wipe

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"datasanitizer/internal/reason"
)

// BlockOpener открывает блочные устройства Linux
type BlockOpener struct{}

// NewOpener возвращает Opener для текущей платформы
func NewOpener() Opener {
	return BlockOpener{}
}

// OpenExclusive: O_EXCL на блочном устройстве даёт EBUSY, если оно смонтировано
// или открыто эксклюзивно кем-то ещё
func (BlockOpener) OpenExclusive(identifier string) (Device, error) {
	return openBlock(identifier, unix.O_RDWR|unix.O_EXCL|unix.O_CLOEXEC)
}

func (BlockOpener) OpenRead(identifier string) (Device, error) {
	return openBlock(identifier, unix.O_RDONLY|unix.O_CLOEXEC)
}

func openBlock(identifier string, flags int) (Device, error) {
	fd, err := unix.Open(identifier, flags, 0)
	if err != nil {
		return nil, reason.Wrap(&os.PathError{Op: "open", Path: identifier, Err: err}, reason.AccessDenied, "open device")
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, reason.Wrap(err, reason.AccessDenied, "fstat %s", identifier)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		unix.Close(fd)
		return nil, reason.New(reason.AccessDenied, "%s is not a block device", identifier)
	}
	return &blockDevice{f: os.NewFile(uintptr(fd), identifier), fd: fd}, nil
}

type blockDevice struct {
	f  *os.File
	fd int
}

func (d *blockDevice) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }
func (d *blockDevice) ReadAt(p []byte, off int64) (int, error)  { return d.f.ReadAt(p, off) }

func (d *blockDevice) Sync() error {
	return unix.Fdatasync(d.fd)
}

func (d *blockDevice) Size() (uint64, error) {
	end, err := d.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := d.f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return uint64(end), nil
}

func (d *blockDevice) DropCache(off, length int64) error {
	return unix.Fadvise(d.fd, off, length, unix.FADV_DONTNEED)
}

func (d *blockDevice) Close() error {
	return d.f.Close()
}
