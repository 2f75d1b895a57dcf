//go:build windows

package wipe

import (
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"

	"datasanitizer/internal/reason"
)

const (
	fsctlLockVolume        = 0x00090018
	fsctlUnlockVolume      = 0x0009001C
	fsctlDismountVolume    = 0x00090020
	ioctlDiskGetLengthInfo = 0x0007405C
)

// VolumeOpener открывает тома Windows через \\.\X:
type VolumeOpener struct{}

// NewOpener возвращает Opener для текущей платформы
func NewOpener() Opener {
	return VolumeOpener{}
}

func devicePath(identifier string) string {
	if strings.HasPrefix(identifier, `\\.\`) {
		return identifier
	}
	return `\\.\` + strings.TrimRight(identifier, `\`)
}

// OpenExclusive блокирует и отмонтирует том; при отказе блокировки том занят
func (VolumeOpener) OpenExclusive(identifier string) (Device, error) {
	d, err := openVolume(identifier, windows.GENERIC_READ|windows.GENERIC_WRITE, windows.FILE_FLAG_WRITE_THROUGH)
	if err != nil {
		return nil, err
	}
	var returned uint32
	if err := windows.DeviceIoControl(d.h, fsctlLockVolume, nil, 0, nil, 0, &returned, nil); err != nil {
		d.f.Close()
		return nil, reason.Wrap(err, reason.AccessDenied, "lock volume %s", identifier)
	}
	d.locked = true
	if err := windows.DeviceIoControl(d.h, fsctlDismountVolume, nil, 0, nil, 0, &returned, nil); err != nil {
		d.Close()
		return nil, reason.Wrap(err, reason.AccessDenied, "dismount volume %s", identifier)
	}
	return d, nil
}

func (VolumeOpener) OpenRead(identifier string) (Device, error) {
	return openVolume(identifier, windows.GENERIC_READ, 0)
}

func openVolume(identifier string, access uint32, flags uint32) (*volumeDevice, error) {
	path := devicePath(identifier)
	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(path),
		access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		flags,
		0,
	)
	if err != nil {
		return nil, reason.Wrap(err, reason.AccessDenied, "open %s", path)
	}
	return &volumeDevice{h: h, f: os.NewFile(uintptr(h), path)}, nil
}

type volumeDevice struct {
	h      windows.Handle
	f      *os.File
	locked bool
}

func (d *volumeDevice) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }
func (d *volumeDevice) ReadAt(p []byte, off int64) (int, error)  { return d.f.ReadAt(p, off) }

func (d *volumeDevice) Sync() error {
	return windows.FlushFileBuffers(d.h)
}

func (d *volumeDevice) Size() (uint64, error) {
	var length int64
	var returned uint32
	err := windows.DeviceIoControl(d.h, ioctlDiskGetLengthInfo, nil, 0,
		(*byte)(unsafe.Pointer(&length)), uint32(unsafe.Sizeof(length)), &returned, nil)
	if err != nil {
		return 0, err
	}
	return uint64(length), nil
}

// DropCache: дескриптор записи открыт с FILE_FLAG_WRITE_THROUGH, отдельного кэша тома нет
func (d *volumeDevice) DropCache(off, length int64) error {
	return nil
}

func (d *volumeDevice) Close() error {
	if d.locked {
		var returned uint32
		_ = windows.DeviceIoControl(d.h, fsctlUnlockVolume, nil, 0, nil, 0, &returned, nil)
		d.locked = false
	}
	return d.f.Close()
}
