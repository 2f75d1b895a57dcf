// Package testsupport provides in-memory stand-ins for block devices and host
// queries so the sanitization pipeline can be exercised without root or real disks.
package testsupport

import (
	"io"
	"sync"
	"syscall"

	"datasanitizer/internal/reason"
	"datasanitizer/internal/wipe"
)

// Disk - содержимое одного фиктивного устройства
type Disk struct {
	mu   sync.Mutex
	data []byte

	// FailWrites - число следующих WriteAt, завершающихся WriteErr
	FailWrites int
	WriteErr   error
	// FailAfterWrites: после стольких успешных записей все WriteAt падают с WriteErr (0 - выкл.)
	FailAfterWrites int
	// Corrupt вызывается после закрытия дескриптора записи (порча содержимого до верификации)
	Corrupt func(data []byte)
	// OnWrite вызывается после каждой успешной записи
	OnWrite func(off int64, n int)

	Writes  int
	Syncs   int
	Opens   int
	Reads   int
	Dropped bool
}

// Bytes копия содержимого
func (d *Disk) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}

// WriteCount число успешных WriteAt
func (d *Disk) WriteCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Writes
}

// MemOpener - Opener поверх карты фиктивных дисков
type MemOpener struct {
	mu      sync.Mutex
	disks   map[string]*Disk
	OpenErr error
}

func NewMemOpener() *MemOpener {
	return &MemOpener{disks: make(map[string]*Disk)}
}

// AddDisk регистрирует устройство размера size, заполненное fill
func (o *MemOpener) AddDisk(identifier string, size int, fill byte) *Disk {
	data := make([]byte, size)
	for i := range data {
		data[i] = fill
	}
	d := &Disk{data: data, WriteErr: syscall.EIO}
	o.mu.Lock()
	o.disks[identifier] = d
	o.mu.Unlock()
	return d
}

// Disk возвращает зарегистрированное устройство
func (o *MemOpener) Disk(identifier string) *Disk {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disks[identifier]
}

// TotalOpens число открытий всех устройств
func (o *MemOpener) TotalOpens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, d := range o.disks {
		d.mu.Lock()
		total += d.Opens
		d.mu.Unlock()
	}
	return total
}

func (o *MemOpener) OpenExclusive(identifier string) (wipe.Device, error) {
	return o.open(identifier, true)
}

func (o *MemOpener) OpenRead(identifier string) (wipe.Device, error) {
	return o.open(identifier, false)
}

func (o *MemOpener) open(identifier string, writable bool) (wipe.Device, error) {
	if o.OpenErr != nil {
		return nil, reason.Wrap(o.OpenErr, reason.AccessDenied, "open %s", identifier)
	}
	d := o.Disk(identifier)
	if d == nil {
		return nil, reason.New(reason.AccessDenied, "open %s: no such device", identifier)
	}
	d.mu.Lock()
	d.Opens++
	d.mu.Unlock()
	return &memDevice{disk: d, writable: writable}, nil
}

type memDevice struct {
	disk     *Disk
	writable bool
	closed   bool
}

func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	d := m.disk
	d.mu.Lock()
	if !m.writable {
		d.mu.Unlock()
		return 0, syscall.EBADF
	}
	if d.FailWrites > 0 {
		d.FailWrites--
		err := d.WriteErr
		d.mu.Unlock()
		return 0, err
	}
	if d.FailAfterWrites > 0 && d.Writes >= d.FailAfterWrites {
		err := d.WriteErr
		d.mu.Unlock()
		return 0, err
	}
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		d.mu.Unlock()
		return 0, syscall.ENOSPC
	}
	n := copy(d.data[off:], p)
	d.Writes++
	hook := d.OnWrite
	d.mu.Unlock()
	if hook != nil {
		hook(off, n)
	}
	return n, nil
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	d := m.disk
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Reads++
	if off >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memDevice) Sync() error {
	m.disk.mu.Lock()
	m.disk.Syncs++
	m.disk.mu.Unlock()
	return nil
}

func (m *memDevice) Size() (uint64, error) {
	m.disk.mu.Lock()
	defer m.disk.mu.Unlock()
	return uint64(len(m.disk.data)), nil
}

func (m *memDevice) DropCache(off, length int64) error {
	m.disk.mu.Lock()
	m.disk.Dropped = true
	m.disk.mu.Unlock()
	return nil
}

func (m *memDevice) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	d := m.disk
	d.mu.Lock()
	corrupt := d.Corrupt
	if m.writable && corrupt != nil {
		corrupt(d.data)
	}
	d.mu.Unlock()
	return nil
}
