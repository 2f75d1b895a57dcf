package system

import (
	"context"
	"strings"
)

// VolumeKind distinguishes whole disks from partitions
type VolumeKind string

const (
	KindDisk      VolumeKind = "disk"
	KindPartition VolumeKind = "partition"
)

// Volume describes one addressable storage device or partition.
// A Volume is built fresh by every Enumerate call and must not be cached:
// the device behind an identifier can change between two calls.
type Volume struct {
	Identifier     string     `json:"identifier"`
	Label          string     `json:"label"`
	Kind           VolumeKind `json:"kind"`
	Parent         string     `json:"parent,omitempty"`
	CapacityBytes  uint64     `json:"capacityBytes"`
	Filesystem     string     `json:"filesystem"`
	SerialNumber   string     `json:"serialNumber"`
	IsSystemVolume bool       `json:"isSystemVolume"`
	Removable      bool       `json:"removable"`
	ReadOnly       bool       `json:"readOnly"`
	MountPoints    []string   `json:"mountPoints,omitempty"`
}

// Enumerator lists the volumes currently visible to the host.
// Implementations are read-only: they never open a device for writing.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]Volume, error)
}

// HostProbe answers which volumes hold the running operating system.
// It is an independent signal from Volume.IsSystemVolume.
type HostProbe interface {
	BootIdentifiers(ctx context.Context) ([]string, error)
}

// Options configures the platform enumerator
type Options struct {
	// ProtectedMounts - точки монтирования, делающие устройство системным
	ProtectedMounts []string
}

// NormalizeIdentifier приводит идентификатор к каноническому виду для сравнения:
// буква диска в верхнем регистре без завершающего слэша, пути устройств как есть.
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	if isDriveLetter(strings.TrimRight(id, `\/`)) {
		return strings.ToUpper(strings.TrimRight(id, `\/`))
	}
	if strings.HasPrefix(id, `\\.\`) && isDriveLetter(id[4:]) {
		return strings.ToUpper(id[4:])
	}
	return id
}

// IsDeviceIdentifier reports whether id has the shape of a platform device handle:
// an absolute /dev path, a drive letter, or a Win32 device namespace path.
func IsDeviceIdentifier(id string) bool {
	if id == "" || strings.ContainsRune(id, 0) || strings.TrimSpace(id) != id {
		return false
	}
	switch {
	case strings.HasPrefix(id, "/dev/"):
		rest := id[len("/dev/"):]
		return rest != "" && !strings.Contains(rest, "..") && !strings.HasSuffix(rest, "/")
	case isDriveLetter(strings.TrimRight(id, `\`)):
		return true
	case strings.HasPrefix(id, `\\.\`):
		return len(id) > 4
	}
	return false
}

func isDriveLetter(s string) bool {
	if len(s) != 2 || s[1] != ':' {
		return false
	}
	c := s[0] | 0x20
	return c >= 'a' && c <= 'z'
}

// FindVolume ищет том по идентификатору в свежем списке
func FindVolume(volumes []Volume, identifier string) (Volume, bool) {
	want := NormalizeIdentifier(identifier)
	for _, v := range volumes {
		if NormalizeIdentifier(v.Identifier) == want {
			return v, true
		}
	}
	return Volume{}, false
}
