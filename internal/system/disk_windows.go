//go:build windows

package system

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sys/windows"

	"datasanitizer/internal/reason"
)

// fileReadOnlyVolume флаг FILE_READ_ONLY_VOLUME из GetVolumeInformation
const fileReadOnlyVolume = 0x00080000

// Win32Enumerator перечисляет логические диски через Windows API
type Win32Enumerator struct {
	protected map[string]bool
}

// NewEnumerator возвращает перечислитель томов для текущей платформы
func NewEnumerator(opts Options) Enumerator {
	protected := make(map[string]bool)
	for _, m := range opts.ProtectedMounts {
		protected[NormalizeIdentifier(m)] = true
	}
	return &Win32Enumerator{protected: protected}
}

// Enumerate реализует Enumerator
func (e *Win32Enumerator) Enumerate(ctx context.Context) ([]Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "enumeration cancelled")
	}

	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "GetLogicalDrives")
	}
	systemDrive := windowsDrive()

	var volumes []Volume
	for c := 0; c < 26; c++ {
		if mask&(1<<uint(c)) == 0 {
			continue
		}
		letter := string(rune('A'+c)) + ":"
		root := letter + `\`

		driveType := windows.GetDriveType(windows.StringToUTF16Ptr(root))
		if driveType != windows.DRIVE_FIXED && driveType != windows.DRIVE_REMOVABLE {
			// сетевые, CD-ROM и RAM-диски пропускаем
			continue
		}

		vol := Volume{
			Identifier:     letter,
			Kind:           KindPartition,
			Removable:      driveType == windows.DRIVE_REMOVABLE,
			IsSystemVolume: letter == systemDrive || e.protected[letter],
			MountPoints:    []string{root},
		}
		readVolumeInformation(root, &vol)

		var freeAvail, total, free uint64
		if err := windows.GetDiskFreeSpaceEx(windows.StringToUTF16Ptr(root), &freeAvail, &total, &free); err == nil {
			vol.CapacityBytes = total
		}
		volumes = append(volumes, vol)
	}

	sort.SliceStable(volumes, func(i, j int) bool { return volumes[i].Identifier < volumes[j].Identifier })
	return volumes, nil
}

func readVolumeInformation(root string, vol *Volume) {
	var (
		label  [windows.MAX_PATH + 1]uint16
		fsName [windows.MAX_PATH + 1]uint16
		serial uint32
		maxLen uint32
		flags  uint32
	)
	err := windows.GetVolumeInformation(
		windows.StringToUTF16Ptr(root),
		&label[0], uint32(len(label)),
		&serial, &maxLen, &flags,
		&fsName[0], uint32(len(fsName)),
	)
	if err != nil {
		// носитель не вставлен или том не отформатирован: поля остаются пустыми
		return
	}
	vol.Label = windows.UTF16ToString(label[:])
	vol.Filesystem = windows.UTF16ToString(fsName[:])
	if serial != 0 {
		vol.SerialNumber = fmt.Sprintf("%04X-%04X", serial>>16, serial&0xFFFF)
	}
	vol.ReadOnly = flags&fileReadOnlyVolume != 0
}

// windowsDrive возвращает букву диска %WINDIR%
func windowsDrive() string {
	if dir, err := windows.GetWindowsDirectory(); err == nil && len(dir) >= 2 {
		return strings.ToUpper(dir[:2])
	}
	windir := os.Getenv("WINDIR")
	if len(windir) >= 2 {
		return strings.ToUpper(windir[:2])
	}
	return "C:"
}

// Win32Probe находит диски системной директории и директории Windows
type Win32Probe struct{}

// NewHostProbe возвращает probe загрузочных устройств текущей платформы
func NewHostProbe() HostProbe {
	return Win32Probe{}
}

// BootIdentifiers реализует HostProbe
func (Win32Probe) BootIdentifiers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "boot probe cancelled")
	}
	sysDir, err := windows.GetSystemDirectory()
	if err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "GetSystemDirectory")
	}
	winDir, err := windows.GetWindowsDirectory()
	if err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "GetWindowsDirectory")
	}

	seen := make(map[string]bool)
	for _, dir := range []string{sysDir, winDir} {
		if len(dir) < 2 || dir[1] != ':' {
			return nil, reason.New(reason.EnumerationError, "unexpected system path %q", dir)
		}
		seen[strings.ToUpper(dir[:2])] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
