//go:build linux

package system

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/moby/sys/mountinfo"

	"datasanitizer/internal/reason"
)

const sysfsSectorSize = 512

// MountLister возвращает таблицу монтирования (подменяется в тестах)
type MountLister func() ([]*mountinfo.Info, error)

// SysfsEnumerator перечисляет блочные устройства через sysfs и mountinfo
type SysfsEnumerator struct {
	SysRoot  string // обычно /sys
	ProcRoot string // обычно /proc
	RunRoot  string // обычно /run, база udev
	Mounts   MountLister

	protected map[string]bool
}

// NewEnumerator возвращает перечислитель томов для текущей платформы
func NewEnumerator(opts Options) Enumerator {
	return NewSysfsEnumerator("/sys", "/proc", "/run", opts)
}

func NewSysfsEnumerator(sysRoot, procRoot, runRoot string, opts Options) *SysfsEnumerator {
	protected := make(map[string]bool, len(opts.ProtectedMounts))
	for _, m := range opts.ProtectedMounts {
		protected[filepath.Clean(m)] = true
	}
	return &SysfsEnumerator{
		SysRoot:   sysRoot,
		ProcRoot:  procRoot,
		RunRoot:   runRoot,
		Mounts:    func() ([]*mountinfo.Info, error) { return mountinfo.GetMounts(nil) },
		protected: protected,
	}
}

type blockEntry struct {
	vol     Volume
	sysPath string
	devNum  string
}

// Enumerate реализует Enumerator
func (e *SysfsEnumerator) Enumerate(ctx context.Context) ([]Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "enumeration cancelled")
	}

	blockDir := filepath.Join(e.SysRoot, "block")
	dirEntries, err := os.ReadDir(blockDir)
	if err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "read %s", blockDir)
	}

	mounts, err := e.Mounts()
	if err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "read mount table")
	}
	byDevice := indexMounts(mounts)
	swaps := e.readSwaps()

	var disks []*blockEntry
	partsOf := make(map[string][]*blockEntry)

	for _, de := range dirEntries {
		name := de.Name()
		if skipDevice(name) {
			continue
		}
		diskPath := filepath.Join(blockDir, name)
		disk := e.readBlock(name, diskPath)
		if strings.HasPrefix(name, "loop") && disk.vol.CapacityBytes == 0 {
			continue
		}
		disk.vol.Kind = KindDisk
		disks = append(disks, disk)

		subs, err := os.ReadDir(diskPath)
		if err != nil {
			continue
		}
		for _, sub := range subs {
			if !fileExists(filepath.Join(diskPath, sub.Name(), "partition")) {
				continue
			}
			part := e.readBlock(sub.Name(), filepath.Join(diskPath, sub.Name()))
			part.vol.Kind = KindPartition
			part.vol.Parent = disk.vol.Identifier
			part.vol.Removable = disk.vol.Removable
			part.vol.ReadOnly = part.vol.ReadOnly || disk.vol.ReadOnly
			if part.vol.SerialNumber == "" {
				part.vol.SerialNumber = disk.vol.SerialNumber
			}
			if part.vol.Label == "" {
				part.vol.Label = disk.vol.Label
			}
			partsOf[disk.vol.Identifier] = append(partsOf[disk.vol.Identifier], part)
		}
	}

	var volumes []Volume
	for _, disk := range disks {
		parts := partsOf[disk.vol.Identifier]
		diskSystem := e.annotate(disk, byDevice, swaps)
		for _, part := range parts {
			if e.annotate(part, byDevice, swaps) {
				diskSystem = true
			}
		}
		disk.vol.IsSystemVolume = diskSystem
		volumes = append(volumes, disk.vol)
		for _, part := range parts {
			// разделы системного диска тоже системные
			part.vol.IsSystemVolume = part.vol.IsSystemVolume || diskSystem
			volumes = append(volumes, part.vol)
		}
	}

	sort.SliceStable(volumes, func(i, j int) bool { return volumes[i].Identifier < volumes[j].Identifier })
	return volumes, nil
}

func skipDevice(name string) bool {
	return strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "zram")
}

func (e *SysfsEnumerator) readBlock(name, sysPath string) *blockEntry {
	b := &blockEntry{sysPath: sysPath, devNum: readTrimmed(filepath.Join(sysPath, "dev"))}
	b.vol.Identifier = "/dev/" + name

	if sectors, err := strconv.ParseUint(readTrimmed(filepath.Join(sysPath, "size")), 10, 64); err == nil {
		b.vol.CapacityBytes = sectors * sysfsSectorSize
	}
	b.vol.ReadOnly = readTrimmed(filepath.Join(sysPath, "ro")) == "1"
	b.vol.Removable = readTrimmed(filepath.Join(sysPath, "removable")) == "1"
	b.vol.Label = readTrimmed(filepath.Join(sysPath, "device", "model"))
	b.vol.SerialNumber = readTrimmed(filepath.Join(sysPath, "device", "serial"))
	if b.vol.SerialNumber == "" {
		b.vol.SerialNumber = readTrimmed(filepath.Join(sysPath, "device", "wwid"))
	}
	return b
}

// annotate заполняет точки монтирования и ФС, возвращает признак системного устройства
func (e *SysfsEnumerator) annotate(b *blockEntry, byDevice map[string][]*mountinfo.Info, swaps map[string]bool) bool {
	system := false
	for _, alias := range e.aliases(b.sysPath, filepath.Base(b.sysPath), 0) {
		for _, m := range byDevice[alias] {
			b.vol.MountPoints = append(b.vol.MountPoints, m.Mountpoint)
			if b.vol.Filesystem == "" && alias == b.vol.Identifier {
				b.vol.Filesystem = m.FSType
			}
			if e.protected[filepath.Clean(m.Mountpoint)] {
				system = true
			}
		}
		if swaps[alias] {
			system = true
		}
	}
	if b.vol.Filesystem == "" {
		b.vol.Filesystem = e.udevFSType(b.devNum)
	}
	sort.Strings(b.vol.MountPoints)
	return system
}

// aliases возвращает имена устройства и всех его holders (dm, md) рекурсивно
func (e *SysfsEnumerator) aliases(sysPath, name string, depth int) []string {
	out := []string{"/dev/" + name}
	if dmName := readTrimmed(filepath.Join(sysPath, "dm", "name")); dmName != "" {
		out = append(out, "/dev/mapper/"+dmName)
	}
	if depth > 8 {
		return out
	}
	holders, err := os.ReadDir(filepath.Join(sysPath, "holders"))
	if err != nil {
		return out
	}
	for _, h := range holders {
		holderPath := filepath.Join(e.SysRoot, "class", "block", h.Name())
		out = append(out, e.aliases(holderPath, h.Name(), depth+1)...)
	}
	return out
}

func (e *SysfsEnumerator) readSwaps() map[string]bool {
	swaps := make(map[string]bool)
	f, err := os.Open(filepath.Join(e.ProcRoot, "swaps"))
	if err != nil {
		return swaps
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			swaps[fields[0]] = true
		}
	}
	return swaps
}

// udevFSType читает ID_FS_TYPE из базы udev для немонтированных разделов
func (e *SysfsEnumerator) udevFSType(devNum string) string {
	if devNum == "" || e.RunRoot == "" {
		return ""
	}
	f, err := os.Open(filepath.Join(e.RunRoot, "udev", "data", "b"+devNum))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v, ok := strings.CutPrefix(scanner.Text(), "E:ID_FS_TYPE="); ok {
			return v
		}
	}
	return ""
}

func indexMounts(mounts []*mountinfo.Info) map[string][]*mountinfo.Info {
	out := make(map[string][]*mountinfo.Info)
	for _, m := range mounts {
		if strings.HasPrefix(m.Source, "/dev/") {
			out[m.Source] = append(out[m.Source], m)
		}
	}
	return out
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
