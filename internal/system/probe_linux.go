//go:build linux

package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"

	"datasanitizer/internal/reason"
)

// bootPaths - пути, устройство которых считается загрузочным
var bootPaths = []string{"/", "/boot", "/boot/efi"}

// StatProbe находит устройства корня и загрузочных разделов через stat(2) и sysfs.
// Это независимый от mountinfo сигнал.
type StatProbe struct {
	SysRoot string
	Paths   []string
	// Stat возвращает major/minor устройства пути (подменяется в тестах)
	Stat func(path string) (major, minor uint32, err error)
}

// NewHostProbe возвращает probe загрузочных устройств текущей платформы
func NewHostProbe() HostProbe {
	return &StatProbe{SysRoot: "/sys", Paths: bootPaths, Stat: statDevice}
}

func statDevice(path string) (uint32, uint32, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, err
	}
	dev := uint64(st.Dev) // на части архитектур Dev 32-битный
	return unix.Major(dev), unix.Minor(dev), nil
}

// BootIdentifiers реализует HostProbe
func (p *StatProbe) BootIdentifiers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, reason.Wrap(err, reason.EnumerationError, "boot probe cancelled")
	}

	seen := make(map[string]bool)
	for i, path := range p.Paths {
		major, minor, err := p.Stat(path)
		if err != nil {
			if i == 0 {
				// без корня решение о безопасности принять нельзя
				return nil, reason.Wrap(err, reason.EnumerationError, "stat %s", path)
			}
			continue
		}
		if major == 0 {
			// tmpfs, overlay и прочие анонимные устройства
			continue
		}
		link := filepath.Join(p.SysRoot, "dev", "block", fmt.Sprintf("%d:%d", major, minor))
		resolved, err := filepath.EvalSymlinks(link)
		if err != nil {
			if i == 0 {
				return nil, reason.Wrap(err, reason.EnumerationError, "resolve %s", link)
			}
			continue
		}
		p.collect(resolved, seen, 0)
	}

	if len(seen) == 0 {
		// корень на анонимном устройстве: отдавать пустой список нельзя,
		// вызывающий трактует ошибку как "системный том"
		return nil, reason.New(reason.EnumerationError, "no block device backs the root filesystem")
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// collect добавляет устройство, его родительский диск и все slaves
func (p *StatProbe) collect(sysPath string, seen map[string]bool, depth int) {
	name := filepath.Base(sysPath)
	seen["/dev/"+name] = true

	if fileExists(filepath.Join(sysPath, "partition")) {
		parent := filepath.Dir(sysPath)
		seen["/dev/"+filepath.Base(parent)] = true
	}
	if depth > 8 {
		return
	}
	slaves, err := os.ReadDir(filepath.Join(sysPath, "slaves"))
	if err != nil {
		return
	}
	for _, s := range slaves {
		slavePath, err := filepath.EvalSymlinks(filepath.Join(p.SysRoot, "class", "block", s.Name()))
		if err != nil {
			slavePath = filepath.Join(p.SysRoot, "class", "block", s.Name())
		}
		p.collect(slavePath, seen, depth+1)
	}
}
