package security

import (
	"fmt"
	"strings"
	"time"

	"datasanitizer/internal/reason"
	"datasanitizer/internal/system"
)

// Decision итог классификации тома
type Decision string

const (
	Unsafe Decision = "Unsafe"
	Safe   Decision = "Safe"
)

// Verdict - решение классификатора для одного идентификатора.
// Нулевое значение Unsafe: Decision пустой не равен Safe.
type Verdict struct {
	Identifier string      `json:"identifier"`
	Decision   Decision    `json:"decision"`
	Reason     reason.Code `json:"reason"`
	Detail     string      `json:"detail"`
	CheckedAt  time.Time   `json:"checkedAt"`
}

// IsSafe true только для явного Safe
func (v Verdict) IsSafe() bool {
	return v.Decision == Safe && v.Reason == reason.None
}

// Err превращает небезопасный вердикт в ошибку с кодом причины
func (v Verdict) Err() error {
	if v.IsSafe() {
		return nil
	}
	code := v.Reason
	if code == reason.None || code == "" {
		code = reason.Internal
	}
	return reason.New(code, "volume %s is unsafe: %s", v.Identifier, v.Detail)
}

// HostContext - сведения о хосте, собранные непосредственно перед классификацией
type HostContext struct {
	// BootIdentifiers - результат system.HostProbe
	BootIdentifiers []string
	// ProbeErr - ошибка HostProbe; любая ошибка делает все тома системными
	ProbeErr error
	// Busy - идентификаторы томов с выполняющимся заданием
	Busy map[string]bool
	// Excluded - тома, исключённые конфигурацией
	Excluded      []string
	RemovableOnly bool
	Now           func() time.Time
}

func (h HostContext) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h HostContext) isBoot(id string) bool {
	if id == "" {
		return false
	}
	want := system.NormalizeIdentifier(id)
	for _, b := range h.BootIdentifiers {
		if system.NormalizeIdentifier(b) == want {
			return true
		}
	}
	return false
}

func (h HostContext) isBusy(id string) bool {
	return id != "" && h.Busy[system.NormalizeIdentifier(id)]
}

func (h HostContext) isExcluded(id string) bool {
	want := system.NormalizeIdentifier(id)
	for _, e := range h.Excluded {
		if system.NormalizeIdentifier(e) == want {
			return true
		}
	}
	return false
}

// Classify решает, можно ли выполнять деструктивную операцию над томом.
// Предикаты проверяются по порядку, первый сработавший определяет причину.
// Safe возвращается только если ни один не сработал.
func Classify(v system.Volume, host HostContext) Verdict {
	verdict := Verdict{
		Identifier: v.Identifier,
		Decision:   Unsafe,
		CheckedAt:  host.now(),
	}
	unsafe := func(code reason.Code, format string, args ...interface{}) Verdict {
		verdict.Reason = code
		verdict.Detail = fmt.Sprintf(format, args...)
		return verdict
	}

	// 1. идентификатор
	if !system.IsDeviceIdentifier(v.Identifier) {
		return unsafe(reason.UnresolvedIdentifier, "identifier %q does not name a device", v.Identifier)
	}

	// 2. системный том: метаданные, независимый probe или его отказ
	switch {
	case host.ProbeErr != nil:
		return unsafe(reason.SystemVolume, "host boot volume could not be determined: %v", host.ProbeErr)
	case v.IsSystemVolume:
		return unsafe(reason.SystemVolume, "volume hosts the operating system")
	case host.isBoot(v.Identifier):
		return unsafe(reason.SystemVolume, "volume backs the running system")
	case host.isBoot(v.Parent):
		return unsafe(reason.SystemVolume, "parent disk %s backs the running system", v.Parent)
	}

	// 3. запись невозможна
	switch {
	case v.CapacityBytes == 0:
		return unsafe(reason.NotWritable, "volume reports zero capacity")
	case v.ReadOnly:
		return unsafe(reason.NotWritable, "volume is read-only")
	case host.isBusy(v.Identifier):
		return unsafe(reason.NotWritable, "a sanitization job is running on this volume")
	case host.isBusy(v.Parent):
		return unsafe(reason.NotWritable, "a sanitization job is running on parent disk %s", v.Parent)
	}

	// 4. политика
	if host.isExcluded(v.Identifier) || (v.Parent != "" && host.isExcluded(v.Parent)) {
		return unsafe(reason.Excluded, "volume is listed in excluded_drives")
	}
	if host.RemovableOnly && !v.Removable {
		return unsafe(reason.Excluded, "removable_only is set and the volume is not removable")
	}

	verdict.Decision = Safe
	verdict.Reason = reason.None
	verdict.Detail = "no disqualifying condition"
	return verdict
}

// ClassifyIdentifier разрешает идентификатор по свежему перечислению и классифицирует том.
// Отсутствующий том - NotWritable: записывать некуда.
func ClassifyIdentifier(identifier string, volumes []system.Volume, host HostContext) Verdict {
	if strings.TrimSpace(identifier) == "" || !system.IsDeviceIdentifier(identifier) {
		return Classify(system.Volume{Identifier: identifier}, host)
	}
	v, ok := system.FindVolume(volumes, identifier)
	if !ok {
		return Verdict{
			Identifier: identifier,
			Decision:   Unsafe,
			Reason:     reason.NotWritable,
			Detail:     "volume not present on this host",
			CheckedAt:  host.now(),
		}
	}
	// идентификатор запроса, а не найденного тома
	verdict := Classify(v, host)
	verdict.Identifier = identifier
	return verdict
}

// BusySet строит множество занятых томов: сам том и родительский диск занятого раздела.
// Разделы занятого диска Classify проверяет через Parent.
func BusySet(active []string, volumes []system.Volume) map[string]bool {
	busy := make(map[string]bool, len(active))
	for _, id := range active {
		busy[system.NormalizeIdentifier(id)] = true
	}
	for _, v := range volumes {
		if v.Parent == "" {
			continue
		}
		child := system.NormalizeIdentifier(v.Identifier)
		parent := system.NormalizeIdentifier(v.Parent)
		if busy[child] {
			busy[parent] = true
		}
	}
	return busy
}
