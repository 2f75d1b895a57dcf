package system

import (
	"context"
	"strings"
)

// DeviceEvent сообщает, что устройство пропало или сменило носитель
type DeviceEvent struct {
	Identifier string
	Action     string
}

// Watcher следит за горячим подключением блочных устройств.
// Watch возвращает nil канал, если источник событий недоступен:
// наблюдение не обязательно для выполнения задания.
type Watcher interface {
	Watch(ctx context.Context, identifiers ...string) (<-chan DeviceEvent, error)
}

// NopWatcher никогда не присылает событий
type NopWatcher struct{}

func (NopWatcher) Watch(context.Context, ...string) (<-chan DeviceEvent, error) {
	return nil, nil
}

// deviceFromEnv достаёт путь устройства из окружения uevent
func deviceFromEnv(env map[string]string) string {
	if devname := env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			// в событиях ядра DEVNAME относительный
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(strings.TrimRight(devpath, "/"), "/")
	if last := parts[len(parts)-1]; last != "" {
		return "/dev/" + last
	}
	return ""
}
