//go:build linux

package system

import (
	"context"

	"github.com/pilebones/go-udev/netlink"

	"datasanitizer/internal/logging"
)

// UdevWatcher слушает события udev через netlink
type UdevWatcher struct {
	logger *logging.EnterpriseLogger
}

// NewWatcher возвращает наблюдатель горячего подключения для текущей платформы
func NewWatcher(logger *logging.EnterpriseLogger) Watcher {
	return &UdevWatcher{logger: logger.Named("udev")}
}

// Watch подписывается на удаление и смену носителя у identifiers.
// Ошибка подключения к netlink не фатальна: возвращается nil канал.
func (w *UdevWatcher) Watch(ctx context.Context, identifiers ...string) (<-chan DeviceEvent, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Log("WARN", "udev netlink unavailable, hotplug detection disabled", "error", err)
		return nil, nil
	}

	wanted := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		wanted[id] = true
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, hotplugMatcher())
	out := make(chan DeviceEvent, 1)

	go func() {
		defer close(out)
		defer conn.Close()
		defer close(quit)

		for {
			select {
			case <-ctx.Done():
				return
			case uevent := <-queue:
				ev, ok := matchEvent(uevent, wanted)
				if !ok {
					continue
				}
				w.logger.Log("WARN", "watched device changed", "device", ev.Identifier, "action", ev.Action)
				select {
				case out <- ev:
				case <-ctx.Done():
				}
				return
			case err := <-errs:
				w.logger.Log("WARN", "udev monitor error", "error", err)
			}
		}
	}()

	return out, nil
}

// hotplugMatcher: SUBSYSTEM=block и ACTION=remove, либо change со сменой носителя
func hotplugMatcher() netlink.Matcher {
	remove := "remove"
	change := "change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &remove,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	})
	rules.AddRule(netlink.RuleDefinition{
		Action: &change,
		Env: map[string]string{
			"SUBSYSTEM":         "block",
			"DISK_MEDIA_CHANGE": "1",
		},
	})
	return rules
}

func matchEvent(uevent netlink.UEvent, wanted map[string]bool) (DeviceEvent, bool) {
	dev := deviceFromEnv(uevent.Env)
	if dev == "" || !wanted[dev] {
		return DeviceEvent{}, false
	}
	return DeviceEvent{Identifier: dev, Action: string(uevent.Action)}, true
}
