//go:build linux

package system

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"
	"github.com/stretchr/testify/assert"
)

func TestHotplugMatcher(t *testing.T) {
	m := hotplugMatcher()

	assert.True(t, m.Evaluate(netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVNAME": "/dev/sdb"},
	}))
	assert.True(t, m.Evaluate(netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "block", "DISK_MEDIA_CHANGE": "1"},
	}))
	assert.False(t, m.Evaluate(netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}), "plain change events fire on every partition rescan")
	assert.False(t, m.Evaluate(netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}))
}

func TestMatchEventFiltersIdentifiers(t *testing.T) {
	wanted := map[string]bool{"/dev/sdb": true}

	ev, ok := matchEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "sdb"}}, wanted)
	assert.True(t, ok)
	assert.Equal(t, DeviceEvent{Identifier: "/dev/sdb", Action: "remove"}, ev)

	_, ok = matchEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "/dev/sdc"}}, wanted)
	assert.False(t, ok)
}
