package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDeviceIdentifier(t *testing.T) {
	valid := []string{"/dev/sdb", "/dev/nvme0n1p1", "/dev/mapper/data", "D:", `E:\`, `\\.\PhysicalDrive1`}
	for _, id := range valid {
		assert.True(t, IsDeviceIdentifier(id), id)
	}
	invalid := []string{"", " /dev/sdb", "/dev/", "/dev/../etc/passwd", "sdb", "DD:", "1:", "/home/user", "/dev/sdb\x00"}
	for _, id := range invalid {
		assert.False(t, IsDeviceIdentifier(id), id)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "D:", NormalizeIdentifier(`d:\`))
	assert.Equal(t, "E:", NormalizeIdentifier(`\\.\e:`))
	assert.Equal(t, "/dev/sdb", NormalizeIdentifier(" /dev/sdb "))
}

func TestFindVolume(t *testing.T) {
	volumes := []Volume{{Identifier: "C:"}, {Identifier: "D:", Label: "DATA"}}
	v, ok := FindVolume(volumes, `d:\`)
	assert.True(t, ok)
	assert.Equal(t, "DATA", v.Label)

	_, ok = FindVolume(volumes, "Z:")
	assert.False(t, ok)
}

func TestDeviceFromEnv(t *testing.T) {
	assert.Equal(t, "/dev/sdb", deviceFromEnv(map[string]string{"DEVNAME": "/dev/sdb"}))
	assert.Equal(t, "/dev/sdb1", deviceFromEnv(map[string]string{"DEVNAME": "sdb1"}))
	assert.Equal(t, "/dev/sdc", deviceFromEnv(map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/block/sdc"}))
	assert.Equal(t, "", deviceFromEnv(map[string]string{}))
}
