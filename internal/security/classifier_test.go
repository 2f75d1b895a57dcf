package security

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasanitizer/internal/reason"
	"datasanitizer/internal/system"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func host() HostContext {
	return HostContext{
		BootIdentifiers: []string{"/dev/sda", "/dev/sda2"},
		Now:             func() time.Time { return fixedNow },
	}
}

func dataDisk() system.Volume {
	return system.Volume{
		Identifier:    "/dev/sdb",
		Kind:          system.KindDisk,
		CapacityBytes: 32 << 30,
		Removable:     true,
	}
}

func TestClassifyPredicates(t *testing.T) {
	tests := []struct {
		name   string
		volume func() system.Volume
		host   func() HostContext
		want   reason.Code
	}{
		{"safe data disk", dataDisk, host, reason.None},
		{"empty identifier", func() system.Volume { v := dataDisk(); v.Identifier = ""; return v }, host, reason.UnresolvedIdentifier},
		{"not a device path", func() system.Volume { v := dataDisk(); v.Identifier = "/home/user/disk.img"; return v }, host, reason.UnresolvedIdentifier},
		{"system flag", func() system.Volume { v := dataDisk(); v.IsSystemVolume = true; return v }, host, reason.SystemVolume},
		{"boot probe match", func() system.Volume { v := dataDisk(); v.Identifier = "/dev/sda"; return v }, host, reason.SystemVolume},
		{"parent on boot disk", func() system.Volume {
			return system.Volume{Identifier: "/dev/sda1", Parent: "/dev/sda", CapacityBytes: 1 << 20}
		}, host, reason.SystemVolume},
		{"probe failed", dataDisk, func() HostContext { h := host(); h.ProbeErr = errors.New("stat /: EIO"); return h }, reason.SystemVolume},
		{"zero capacity", func() system.Volume { v := dataDisk(); v.CapacityBytes = 0; return v }, host, reason.NotWritable},
		{"read only", func() system.Volume { v := dataDisk(); v.ReadOnly = true; return v }, host, reason.NotWritable},
		{"busy", dataDisk, func() HostContext { h := host(); h.Busy = map[string]bool{"/dev/sdb": true}; return h }, reason.NotWritable},
		{"parent busy", func() system.Volume {
			return system.Volume{Identifier: "/dev/sdb1", Parent: "/dev/sdb", CapacityBytes: 1 << 20}
		}, func() HostContext { h := host(); h.Busy = map[string]bool{"/dev/sdb": true}; return h }, reason.NotWritable},
		{"excluded", dataDisk, func() HostContext { h := host(); h.Excluded = []string{"/dev/sdb"}; return h }, reason.Excluded},
		{"removable only", func() system.Volume { v := dataDisk(); v.Removable = false; return v },
			func() HostContext { h := host(); h.RemovableOnly = true; return h }, reason.Excluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.volume(), tt.host())
			assert.Equal(t, tt.want, v.Reason, v.Detail)
			assert.Equal(t, tt.want == reason.None, v.IsSafe())
			assert.Equal(t, fixedNow, v.CheckedAt)
		})
	}
}

func TestClassifySystemBeatsNotWritable(t *testing.T) {
	v := system.Volume{Identifier: "/dev/sda", IsSystemVolume: true, ReadOnly: true}
	assert.Equal(t, reason.SystemVolume, Classify(v, host()).Reason)
}

func TestClassifyNeverSafeWhenAnyPredicateHolds(t *testing.T) {
	flags := []func(*system.Volume, *HostContext){
		func(v *system.Volume, _ *HostContext) { v.IsSystemVolume = true },
		func(v *system.Volume, _ *HostContext) { v.ReadOnly = true },
		func(v *system.Volume, _ *HostContext) { v.CapacityBytes = 0 },
		func(_ *system.Volume, h *HostContext) { h.ProbeErr = errors.New("probe") },
		func(_ *system.Volume, h *HostContext) { h.Busy = map[string]bool{"/dev/sdb": true} },
		func(_ *system.Volume, h *HostContext) { h.Excluded = []string{"/dev/sdb"} },
	}
	// все подмножества предикатов
	for mask := 1; mask < 1<<len(flags); mask++ {
		v := dataDisk()
		h := host()
		for i, f := range flags {
			if mask&(1<<i) != 0 {
				f(&v, &h)
			}
		}
		assert.False(t, Classify(v, h).IsSafe(), "mask %b", mask)
	}
}

func TestClassifyIdentifier(t *testing.T) {
	volumes := []system.Volume{dataDisk(), {Identifier: "D:", CapacityBytes: 1 << 30}}

	assert.Equal(t, reason.UnresolvedIdentifier, ClassifyIdentifier("", volumes, host()).Reason)
	assert.Equal(t, reason.UnresolvedIdentifier, ClassifyIdentifier("sdb", volumes, host()).Reason)

	missing := ClassifyIdentifier("/dev/sdz", volumes, host())
	assert.Equal(t, reason.NotWritable, missing.Reason)
	assert.Equal(t, "/dev/sdz", missing.Identifier)

	ok := ClassifyIdentifier(`d:\`, volumes, host())
	assert.True(t, ok.IsSafe())
	assert.Equal(t, `d:\`, ok.Identifier)
}

func TestVerdictErr(t *testing.T) {
	safe := Classify(dataDisk(), host())
	require.NoError(t, safe.Err())

	unsafe := Classify(system.Volume{Identifier: "/dev/sda", IsSystemVolume: true}, host())
	assert.Equal(t, reason.SystemVolume, reason.Of(unsafe.Err()))

	assert.False(t, Verdict{}.IsSafe())
	assert.Equal(t, reason.Internal, reason.Of(Verdict{}.Err()))
}

func TestBusySetMarksParentOfBusyPartition(t *testing.T) {
	volumes := []system.Volume{
		{Identifier: "/dev/sdb", Kind: system.KindDisk},
		{Identifier: "/dev/sdb1", Parent: "/dev/sdb", Kind: system.KindPartition},
		{Identifier: "/dev/sdb2", Parent: "/dev/sdb", Kind: system.KindPartition},
	}
	busy := BusySet([]string{"/dev/sdb1"}, volumes)
	assert.True(t, busy["/dev/sdb"])
	assert.True(t, busy["/dev/sdb1"])

	h := host()
	h.Busy = busy
	assert.Equal(t, reason.NotWritable, Classify(system.Volume{Identifier: "/dev/sdb2", Parent: "/dev/sdb", CapacityBytes: 1 << 20}, h).Reason)
}
