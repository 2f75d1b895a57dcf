//go:build !linux && !windows

package system

import (
	"context"
	"runtime"

	"datasanitizer/internal/reason"
)

type unsupported struct{}

// NewEnumerator возвращает перечислитель томов для текущей платформы
func NewEnumerator(Options) Enumerator { return unsupported{} }

// NewHostProbe возвращает probe загрузочных устройств текущей платформы
func NewHostProbe() HostProbe { return unsupported{} }

func (unsupported) Enumerate(context.Context) ([]Volume, error) {
	return nil, reason.New(reason.EnumerationError, "volume enumeration is not supported on %s", runtime.GOOS)
}

func (unsupported) BootIdentifiers(context.Context) ([]string, error) {
	return nil, reason.New(reason.EnumerationError, "boot probe is not supported on %s", runtime.GOOS)
}
