//go:build !linux && !windows

package wipe

import (
	"runtime"

	"datasanitizer/internal/reason"
)

type unsupportedOpener struct{}

// NewOpener возвращает Opener для текущей платформы
func NewOpener() Opener {
	return unsupportedOpener{}
}

func (unsupportedOpener) OpenExclusive(identifier string) (Device, error) {
	return nil, reason.New(reason.AccessDenied, "raw device access is not supported on %s", runtime.GOOS)
}

func (unsupportedOpener) OpenRead(identifier string) (Device, error) {
	return nil, reason.New(reason.AccessDenied, "raw device access is not supported on %s", runtime.GOOS)
}
