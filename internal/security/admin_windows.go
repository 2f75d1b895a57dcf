//go:build windows

package security

import "golang.org/x/sys/windows"

// IsAdmin проверяет, что токен процесса повышен (UAC)
func IsAdmin() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
