//go:build windows

package wipe

import "syscall"

// коды Win32: ERROR_ACCESS_DENIED, ERROR_WRITE_PROTECT, ERROR_DISK_FULL, ERROR_DEV_NOT_EXIST
var platformPermanentErrnos = []syscall.Errno{5, 19, 112, 55}
