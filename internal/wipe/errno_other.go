//go:build !linux && !windows

package wipe

import "syscall"

var platformPermanentErrnos []syscall.Errno
