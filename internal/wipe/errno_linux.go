//go:build linux

package wipe

import "syscall"

// носитель извлечён или не того типа
var platformPermanentErrnos = []syscall.Errno{syscall.ENOMEDIUM, syscall.EMEDIUMTYPE}
