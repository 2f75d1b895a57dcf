//go:build !windows

package security

import "os"

// IsAdmin проверяет эффективный uid
func IsAdmin() bool {
	return os.Geteuid() == 0
}
