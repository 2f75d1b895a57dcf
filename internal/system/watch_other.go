//go:build !linux

package system

import "datasanitizer/internal/logging"

// NewWatcher возвращает наблюдатель горячего подключения для текущей платформы
func NewWatcher(*logging.EnterpriseLogger) Watcher {
	return NopWatcher{}
}
