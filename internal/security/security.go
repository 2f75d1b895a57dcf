package security

import (
	"datasanitizer/internal/config"
	"datasanitizer/internal/reason"
)

// SecurityChecks проверяет окружение процесса до любых операций с устройствами
func SecurityChecks(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}

	if cfg.Security.RequireAdmin && !IsAdmin() {
		return reason.WithHint(
			reason.New(reason.AccessDenied, "administrator privileges are required"),
			"run as root (Linux) or from an elevated prompt (Windows)",
		)
	}

	return nil
}
