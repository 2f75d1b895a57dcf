package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"datasanitizer/internal/config"
)

// Version версия формата отчёта
const Version = "1.0.0"

// Report - JSON отчёт о запуске для аудита
type Report struct {
	RunID      string                 `json:"run_id"`
	Version    string                 `json:"version"`
	Hostname   string                 `json:"hostname"`
	Timestamp  time.Time              `json:"timestamp"`
	Config     map[string]interface{} `json:"config"`
	Operations []Payload              `json:"operations"`
	Summary    SummaryReport          `json:"summary"`
	ExitCode   int                    `json:"exit_code"`
}

// SummaryReport сводка по операциям
type SummaryReport struct {
	Total        int    `json:"total"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	BytesCovered uint64 `json:"bytes_covered"`
}

// NewReport собирает отчёт из payload'ов операций
func NewReport(operations []Payload, cfg *config.Config, exitCode int, now time.Time) *Report {
	hostname, _ := os.Hostname()
	report := &Report{
		RunID:      uuid.NewString(),
		Version:    Version,
		Hostname:   hostname,
		Timestamp:  now,
		Config:     configToMap(cfg),
		Operations: operations,
		ExitCode:   exitCode,
	}
	for _, op := range operations {
		report.Summary.Total++
		switch op.Status {
		case StatusSucceeded:
			report.Summary.Succeeded++
			report.Summary.BytesCovered += op.BytesCovered
		case StatusFailed, StatusUnsafe:
			report.Summary.Failed++
		}
	}
	return report
}

// SaveReport сохраняет отчёт в reporting.local_path и возвращает путь файла
func SaveReport(report *Report, cfg *config.Config) (string, error) {
	if !cfg.Reporting.Enabled {
		return "", nil
	}

	if err := os.MkdirAll(cfg.Reporting.LocalPath, 0755); err != nil {
		return "", fmt.Errorf("ошибка создания директории для отчётов: %w", err)
	}

	// run id в имени: два запуска в одну секунду не перезаписывают друг друга
	filename := fmt.Sprintf("datasanitizer_report_%s_%s.json",
		report.Timestamp.Format("20060102_150405"), report.RunID[:8])
	path := filepath.Join(cfg.Reporting.LocalPath, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации отчёта: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("ошибка записи отчёта: %w", err)
	}

	return path, nil
}

// configToMap - параметры, влияющие на результат, для аудита
func configToMap(cfg *config.Config) map[string]interface{} {
	if cfg == nil {
		return nil
	}
	return map[string]interface{}{
		"security": map[string]interface{}{
			"require_admin":   cfg.Security.RequireAdmin,
			"excluded_drives": cfg.Security.ExcludedDrives,
			"removable_only":  cfg.Security.RemovableOnly,
			"max_verdict_age": cfg.Security.MaxVerdictAge,
		},
		"sanitize": map[string]interface{}{
			"profile":        cfg.Sanitize.Profile,
			"patterns":       cfg.Sanitize.Patterns,
			"bound_bytes":    cfg.Sanitize.BoundBytes,
			"chunk_size":     cfg.Sanitize.ChunkSize,
			"max_retries":    cfg.Sanitize.MaxRetries,
			"max_speed_mbps": cfg.Sanitize.MaxSpeedMBps,
			"max_duration":   cfg.Sanitize.MaxDuration,
			"verify_mode":    cfg.Sanitize.VerifyMode,
			"verify_samples": cfg.Sanitize.VerifySamples,
		},
	}
}
