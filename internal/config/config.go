package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// sectorSize - граница выравнивания для bound_bytes и chunk_size
	sectorSize = 512

	// MaxBoundLimit - верхний предел bound_bytes (адресное пространство random-паттерна: 2^32 блоков по 64 байта)
	MaxBoundLimit = uint64(256) << 30
)

// SecurityConfig управляет классификацией томов
type SecurityConfig struct {
	RequireAdmin        bool     `yaml:"require_admin" toml:"require_admin"`
	RequireConfirmation bool     `yaml:"require_confirmation" toml:"require_confirmation"`
	ExcludedDrives      []string `yaml:"excluded_drives" toml:"excluded_drives"`
	RemovableOnly       bool     `yaml:"removable_only" toml:"removable_only"`
	ProtectedMounts     []string `yaml:"protected_mounts" toml:"protected_mounts"`
	MaxVerdictAge       string   `yaml:"max_verdict_age" toml:"max_verdict_age"`
}

// SanitizeConfig параметры протокола перезаписи
type SanitizeConfig struct {
	Profile       string   `yaml:"profile" toml:"profile"`
	Patterns      []string `yaml:"patterns" toml:"patterns"`
	BoundBytes    uint64   `yaml:"bound_bytes" toml:"bound_bytes"`
	MaxBoundBytes uint64   `yaml:"max_bound_bytes" toml:"max_bound_bytes"`
	ChunkSize     int64    `yaml:"chunk_size" toml:"chunk_size"`
	MaxRetries    int      `yaml:"max_retries" toml:"max_retries"`
	RetryInterval string   `yaml:"retry_interval" toml:"retry_interval"`
	MaxSpeedMBps  float64  `yaml:"max_speed_mbps" toml:"max_speed_mbps"`
	MaxDuration   string   `yaml:"max_duration" toml:"max_duration"`
	VerifyMode    string   `yaml:"verify_mode" toml:"verify_mode"`
	VerifySamples int      `yaml:"verify_samples" toml:"verify_samples"`
	LockDir       string   `yaml:"lock_dir" toml:"lock_dir"`
	WatchHotplug  bool     `yaml:"watch_hotplug" toml:"watch_hotplug"`
}

// LoggingConfig настройки логгера
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	Structured bool   `yaml:"structured" toml:"structured"`
}

// ReportingConfig настройки сохранения отчётов
type ReportingConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	LocalPath string `yaml:"local_path" toml:"local_path"`
	Format    string `yaml:"format" toml:"format"`
}

// MetricsConfig настройки Prometheus
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"`
}

// Config корневая конфигурация
type Config struct {
	Security  SecurityConfig  `yaml:"security" toml:"security"`
	Sanitize  SanitizeConfig  `yaml:"sanitize" toml:"sanitize"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Reporting ReportingConfig `yaml:"reporting" toml:"reporting"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Security: SecurityConfig{
			RequireAdmin:        false,
			RequireConfirmation: true,
			ExcludedDrives:      []string{},
			RemovableOnly:       false,
			ProtectedMounts:     []string{"/", "/boot", "/boot/efi", "/usr", "/var"},
			MaxVerdictAge:       "30s",
		},
		Sanitize: SanitizeConfig{
			Profile:       "standard",
			BoundBytes:    100 * 1024 * 1024, // 100MB, как в исходной утилите
			MaxBoundBytes: 64 << 30,          // 64GB
			ChunkSize:     1024 * 1024,       // 1MB
			MaxRetries:    3,
			RetryInterval: "100ms",
			MaxSpeedMBps:  0, // без ограничения
			MaxDuration:   "",
			VerifyMode:    "full",
			VerifySamples: 64,
			LockDir:       "",
			WatchHotplug:  true,
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			File:       "",
			Structured: false,
		},
		Reporting: ReportingConfig{
			Enabled:   true,
			LocalPath: "./reports",
			Format:    "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9477",
		},
	}
}

// Load загружает конфигурацию из файла (YAML или TOML по расширению)
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Незаданные в файле поля сохраняют значения по умолчанию
	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, config)
	default:
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	s := config.Sanitize

	if s.MaxBoundBytes == 0 || s.MaxBoundBytes > MaxBoundLimit {
		return fmt.Errorf("max bound bytes must be between 1 and %d, got %d", MaxBoundLimit, s.MaxBoundBytes)
	}
	if err := ValidateBound(s.BoundBytes, s.MaxBoundBytes); err != nil {
		return err
	}

	if s.ChunkSize <= 0 || s.ChunkSize%sectorSize != 0 {
		return fmt.Errorf("chunk size must be a positive multiple of %d, got %d", sectorSize, s.ChunkSize)
	}
	if s.ChunkSize > 64*1024*1024 { // 64MB max
		return fmt.Errorf("chunk size too large (max 64MB), got %d", s.ChunkSize)
	}

	if s.MaxRetries < 0 || s.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 0 and 10, got %d", s.MaxRetries)
	}

	if s.MaxSpeedMBps < 0 {
		return fmt.Errorf("max speed cannot be negative, got %f", s.MaxSpeedMBps)
	}
	if s.MaxSpeedMBps > 10000 {
		return fmt.Errorf("max speed too high (max 10000MB/s), got %f", s.MaxSpeedMBps)
	}

	for name, value := range map[string]string{
		"max_duration":    s.MaxDuration,
		"retry_interval":  s.RetryInterval,
		"max_verdict_age": config.Security.MaxVerdictAge,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return fmt.Errorf("invalid %s format: %s", name, value)
		}
	}
	if config.GetMaxVerdictAge() <= 0 {
		return fmt.Errorf("max verdict age must be positive")
	}

	switch s.VerifyMode {
	case "full":
	case "sampled":
		if s.VerifySamples <= 0 {
			return fmt.Errorf("verify samples must be positive in sampled mode, got %d", s.VerifySamples)
		}
	default:
		return fmt.Errorf("invalid verify mode: %s", s.VerifyMode)
	}

	if len(s.Patterns) == 0 {
		if _, err := ProfilePatterns(s.Profile); err != nil {
			return err
		}
	} else if len(s.Patterns) > MaxPasses {
		return fmt.Errorf("too many passes (max %d), got %d", MaxPasses, len(s.Patterns))
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	if config.Reporting.Enabled && config.Reporting.Format != "json" {
		return fmt.Errorf("unsupported report format: %s", config.Reporting.Format)
	}

	for _, mount := range config.Security.ProtectedMounts {
		if !strings.HasPrefix(mount, "/") {
			return fmt.Errorf("protected mount must be absolute: %q", mount)
		}
	}

	return nil
}

// ValidateBound проверяет границу диапазона перезаписи
func ValidateBound(bound, max uint64) error {
	if bound == 0 || bound%sectorSize != 0 {
		return fmt.Errorf("bound bytes must be a positive multiple of %d, got %d", sectorSize, bound)
	}
	if bound > max {
		return fmt.Errorf("bound bytes %d exceed configured cap %d", bound, max)
	}
	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	if err := Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = toml.Marshal(config)
	} else {
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetMaxDuration возвращает максимальную длительность задания (0 - без лимита)
func (config *Config) GetMaxDuration() time.Duration {
	return parseDurationOr(config.Sanitize.MaxDuration, 0)
}

// GetMaxVerdictAge возвращает допустимый возраст вердикта безопасности
func (config *Config) GetMaxVerdictAge() time.Duration {
	return parseDurationOr(config.Security.MaxVerdictAge, 30*time.Second)
}

// GetRetryInterval возвращает начальный интервал между повторами записи
func (config *Config) GetRetryInterval() time.Duration {
	return parseDurationOr(config.Sanitize.RetryInterval, 100*time.Millisecond)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
