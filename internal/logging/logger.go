package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"datasanitizer/internal/config"
)

// Enterprise логгер с аудитом поверх zap
type EnterpriseLogger struct {
	zl      *zap.Logger
	file    *os.File
	verbose bool
}

func NewEnterpriseLogger(cfg *config.Config, verbose bool) (*EnterpriseLogger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	var encoder zapcore.Encoder
	if cfg.Logging.Structured {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	l := &EnterpriseLogger{verbose: verbose}
	var cores []zapcore.Core

	// Автоматическое создание директории для логов
	if cfg.Logging.File != "" {
		if f, err := openLogFile(cfg.Logging.File); err != nil {
			// Если не можем открыть файл логов, пишем только в stderr
			fmt.Fprintf(os.Stderr, "[WARN] Не удалось открыть файл логов %s: %v\n", cfg.Logging.File, err)
		} else {
			l.file = f
			cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(f), level))
		}
	}

	// В stderr: всё при verbose, иначе только ошибки
	consoleLevel := zapcore.LevelEnabler(zapcore.ErrorLevel)
	if verbose || l.file == nil {
		consoleLevel = level
		if !verbose {
			consoleLevel = maxLevel(level, zapcore.WarnLevel)
		}
	}
	cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), consoleLevel))

	l.zl = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

// NewNop возвращает логгер, который ничего не пишет (для тестов)
func NewNop() *EnterpriseLogger {
	return &EnterpriseLogger{zl: zap.NewNop()}
}

// NewFromZap оборачивает готовый zap логгер
func NewFromZap(zl *zap.Logger) *EnterpriseLogger {
	return &EnterpriseLogger{zl: zl}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

func maxLevel(a, b zapcore.Level) zapcore.Level {
	if a > b {
		return a
	}
	return b
}

// Log пишет запись уровня level; fields - пары ключ/значение
func (l *EnterpriseLogger) Log(level, message string, fields ...interface{}) {
	if l == nil || l.zl == nil {
		return
	}

	zfields := toZapFields(fields)
	switch strings.ToUpper(level) {
	case "DEBUG":
		l.zl.Debug(message, zfields...)
	case "INFO":
		l.zl.Info(message, zfields...)
	case "WARN":
		l.zl.Warn(message, zfields...)
	case "ERROR", "FATAL":
		l.zl.Error(message, zfields...)
	default:
		l.zl.Info(message, append(zfields, zap.String("level_raw", level))...)
	}
}

// Named возвращает дочерний логгер компонента
func (l *EnterpriseLogger) Named(component string) *EnterpriseLogger {
	if l == nil || l.zl == nil {
		return NewNop()
	}
	return &EnterpriseLogger{zl: l.zl.Named(component), verbose: l.verbose}
}

// With возвращает логгер с постоянными полями
func (l *EnterpriseLogger) With(fields ...interface{}) *EnterpriseLogger {
	if l == nil || l.zl == nil {
		return NewNop()
	}
	return &EnterpriseLogger{zl: l.zl.With(toZapFields(fields)...), verbose: l.verbose}
}

// Zap отдаёт нижележащий логгер
func (l *EnterpriseLogger) Zap() *zap.Logger {
	if l == nil || l.zl == nil {
		return zap.NewNop()
	}
	return l.zl
}

func (l *EnterpriseLogger) Close() error {
	if l == nil {
		return nil
	}
	if l.zl != nil {
		_ = l.zl.Sync()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func toZapFields(kv []interface{}) []zap.Field {
	if len(kv) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("field_%d", i)
		}
		if i+1 >= len(kv) {
			out = append(out, zap.String(key, "(missing)"))
			break
		}
		switch v := kv[i+1].(type) {
		case error:
			out = append(out, zap.NamedError(key, v))
		default:
			out = append(out, zap.Any(key, v))
		}
	}
	return out
}
