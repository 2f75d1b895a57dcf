package config

import (
	"fmt"
	"sort"
)

// MaxPasses ограничивает число проходов одного задания
const MaxPasses = 35

// passProfiles - последовательности паттернов по проходам.
// standard повторяет протокол исходной утилиты: нули, единицы, случайные данные.
var passProfiles = map[string][]string{
	"quick":    {"zero"},
	"random":   {"random"},
	"standard": {"zero", "ones", "random"},
	"dod5220":  {"random", "zero", "random"},
	"paranoid": {"random", "ones", "zero", "random", "zero", "random", "zero"},
}

// ProfilePatterns возвращает паттерны проходов профиля
func ProfilePatterns(profile string) ([]string, error) {
	patterns, ok := passProfiles[profile]
	if !ok {
		return nil, fmt.Errorf("неизвестный профиль: %s", profile)
	}
	out := make([]string, len(patterns))
	copy(out, patterns)
	return out, nil
}

// ProfileNames возвращает имена профилей в алфавитном порядке
func ProfileNames() []string {
	names := make([]string, 0, len(passProfiles))
	for name := range passProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyProfile применяет профиль проходов к конфигурации
func ApplyProfile(cfg *Config, profile string) error {
	if _, err := ProfilePatterns(profile); err != nil {
		return err
	}
	cfg.Sanitize.Profile = profile
	cfg.Sanitize.Patterns = nil
	return nil
}

// EffectivePatterns возвращает паттерны проходов: явный список или профиль
func (config *Config) EffectivePatterns() ([]string, error) {
	if len(config.Sanitize.Patterns) > 0 {
		out := make([]string, len(config.Sanitize.Patterns))
		copy(out, config.Sanitize.Patterns)
		return out, nil
	}
	return ProfilePatterns(config.Sanitize.Profile)
}
