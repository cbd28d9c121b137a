package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// SymbolTuning — переопределение веса символа. Пустые поля не трогают текущее значение.
type SymbolTuning struct {
	BaseWeight *float64 `yaml:"base_weight"`
	Volatility *float64 `yaml:"volatility"`
}

// TuningFile — YAML-файл донастройки генератора (ENGINE_TUNING_FILE).
//
// Пример:
//
//	rng:
//	  target_rtp: 0.95
//	  streak:
//	    trigger: 4
//	symbols:
//	  wild:
//	    base_weight: 15
//
// Выплаты и линии файлом не меняются: от них зависит колода сценариев.
type TuningFile struct {
	RNG     RNGTuning               `yaml:"rng"`
	Symbols map[Symbol]SymbolTuning `yaml:"symbols"`
}

// LoadTuningFile читает файл и применяет его к layout. Пустой путь — ничего не делать.
func LoadTuningFile(path string, layout *Layout) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла настройки %s: %w", path, err)
	}
	if err := ApplyTuning(data, layout); err != nil {
		return fmt.Errorf("файл настройки %s: %w", path, err)
	}
	return nil
}

// ApplyTuning накладывает YAML поверх текущей конфигурации и проверяет результат.
// При ошибке layout не меняется.
func ApplyTuning(data []byte, layout *Layout) error {
	file := TuningFile{RNG: layout.RNG}
	// Карту копируем, иначе декодер допишет ключи в общую
	file.RNG.TierScaling = maps.Clone(layout.RNG.TierScaling)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("ошибка разбора YAML: %w", err)
	}

	next := *layout
	next.RNG = file.RNG
	next.Configs = maps.Clone(layout.Configs)
	for sym, override := range file.Symbols {
		cfg, ok := next.Configs[sym]
		if !ok {
			return configErrorf("symbols", "настройка для неизвестного символа %q", sym)
		}
		if override.BaseWeight != nil {
			cfg.BaseWeight = *override.BaseWeight
		}
		if override.Volatility != nil {
			cfg.Volatility = *override.Volatility
		}
		next.Configs[sym] = cfg
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*layout = next
	return nil
}
