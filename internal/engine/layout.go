// Package engine реализует математику слотов: оценку линий, каталог сценариев
// и взвешенный генератор символов с обратной связью по RTP.
// layout.go описывает статическую конфигурацию: символы, выплаты, линии и настройки RNG.
//
// Пакет не делает ввода-вывода: логирование, БД и транспорт живут в features/.
package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Symbol — идентификатор символа на барабане.
type Symbol string

// Символы машины. Порядок важен: он задаёт порядок весов и выборки.
const (
	SymbolOne   Symbol = "1"
	SymbolTwo   Symbol = "2"
	SymbolThree Symbol = "3"
	SymbolFour  Symbol = "4"
	SymbolFive  Symbol = "5"
	SymbolWild  Symbol = "wild"
)

// Tier — класс выплаты символа. Определяет чувствительность к корректировке RTP.
type Tier string

const (
	TierLow     Tier = "low"
	TierMedium  Tier = "medium"
	TierHigh    Tier = "high"
	TierJackpot Tier = "jackpot"
)

// minRunLength — минимальная длина серии, которая платит.
const minRunLength = 3

// SymbolConfig — статические параметры символа.
type SymbolConfig struct {
	Difficulty int     `yaml:"difficulty"`
	BaseWeight float64 `yaml:"base_weight"`
	Tier       Tier    `yaml:"tier"`
	Volatility float64 `yaml:"volatility"`
}

// PayoutTable — множители выплат: символ → (минимальная длина серии → множитель).
type PayoutTable map[Symbol]map[int]float64

// Payline — номер строки для каждого барабана слева направо.
type Payline []int

// StreakTuning — буст за серию проигрышей.
type StreakTuning struct {
	Trigger      int     `yaml:"trigger"`
	BoostPerLoss float64 `yaml:"boost_per_loss"`
	MaxBoost     float64 `yaml:"max_boost"`
}

// TrendTuning — окно последних спинов и реакция на «засуху».
type TrendTuning struct {
	Window           int     `yaml:"window"`
	DroughtThreshold float64 `yaml:"drought_threshold"`
	DroughtBoost     float64 `yaml:"drought_boost"`
}

// RNGTuning — параметры корректировки весов под целевой RTP.
type RNGTuning struct {
	TargetRTP           float64          `yaml:"target_rtp"`
	FloorRTP            float64          `yaml:"floor_rtp"`
	CeilingRTP          float64          `yaml:"ceiling_rtp"`
	AdjustmentStep      float64          `yaml:"adjustment_step"`
	MinWeightMultiplier float64          `yaml:"min_weight_multiplier"`
	MaxWeightMultiplier float64          `yaml:"max_weight_multiplier"`
	TierScaling         map[Tier]float64 `yaml:"tier_scaling"`
	Streak              StreakTuning     `yaml:"streak"`
	Trend               TrendTuning      `yaml:"trend"`
}

// Layout — вся статическая конфигурация машины.
// Создаётся один раз при старте, проверяется Validate и дальше только читается.
type Layout struct {
	Reels    int
	Rows     int
	Symbols  []Symbol
	Configs  map[Symbol]SymbolConfig
	Payouts  PayoutTable
	Paylines []Payline
	RNG      RNGTuning
}

// DefaultLayout возвращает боевую конфигурацию: 5 барабанов × 6 строк, 6 символов, 20 линий.
// Каждый вызов отдаёт независимую копию, её можно менять перед Validate.
func DefaultLayout() *Layout {
	return &Layout{
		Reels: 5,
		Rows:  6,
		Symbols: []Symbol{
			SymbolOne, SymbolTwo, SymbolThree, SymbolFour, SymbolFive, SymbolWild,
		},
		Configs: map[Symbol]SymbolConfig{
			SymbolOne:   {Difficulty: 1, BaseWeight: 420, Tier: TierLow, Volatility: 1},
			SymbolTwo:   {Difficulty: 2, BaseWeight: 280, Tier: TierLow, Volatility: 1.05},
			SymbolThree: {Difficulty: 3, BaseWeight: 180, Tier: TierMedium, Volatility: 1.1},
			SymbolFour:  {Difficulty: 4, BaseWeight: 90, Tier: TierHigh, Volatility: 1.25},
			SymbolFive:  {Difficulty: 5, BaseWeight: 45, Tier: TierHigh, Volatility: 1.35},
			SymbolWild:  {Difficulty: 6, BaseWeight: 12, Tier: TierJackpot, Volatility: 1.5},
		},
		Payouts: PayoutTable{
			SymbolOne:   {3: 0.6, 4: 1.1, 5: 2.4, 6: 3.5},
			SymbolTwo:   {3: 0.9, 4: 1.8, 5: 3.6, 6: 5.5},
			SymbolThree: {3: 1.6, 4: 3.4, 5: 7.5, 6: 11},
			SymbolFour:  {3: 2.8, 4: 6.4, 5: 14, 6: 22},
			SymbolFive:  {3: 4.2, 4: 10.5, 5: 25, 6: 40},
			SymbolWild:  {3: 6, 4: 16, 5: 45, 6: 80},
		},
		Paylines: []Payline{
			{0, 0, 0, 0, 0},
			{1, 1, 1, 1, 1},
			{2, 2, 2, 2, 2},
			{3, 3, 3, 3, 3},
			{4, 4, 4, 4, 4},
			{5, 5, 5, 5, 5},
			{0, 1, 2, 3, 4},
			{1, 2, 3, 4, 5},
			{5, 4, 3, 2, 1},
			{4, 3, 2, 1, 0},
			{2, 1, 2, 1, 2},
			{3, 4, 3, 4, 3},
			{2, 3, 4, 3, 2},
			{3, 2, 1, 2, 3},
			{1, 2, 2, 2, 1},
			{4, 3, 3, 3, 4},
			{1, 0, 1, 0, 1},
			{4, 5, 4, 5, 4},
			{0, 1, 0, 1, 0},
			{5, 4, 5, 4, 5},
		},
		RNG: DefaultRNGTuning(),
	}
}

// DefaultRNGTuning — целевой RTP 94% с коридором 90–98.5%.
func DefaultRNGTuning() RNGTuning {
	return RNGTuning{
		TargetRTP:           0.94,
		FloorRTP:            0.9,
		CeilingRTP:          0.985,
		AdjustmentStep:      0.65,
		MinWeightMultiplier: 0.25,
		MaxWeightMultiplier: 3.2,
		TierScaling: map[Tier]float64{
			TierLow:     0.45,
			TierMedium:  0.85,
			TierHigh:    1.3,
			TierJackpot: 1.85,
		},
		Streak: StreakTuning{Trigger: 5, BoostPerLoss: 0.18, MaxBoost: 1.2},
		Trend:  TrendTuning{Window: 40, DroughtThreshold: 0.28, DroughtBoost: 0.45},
	}
}

// Validate проверяет согласованность конфигурации.
// Любое нарушение — *ConfigurationError, запуск нужно прервать.
func (l *Layout) Validate() error {
	if l.Reels <= 0 || l.Rows <= 0 {
		return configErrorf("layout", "размер сетки %dx%d", l.Rows, l.Reels)
	}
	if len(l.Symbols) == 0 {
		return configErrorf("symbols", "список символов пуст")
	}

	seen := make(map[Symbol]bool, len(l.Symbols))
	hasWild := false
	for _, sym := range l.Symbols {
		if sym == "" {
			return configErrorf("symbols", "пустой идентификатор символа")
		}
		if seen[sym] {
			return configErrorf("symbols", "символ %q объявлен дважды", sym)
		}
		seen[sym] = true
		if sym == SymbolWild {
			hasWild = true
		}

		cfg, ok := l.Configs[sym]
		if !ok {
			return configErrorf("symbols", "нет параметров для символа %q", sym)
		}
		if cfg.BaseWeight <= 0 || cfg.Volatility <= 0 {
			return configErrorf("symbols", "символ %q: вес и волатильность должны быть > 0", sym)
		}
		if _, ok := l.RNG.TierScaling[cfg.Tier]; !ok {
			return configErrorf("rng.tier_scaling", "нет коэффициента для тира %q", cfg.Tier)
		}

		table, ok := l.Payouts[sym]
		if !ok || len(table) == 0 {
			return configErrorf("payouts", "нет таблицы выплат для %q", sym)
		}
		if err := validatePayouts(sym, table); err != nil {
			return err
		}
	}
	if !hasWild {
		return configErrorf("symbols", "нет символа %q", SymbolWild)
	}
	for sym := range l.Payouts {
		if !seen[sym] {
			return configErrorf("payouts", "выплата для неизвестного символа %q", sym)
		}
	}

	if len(l.Paylines) == 0 {
		return configErrorf("paylines", "нет ни одной линии")
	}
	for i, line := range l.Paylines {
		if len(line) != l.Reels {
			return configErrorf("paylines", "линия %d: длина %d, барабанов %d", i+1, len(line), l.Reels)
		}
		for _, row := range line {
			if row < 0 || row >= l.Rows {
				return configErrorf("paylines", "линия %d: строка %d вне сетки", i+1, row)
			}
		}
	}

	return l.RNG.validate()
}

func validatePayouts(sym Symbol, table map[int]float64) error {
	counts := make([]int, 0, len(table))
	for count := range table {
		counts = append(counts, count)
	}
	sort.Ints(counts)

	prev := 0.0
	for _, count := range counts {
		mult := table[count]
		if count < minRunLength {
			return configErrorf("payouts", "%q: порог %d меньше %d", sym, count, minRunLength)
		}
		if mult <= 0 || math.IsNaN(mult) || math.IsInf(mult, 0) {
			return configErrorf("payouts", "%q: некорректный множитель %v", sym, mult)
		}
		// Более длинная серия не может платить меньше
		if mult < prev {
			return configErrorf("payouts", "%q: множитель для %d меньше предыдущего", sym, count)
		}
		prev = mult
	}
	return nil
}

func (t RNGTuning) validate() error {
	if !(t.FloorRTP < t.TargetRTP && t.TargetRTP < t.CeilingRTP) {
		return configErrorf("rng", "ожидается floor < target < ceiling, получено %.4f/%.4f/%.4f",
			t.FloorRTP, t.TargetRTP, t.CeilingRTP)
	}
	if t.AdjustmentStep < 0 {
		return configErrorf("rng.adjustment_step", "отрицательный шаг %v", t.AdjustmentStep)
	}
	if t.MinWeightMultiplier <= 0 || t.MaxWeightMultiplier < t.MinWeightMultiplier {
		return configErrorf("rng", "некорректный диапазон множителей [%v, %v]",
			t.MinWeightMultiplier, t.MaxWeightMultiplier)
	}
	if scale, ok := t.TierScaling[TierHigh]; !ok || scale <= 0 {
		return configErrorf("rng.tier_scaling", "коэффициент тира high должен быть > 0")
	}
	if t.Streak.Trigger <= 0 || t.Streak.BoostPerLoss < 0 || t.Streak.MaxBoost < 0 {
		return configErrorf("rng.streak", "некорректные параметры серии")
	}
	if t.Trend.Window <= 0 {
		return configErrorf("rng.trend.window", "окно должно быть > 0")
	}
	if t.Trend.DroughtThreshold < 0 || t.Trend.DroughtThreshold > 1 || t.Trend.DroughtBoost < 0 {
		return configErrorf("rng.trend", "некорректные параметры засухи")
	}
	return nil
}

// Known сообщает, объявлен ли символ в конфигурации.
func (l *Layout) Known(sym Symbol) bool {
	_, ok := l.Configs[sym]
	return ok
}

// NewGrid создаёт пустую сетку Rows × Reels.
func (l *Layout) NewGrid() Grid {
	grid := make(Grid, l.Rows)
	for row := range grid {
		grid[row] = make([]Symbol, l.Reels)
	}
	return grid
}

// Grid — сетка символов: Grid[row][reel]. Пустая строка — отсутствующая ячейка.
type Grid [][]Symbol

// At возвращает символ в ячейке или "" для выхода за границы.
func (g Grid) At(row, reel int) Symbol {
	if row < 0 || row >= len(g) {
		return ""
	}
	if reel < 0 || reel >= len(g[row]) {
		return ""
	}
	return g[row][reel]
}

// Clone возвращает глубокую копию сетки.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]Symbol(nil), row...)
	}
	return out
}

// String — для логов и сообщений об ошибках в тестах.
func (g Grid) String() string {
	var sb strings.Builder
	for i, row := range g {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(fmt.Sprint(row))
	}
	return sb.String()
}
