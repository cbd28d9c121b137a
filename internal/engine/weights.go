package engine

import (
	"math"
	"sync"
)

// RunningState — накопленная статистика генератора.
type RunningState struct {
	TotalWagered float64   `json:"total_wagered"`
	TotalPaid    float64   `json:"total_paid"`
	LossStreak   int       `json:"loss_streak"`
	Window       []float64 `json:"window"`
}

// SpinSummary — итог спина, который сообщается генератору.
type SpinSummary struct {
	Payout       float64
	Dominant     Symbol
	WinningLines int
}

// SymbolWeight — текущий вес символа.
type SymbolWeight struct {
	Symbol Symbol  `json:"symbol"`
	Tier   Tier    `json:"tier"`
	Weight float64 `json:"weight"`
}

// Snapshot — состояние генератора для админки, API и cron-отчёта.
type Snapshot struct {
	State      RunningState   `json:"state"`
	CurrentRTP float64        `json:"current_rtp"`
	WinRate    float64        `json:"recent_win_rate"`
	Weights    []SymbolWeight `json:"weights"`
}

// WeightedEngine выбирает «косметические» символы для анимации барабанов.
// Веса символов подстраиваются под целевой RTP, серию проигрышей и частоту выигрышей
// в последних спинах. На итоговую сетку спина генератор не влияет.
//
// Все методы сериализованы мьютексом: BeginSpin/CompleteSpin/NextSymbol
// из разных горутин не ломают учёт.
type WeightedEngine struct {
	mu     sync.Mutex
	layout *Layout
	tuning RNGTuning
	source Source
	state  RunningState
}

// NewWeightedEngine создаёт генератор. Конфигурация должна быть уже проверена.
func NewWeightedEngine(layout *Layout, source Source) *WeightedEngine {
	return &WeightedEngine{
		layout: layout,
		tuning: layout.RNG,
		source: source,
		state:  RunningState{Window: make([]float64, 0, layout.RNG.Trend.Window)},
	}
}

// BeginSpin учитывает ставку.
func (e *WeightedEngine) BeginSpin(bet float64) {
	if bet < 0 || math.IsNaN(bet) {
		bet = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.TotalWagered += bet
}

// CompleteSpin учитывает выплату спина: серия проигрышей, окно последних выплат.
func (e *WeightedEngine) CompleteSpin(summary SpinSummary) {
	payout := summary.Payout
	if payout < 0 || math.IsNaN(payout) {
		payout = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.TotalPaid += payout
	if payout > 0 {
		e.state.LossStreak = 0
	} else {
		e.state.LossStreak++
	}

	e.state.Window = append(e.state.Window, payout)
	if over := len(e.state.Window) - e.tuning.Trend.Window; over > 0 {
		// Сдвигаем на месте, чтобы не держать растущий хвост старого массива
		n := copy(e.state.Window, e.state.Window[over:])
		e.state.Window = e.state.Window[:n]
	}
}

// NextSymbol выбирает символ по текущим весам.
func (e *WeightedEngine) NextSymbol() Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draw(e.weightsLocked())
}

// Frame собирает кадр анимации: по колонке на барабан, rows+1 символов,
// последний — скрытая буферная строка.
func (e *WeightedEngine) Frame() [][]Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()

	weights := e.weightsLocked()
	frame := make([][]Symbol, e.layout.Reels)
	for reel := range frame {
		frame[reel] = e.stripLocked(weights, e.layout.Rows+1)
	}
	return frame
}

// stripLocked тянет n символов подряд из одного распределения. Вызывать под e.mu.
func (e *WeightedEngine) stripLocked(weights []SymbolWeight, n int) []Symbol {
	out := make([]Symbol, n)
	for i := range out {
		out[i] = e.draw(weights)
	}
	return out
}

// Weights возвращает текущее распределение.
func (e *WeightedEngine) Weights() []SymbolWeight {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weightsLocked()
}

// CurrentRTP — фактический RTP или целевой, если ставок ещё не было.
func (e *WeightedEngine) CurrentRTP() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentRTPLocked()
}

// Snapshot возвращает копию состояния вместе с весами.
func (e *WeightedEngine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state
	state.Window = append([]float64(nil), e.state.Window...)
	return Snapshot{
		State:      state,
		CurrentRTP: e.currentRTPLocked(),
		WinRate:    e.recentWinRateLocked(),
		Weights:    e.weightsLocked(),
	}
}

// Reset обнуляет статистику. Вызывается только явно (админ-команда).
func (e *WeightedEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = RunningState{Window: make([]float64, 0, e.tuning.Trend.Window)}
}

func (e *WeightedEngine) currentRTPLocked() float64 {
	if e.state.TotalWagered <= 0 {
		return e.tuning.TargetRTP
	}
	return e.state.TotalPaid / e.state.TotalWagered
}

func (e *WeightedEngine) recentWinRateLocked() float64 {
	if len(e.state.Window) == 0 {
		return 0
	}
	wins := 0
	for _, p := range e.state.Window {
		if p > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(e.state.Window))
}

// weightsLocked считает веса всех символов.
//
// Порядок корректировки:
//  1. отклонение RTP от цели, нормированное на ширину коридора;
//  2. буст за серию проигрышей (дорогие символы вверх, дешёвые вниз);
//  3. буст за «засуху» в последних спинах;
//  4. ограничение множителя и вес не меньше 1.
func (e *WeightedEngine) weightsLocked() []SymbolWeight {
	t := e.tuning

	rtp := e.currentRTPLocked()
	diff := rtp - t.TargetRTP
	payingTooMuch := diff > 0

	var rng float64
	if payingTooMuch {
		rng = t.CeilingRTP - t.TargetRTP
	} else {
		rng = t.TargetRTP - t.FloorRTP
	}
	normalized := 0.0
	if rng > 0 {
		normalized = clamp(math.Abs(diff)/rng, 0, 1)
	}

	winRate := e.recentWinRateLocked()
	drought := 1.0
	if winRate < t.Trend.DroughtThreshold {
		drought = 1 + (t.Trend.DroughtThreshold-winRate)*t.Trend.DroughtBoost
	}

	streakBoost := 0.0
	if e.state.LossStreak >= t.Streak.Trigger {
		streakBoost = math.Min(float64(e.state.LossStreak-t.Streak.Trigger+1)*t.Streak.BoostPerLoss, t.Streak.MaxBoost)
	}

	highScale := t.TierScaling[TierHigh]

	out := make([]SymbolWeight, 0, len(e.layout.Symbols))
	for _, sym := range e.layout.Symbols {
		cfg := e.layout.Configs[sym]
		scale := t.TierScaling[cfg.Tier]

		adj := 1.0
		if normalized > 0 {
			direction := 1.0
			if payingTooMuch {
				direction = -1
			}
			adj += direction * t.AdjustmentStep * normalized * scale
		}

		if streakBoost > 0 {
			if cfg.Tier != TierLow {
				adj += streakBoost * scale / highScale
			} else {
				adj -= streakBoost * 0.25
			}
		}

		if cfg.Tier != TierLow && drought > 1 {
			adj *= 1 + (drought-1)*scale
		} else if cfg.Tier == TierLow && payingTooMuch {
			adj *= 1 + normalized*0.15
		}

		adj = clamp(adj, t.MinWeightMultiplier, t.MaxWeightMultiplier)
		out = append(out, SymbolWeight{
			Symbol: sym,
			Tier:   cfg.Tier,
			Weight: math.Max(1, cfg.BaseWeight*adj*cfg.Volatility),
		})
	}
	return out
}

// draw — выборка по накопленным весам.
func (e *WeightedEngine) draw(weights []SymbolWeight) Symbol {
	total := 0.0
	for _, w := range weights {
		total += w.Weight
	}

	pointer := e.source.Float64() * total
	for _, w := range weights {
		pointer -= w.Weight
		if pointer < 0 {
			return w.Symbol
		}
	}
	return weights[len(weights)-1].Symbol
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
