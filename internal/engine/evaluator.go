package engine

import (
	"fmt"
	"sort"
)

// LineKind — тип оцениваемой линии.
type LineKind int

const (
	LineKindPayline LineKind = iota
	LineKindColumn
)

// LineID — идентификатор линии. Index начинается с нуля.
type LineID struct {
	Kind  LineKind
	Index int
}

// String возвращает внешний идентификатор: "payline-1", "column-3".
func (id LineID) String() string {
	if id.Kind == LineKindColumn {
		return fmt.Sprintf("column-%d", id.Index+1)
	}
	return fmt.Sprintf("payline-%d", id.Index+1)
}

// MarshalText — чтобы LineID в JSON выглядел так же, как в логах.
func (id LineID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// PaylineWin — одна выигрышная линия.
type PaylineWin struct {
	Line       LineID  `json:"line"`
	Symbol     Symbol  `json:"symbol"`
	Count      int     `json:"count"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
}

// SpinResult — оценка сетки целиком.
type SpinResult struct {
	TotalWin float64      `json:"total_win"`
	Lines    []PaylineWin `json:"lines"`
	// Dominant — символ самой дорогой линии; пустой, если выигрыша нет.
	Dominant Symbol `json:"dominant,omitempty"`
}

// SequenceWin — серия, найденная в одной последовательности символов.
type SequenceWin struct {
	Symbol Symbol
	Count  int
}

type threshold struct {
	count      int
	multiplier float64
}

// Evaluator считает выигрыш по линиям и колонкам.
// Не хранит изменяемого состояния, безопасен для конкурентного использования.
type Evaluator struct {
	layout     *Layout
	thresholds map[Symbol][]threshold
}

// NewEvaluator проверяет конфигурацию и готовит отсортированные пороги выплат.
func NewEvaluator(layout *Layout) (*Evaluator, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	thresholds := make(map[Symbol][]threshold, len(layout.Payouts))
	for sym, table := range layout.Payouts {
		list := make([]threshold, 0, len(table))
		for count, mult := range table {
			list = append(list, threshold{count: count, multiplier: mult})
		}
		// По убыванию: первый подходящий порог и есть максимальный
		sort.Slice(list, func(i, j int) bool { return list[i].count > list[j].count })
		thresholds[sym] = list
	}

	return &Evaluator{layout: layout, thresholds: thresholds}, nil
}

// Layout возвращает конфигурацию, с которой создан оценщик.
func (e *Evaluator) Layout() *Layout {
	return e.layout
}

// ResolveMultiplier возвращает множитель для серии: наибольший порог, не превышающий count.
// 0 — серия не платит.
func (e *Evaluator) ResolveMultiplier(sym Symbol, count int) float64 {
	if count < minRunLength {
		return 0
	}
	for _, t := range e.thresholds[sym] {
		if t.count <= count {
			return t.multiplier
		}
	}
	return 0
}

// EvaluateSequence ищет серию от начала последовательности.
// Первый не-wild символ становится основным; wild засчитывается в любую серию.
// Пустая или неизвестная ячейка обрывает серию.
func (e *Evaluator) EvaluateSequence(seq []Symbol) SequenceWin {
	var primary Symbol
	count := 0

	for _, sym := range seq {
		if sym == "" || !e.layout.Known(sym) {
			break
		}
		if primary == "" && sym != SymbolWild {
			primary = sym
		}
		if sym != SymbolWild && sym != primary {
			break
		}
		count++
	}

	if count > 0 && primary == "" {
		primary = SymbolWild
	}
	return SequenceWin{Symbol: primary, Count: count}
}

// Evaluate оценивает сетку при ставке bet.
// Сначала все линии по порядку, затем колонки сверху вниз. Перекрытия не убираются:
// одна ячейка может участвовать в нескольких выигрышных линиях.
func (e *Evaluator) Evaluate(grid Grid, bet float64) SpinResult {
	result := SpinResult{}
	best := -1.0

	consider := func(id LineID, seq []Symbol) {
		run := e.EvaluateSequence(seq)
		if run.Count < minRunLength {
			return
		}
		mult := e.ResolveMultiplier(run.Symbol, run.Count)
		if mult <= 0 {
			return
		}

		win := PaylineWin{
			Line:       id,
			Symbol:     run.Symbol,
			Count:      run.Count,
			Multiplier: mult,
			Payout:     bet * mult,
		}
		result.Lines = append(result.Lines, win)
		result.TotalWin += win.Payout

		// Строго больше: при равенстве остаётся линия, найденная раньше
		if win.Payout > best {
			best = win.Payout
			result.Dominant = win.Symbol
		}
	}

	seq := make([]Symbol, 0, max(e.layout.Reels, e.layout.Rows))

	for i, line := range e.layout.Paylines {
		seq = seq[:0]
		for reel, row := range line {
			seq = append(seq, grid.At(row, reel))
		}
		consider(LineID{Kind: LineKindPayline, Index: i}, seq)
	}

	for reel := 0; reel < e.layout.Reels; reel++ {
		seq = seq[:0]
		for row := 0; row < e.layout.Rows; row++ {
			seq = append(seq, grid.At(row, reel))
		}
		consider(LineID{Kind: LineKindColumn, Index: reel}, seq)
	}

	return result
}
