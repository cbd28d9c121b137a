package engine

import (
	"math"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

// quietPool — символы «тихой» сетки. Соседние ячейки по строке, колонке
// и диагонали всегда различаются, поэтому выигрышей нет.
var quietPool = []Symbol{SymbolOne, SymbolThree, SymbolFour, SymbolFive}

func quietGrid(l *Layout) Grid {
	grid := l.NewGrid()
	for row := range grid {
		for reel := range grid[row] {
			grid[row][reel] = quietPool[(2*row+reel)%len(quietPool)]
		}
	}
	return grid
}

func mustEvaluator(t testing.TB, l *Layout) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(l)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return ev
}

func TestEvaluateQuietGridHasNoWins(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())

	result := ev.Evaluate(quietGrid(ev.Layout()), 10)
	if result.TotalWin != 0 || len(result.Lines) != 0 || result.Dominant != "" {
		t.Fatalf("ожидался пустой результат, получено %+v\n%s", result, quietGrid(ev.Layout()))
	}
}

func TestEvaluateGrids(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())

	tests := []struct {
		name   string
		mutate func(Grid)
		bet    float64
		want   []PaylineWin
	}{
		{
			name:   "верхняя строка двоек",
			mutate: func(g Grid) { g[0] = []Symbol{"2", "2", "2", "2", "2"} },
			bet:    1,
			want: []PaylineWin{
				{Line: LineID{LineKindPayline, 0}, Symbol: SymbolTwo, Count: 5, Multiplier: 3.6, Payout: 3.6},
			},
		},
		{
			name: "колонка двоек на всю высоту",
			mutate: func(g Grid) {
				for row := range g {
					g[row][0] = SymbolTwo
				}
			},
			bet: 2,
			want: []PaylineWin{
				{Line: LineID{LineKindColumn, 0}, Symbol: SymbolTwo, Count: 6, Multiplier: 5.5, Payout: 11},
			},
		},
		{
			name: "короткая серия тройки",
			mutate: func(g Grid) {
				g[2][0], g[2][1], g[2][2] = SymbolThree, SymbolThree, SymbolThree
			},
			bet: 10,
			want: []PaylineWin{
				{Line: LineID{LineKindPayline, 2}, Symbol: SymbolThree, Count: 3, Multiplier: 1.6, Payout: 16},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := quietGrid(ev.Layout())
			tt.mutate(grid)

			result := ev.Evaluate(grid, tt.bet)
			if len(result.Lines) != len(tt.want) {
				t.Fatalf("линий %d, ожидалось %d: %+v", len(result.Lines), len(tt.want), result.Lines)
			}
			total := 0.0
			for i, want := range tt.want {
				got := result.Lines[i]
				if got.Line != want.Line || got.Symbol != want.Symbol || got.Count != want.Count {
					t.Errorf("линия %d: получено %+v, ожидалось %+v", i, got, want)
				}
				if !almostEqual(got.Multiplier, want.Multiplier) || !almostEqual(got.Payout, want.Payout) {
					t.Errorf("линия %d: множитель/выплата %v/%v, ожидалось %v/%v",
						i, got.Multiplier, got.Payout, want.Multiplier, want.Payout)
				}
				total += want.Payout
			}
			if !almostEqual(result.TotalWin, total) {
				t.Errorf("TotalWin = %v, ожидалось %v", result.TotalWin, total)
			}
			if result.Dominant != tt.want[0].Symbol {
				t.Errorf("Dominant = %q, ожидалось %q", result.Dominant, tt.want[0].Symbol)
			}
		})
	}
}

func TestEvaluateMissingCellsBreakRun(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())

	// Неполная сетка: у верхней строки только три ячейки, дальше выход за границы
	grid := quietGrid(ev.Layout())
	grid[0] = []Symbol{SymbolTwo, SymbolTwo, SymbolTwo}

	result := ev.Evaluate(grid, 1)
	if len(result.Lines) != 1 {
		t.Fatalf("ожидалась одна линия, получено %+v", result.Lines)
	}
	if got := result.Lines[0]; got.Count != 3 || got.Symbol != SymbolTwo {
		t.Errorf("получено %+v", got)
	}

	if got := ev.Evaluate(Grid{}, 1); got.TotalWin != 0 || len(got.Lines) != 0 {
		t.Errorf("пустая сетка: %+v", got)
	}
}

func TestEvaluateDominantTieKeepsFirstLine(t *testing.T) {
	l := &Layout{
		Reels:   3,
		Rows:    3,
		Symbols: []Symbol{SymbolOne, SymbolTwo, SymbolWild},
		Configs: map[Symbol]SymbolConfig{
			SymbolOne:  {Difficulty: 1, BaseWeight: 10, Tier: TierLow, Volatility: 1},
			SymbolTwo:  {Difficulty: 2, BaseWeight: 10, Tier: TierLow, Volatility: 1},
			SymbolWild: {Difficulty: 3, BaseWeight: 1, Tier: TierJackpot, Volatility: 1},
		},
		Payouts: PayoutTable{
			SymbolOne:  {3: 2},
			SymbolTwo:  {3: 2},
			SymbolWild: {3: 5},
		},
		Paylines: []Payline{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}},
		RNG:      DefaultRNGTuning(),
	}
	ev := mustEvaluator(t, l)

	grid := Grid{
		{SymbolOne, SymbolOne, SymbolOne},
		{SymbolTwo, SymbolTwo, SymbolTwo},
		{SymbolOne, SymbolTwo, SymbolOne},
	}
	if got := ev.Evaluate(grid, 1); got.Dominant != SymbolOne || len(got.Lines) != 2 {
		t.Errorf("Dominant = %q (линий %d), ожидалось %q", got.Dominant, len(got.Lines), SymbolOne)
	}

	grid[0], grid[1] = grid[1], grid[0]
	if got := ev.Evaluate(grid, 1); got.Dominant != SymbolTwo {
		t.Errorf("Dominant = %q после перестановки, ожидалось %q", got.Dominant, SymbolTwo)
	}
}

func TestEvaluateSequence(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())

	tests := []struct {
		name      string
		seq       []Symbol
		wantSym   Symbol
		wantCount int
		wantMult  float64
	}{
		{"wild в начале", []Symbol{"wild", "wild", "2", "2", "2"}, SymbolTwo, 5, 3.6},
		{"только wild", []Symbol{"wild", "wild", "wild"}, SymbolWild, 3, 6},
		{"wild в середине", []Symbol{"3", "wild", "3", "1"}, SymbolThree, 3, 1.6},
		{"обрыв на другом символе", []Symbol{"4", "4", "5", "4"}, SymbolFour, 2, 0},
		{"пустая ячейка", []Symbol{"1", "1", "", "1"}, SymbolOne, 2, 0},
		{"неизвестный символ", []Symbol{"1", "x", "1"}, SymbolOne, 1, 0},
		{"пустая последовательность", nil, "", 0, 0},
		{"сразу пустая ячейка", []Symbol{"", "1", "1", "1"}, "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ev.EvaluateSequence(tt.seq)
			if got.Symbol != tt.wantSym || got.Count != tt.wantCount {
				t.Errorf("EvaluateSequence(%v) = %+v, ожидалось %q×%d", tt.seq, got, tt.wantSym, tt.wantCount)
			}
			if mult := ev.ResolveMultiplier(got.Symbol, got.Count); !almostEqual(mult, tt.wantMult) {
				t.Errorf("множитель %v, ожидалось %v", mult, tt.wantMult)
			}
		})
	}
}

func TestResolveMultiplier(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())

	tests := []struct {
		sym   Symbol
		count int
		want  float64
	}{
		{SymbolOne, 2, 0},
		{SymbolOne, 3, 0.6},
		{SymbolOne, 6, 3.5},
		{SymbolOne, 9, 3.5},
		{SymbolFive, 4, 10.5},
		{SymbolWild, 5, 45},
		{Symbol("x"), 5, 0},
	}
	for _, tt := range tests {
		if got := ev.ResolveMultiplier(tt.sym, tt.count); !almostEqual(got, tt.want) {
			t.Errorf("ResolveMultiplier(%q, %d) = %v, ожидалось %v", tt.sym, tt.count, got, tt.want)
		}
	}
}

func TestResolveMultiplierMonotonic(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())
	symbols := ev.Layout().Symbols

	rapid.Check(t, func(t *rapid.T) {
		sym := rapid.SampledFrom(symbols).Draw(t, "symbol")
		a := rapid.IntRange(0, 12).Draw(t, "a")
		b := rapid.IntRange(a, 12).Draw(t, "b")

		if ev.ResolveMultiplier(sym, a) > ev.ResolveMultiplier(sym, b) {
			t.Fatalf("%q: множитель для %d больше, чем для %d", sym, a, b)
		}
	})
}

func TestEvaluateProperties(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())
	cells := append([]Symbol{""}, ev.Layout().Symbols...)

	rapid.Check(t, func(t *rapid.T) {
		grid := ev.Layout().NewGrid()
		for row := range grid {
			for reel := range grid[row] {
				grid[row][reel] = rapid.SampledFrom(cells).Draw(t, "cell")
			}
		}
		bet := rapid.Float64Range(0, 1000).Draw(t, "bet")

		first := ev.Evaluate(grid, bet)
		second := ev.Evaluate(grid.Clone(), bet)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("оценка недетерминирована:\n%+v\n%+v", first, second)
		}

		sum := 0.0
		best := -1.0
		var dominant Symbol
		for _, line := range first.Lines {
			if line.Count < minRunLength {
				t.Fatalf("линия короче порога: %+v", line)
			}
			if line.Multiplier <= 0 {
				t.Fatalf("линия без множителя: %+v", line)
			}
			if math.Abs(line.Payout-bet*line.Multiplier) > 1e-9 {
				t.Fatalf("выплата %v != %v × %v", line.Payout, bet, line.Multiplier)
			}
			if line.Payout > best {
				best = line.Payout
				dominant = line.Symbol
			}
			sum += line.Payout
		}
		if math.Abs(sum-first.TotalWin) > 1e-6 {
			t.Fatalf("TotalWin %v != сумме линий %v", first.TotalWin, sum)
		}
		if first.Dominant != dominant {
			t.Fatalf("Dominant %q, ожидалось %q", first.Dominant, dominant)
		}
	})
}

func TestLineIDString(t *testing.T) {
	if got := (LineID{Kind: LineKindPayline, Index: 0}).String(); got != "payline-1" {
		t.Errorf("получено %q", got)
	}
	if got := (LineID{Kind: LineKindColumn, Index: 4}).String(); got != "column-5" {
		t.Errorf("получено %q", got)
	}
}
