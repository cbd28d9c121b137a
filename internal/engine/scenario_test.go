package engine

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
)

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *Catalog
	defaultCatalogErr  error
)

// sharedCatalog строит боевую колоду один раз на весь пакет тестов.
func sharedCatalog(t testing.TB) *Catalog {
	t.Helper()
	defaultCatalogOnce.Do(func() {
		ev, err := NewEvaluator(DefaultLayout())
		if err != nil {
			defaultCatalogErr = err
			return
		}
		opts := DefaultCatalogOptions()
		opts.Source = NewPCGSource(11)
		defaultCatalog, defaultCatalogErr = NewCatalog(ev, opts)
	})
	if defaultCatalogErr != nil {
		t.Fatalf("NewCatalog: %v", defaultCatalogErr)
	}
	return defaultCatalog
}

func TestCatalogCounts(t *testing.T) {
	c := sharedCatalog(t)

	want := DefaultDistribution()
	if c.Len() != want.Total {
		t.Fatalf("Len() = %d, ожидалось %d", c.Len(), want.Total)
	}
	got := c.Counts()
	for cat, n := range want.Counts {
		if got[cat] != n {
			t.Errorf("%s: %d записей, ожидалось %d", cat, got[cat], n)
		}
	}

	// Counts отдаёт копию
	got[CategoryLoss] = 0
	if c.Counts()[CategoryLoss] != want.Counts[CategoryLoss] {
		t.Error("Counts отдал внутреннюю карту")
	}
}

func TestDeckIsDeterministic(t *testing.T) {
	c := sharedCatalog(t)

	want := []ScenarioDefinition{
		{ID: 0, Category: CategoryLoss, Seed: 2450931918},
		{ID: 1, Category: CategoryPartial, Seed: 1993289627},
		{ID: 2, Category: CategoryPartial, Seed: 4266102912},
		{ID: 3, Category: CategoryLoss, Seed: 2689799081},
		{ID: 4, Category: CategoryLoss, Seed: 2938402079},
	}
	for _, w := range want {
		got, ok := c.Definition(w.ID)
		if !ok || got != w {
			t.Errorf("Definition(%d) = %+v, ожидалось %+v", w.ID, got, w)
		}
	}

	if _, ok := c.Definition(-1); ok {
		t.Error("Definition(-1) найден")
	}
	if _, ok := c.Definition(c.Len()); ok {
		t.Error("Definition(Len()) найден")
	}

	again := buildDeck(DefaultDistribution(), DefaultMasterSeed)
	for i := 0; i < c.Len(); i += 997 {
		if def, _ := c.Definition(i); def != again[i] {
			t.Fatalf("запись %d различается между построениями: %+v / %+v", i, def, again[i])
		}
	}
}

func TestDistributionValidate(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
	}{
		{"сумма не сходится", Distribution{Total: 10, Counts: map[Category]int{CategoryLoss: 9}}},
		{"отрицательное количество", Distribution{Total: 1, Counts: map[Category]int{CategoryLoss: 2, CategoryPartial: -1}}},
		{"неизвестная категория", Distribution{Total: 1, Counts: map[Category]int{"jackpot": 1}}},
		{"пустая колода", Distribution{Total: 0}},
	}

	ev := mustEvaluator(t, DefaultLayout())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *ConfigurationError
			if err := tt.dist.Validate(); !errors.As(err, &cfgErr) {
				t.Fatalf("ожидалась *ConfigurationError, получено %v", err)
			}

			opts := DefaultCatalogOptions()
			opts.Distribution = tt.dist
			if _, err := NewCatalog(ev, opts); err == nil {
				t.Error("NewCatalog принял некорректное распределение")
			}
		})
	}
}

func TestNewCatalogRejectsUnbuildablePatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
	}{
		{"неполная серия wild", Pattern{Kind: LineKindPayline, Symbol: SymbolWild, Count: 3}},
		{"серия длиннее линии", Pattern{Kind: LineKindPayline, Symbol: SymbolTwo, Count: 6}},
		{"серия короче порога", Pattern{Kind: LineKindColumn, Symbol: SymbolTwo, Count: 2}},
		{"неизвестный символ", Pattern{Kind: LineKindColumn, Symbol: "9", Count: 3}},
	}

	ev := mustEvaluator(t, DefaultLayout())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultCatalogOptions()
			opts.Patterns = DefaultPatterns()
			opts.Patterns[CategoryWinHigh] = append(opts.Patterns[CategoryWinHigh], tt.pattern)

			_, err := NewCatalog(ev, opts)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Field != "patterns" {
				t.Fatalf("ожидалась ошибка patterns, получено %v", err)
			}
		})
	}

	t.Run("категория без паттернов", func(t *testing.T) {
		opts := DefaultCatalogOptions()
		opts.Patterns = DefaultPatterns()
		delete(opts.Patterns, CategoryWinMid)
		if _, err := NewCatalog(ev, opts); err == nil {
			t.Fatal("NewCatalog принял категорию без паттернов")
		}
	})
}

// checkResolved проверяет, что сетка даёт ровно заявленный исход.
func checkResolved(t *testing.T, c *Catalog, def ScenarioDefinition, res ScenarioResult) {
	t.Helper()

	if res.Degraded {
		t.Fatalf("запись %d (%s) построена с деградацией:\n%s", def.ID, def.Category, res.Grid)
	}
	if res.DeckID != def.ID || res.Category != def.Category {
		t.Fatalf("запись %d: результат %+v", def.ID, res)
	}
	if len(res.Grid) != 6 || len(res.Grid[0]) != 5 {
		t.Fatalf("запись %d: размер сетки %dx%d", def.ID, len(res.Grid), len(res.Grid[0]))
	}

	eval := c.evaluator.Evaluate(res.Grid, 1)
	if def.Category == CategoryLoss {
		if eval.TotalWin != 0 || res.BaseMultiplier != 0 {
			t.Fatalf("проигрыш %d выплачивает %v:\n%s", def.ID, eval.TotalWin, res.Grid)
		}
		return
	}

	if len(eval.Lines) != 1 {
		t.Fatalf("запись %d: выигрышных линий %d, ожидалась одна:\n%s\n%+v", def.ID, len(eval.Lines), res.Grid, eval.Lines)
	}
	if math.Abs(eval.TotalWin-res.BaseMultiplier) > multiplierEpsilon {
		t.Fatalf("запись %d: выигрыш %v, заявлено %v", def.ID, eval.TotalWin, res.BaseMultiplier)
	}

	line := eval.Lines[0]
	matched := false
	for _, p := range c.Patterns(def.Category) {
		if p.Kind == line.Line.Kind && p.Symbol == line.Symbol && p.Count == line.Count {
			matched = true
			break
		}
	}
	if !matched {
		t.Fatalf("запись %d: линия %+v не из паттернов категории %s", def.ID, line, def.Category)
	}
}

func TestResolveMatchesCategory(t *testing.T) {
	c := sharedCatalog(t)

	step := 1
	if testing.Short() {
		step = 97
	}
	for id := 0; id < c.Len(); id += step {
		def, _ := c.Definition(id)
		checkResolved(t, c, def, c.Resolve(def))
	}
	if n := c.Degradations(); n != 0 {
		t.Errorf("Degradations() = %d", n)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	c := sharedCatalog(t)

	for _, id := range []int{0, 1, 2, 12345, 99999} {
		def, _ := c.Definition(id)
		a, b := c.Resolve(def), c.Resolve(def)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("запись %d: результаты различаются\n%s\n\n%s", id, a.Grid, b.Grid)
		}
	}
}

func TestNextScenarioUsesSource(t *testing.T) {
	ev := mustEvaluator(t, DefaultLayout())
	opts := DefaultCatalogOptions()
	opts.Source = NewSequenceSource(0.5, 0.25)

	c, err := NewCatalog(ev, opts)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	res := c.NextScenario()
	if res.DeckID != 50_000 || res.DisplayID != 25_000 {
		t.Fatalf("DeckID/DisplayID = %d/%d, ожидалось 50000/25000", res.DeckID, res.DisplayID)
	}
	def, _ := c.Definition(50_000)
	checkResolved(t, c, def, res)

	// Результат совпадает с прямым Resolve, кроме DisplayID
	direct := c.Resolve(def)
	direct.DisplayID = res.DisplayID
	if !reflect.DeepEqual(direct, res) {
		t.Error("NextScenario и Resolve построили разные сетки")
	}
}

func TestNextScenarioCategoryFrequencies(t *testing.T) {
	if testing.Short() {
		t.Skip("долгий статистический тест")
	}
	c := sharedCatalog(t)

	const draws = 20_000
	seen := make(map[Category]int)
	for i := 0; i < draws; i++ {
		res := c.NextScenario()
		if res.DisplayID < 0 || res.DisplayID >= DisplayIDSpace {
			t.Fatalf("DisplayID %d вне диапазона", res.DisplayID)
		}
		seen[res.Category]++
	}

	dist := DefaultDistribution()
	for cat, n := range dist.Counts {
		want := float64(n) / float64(dist.Total)
		got := float64(seen[cat]) / draws
		if math.Abs(got-want) > 0.015 {
			t.Errorf("%s: частота %.4f, ожидалось %.4f", cat, got, want)
		}
	}
}

// tinyLayout — сетка 3×3, на которой часть паттернов собрать невозможно.
func tinyLayout(symbols ...Symbol) *Layout {
	l := &Layout{
		Reels:    3,
		Rows:     3,
		Configs:  map[Symbol]SymbolConfig{},
		Payouts:  PayoutTable{},
		Paylines: []Payline{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}},
		RNG:      DefaultRNGTuning(),
	}
	for i, sym := range append(symbols, SymbolWild) {
		l.Symbols = append(l.Symbols, sym)
		l.Configs[sym] = SymbolConfig{Difficulty: i + 1, BaseWeight: 10, Tier: TierLow, Volatility: 1}
		l.Payouts[sym] = map[int]float64{3: float64(i + 1)}
	}
	return l
}

func TestDegradedScenarioIsReported(t *testing.T) {
	tests := []struct {
		name     string
		symbols  []Symbol
		category Category
		patterns map[Category][]Pattern
	}{
		{
			// Единственный заполнитель — «2», он выигрывает на всех остальных линиях
			name:     "паттерн",
			symbols:  []Symbol{SymbolOne, SymbolTwo},
			category: CategoryWinLow,
			patterns: map[Category][]Pattern{
				CategoryWinLow: {{Kind: LineKindPayline, Symbol: SymbolOne, Count: 3}},
			},
		},
		{
			// Сетка из одного символа всегда выигрывает
			name:     "проигрыш",
			symbols:  []Symbol{SymbolOne},
			category: CategoryLoss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := mustEvaluator(t, tinyLayout(tt.symbols...))
			c, err := NewCatalog(ev, CatalogOptions{
				Distribution: Distribution{Total: 4, Counts: map[Category]int{tt.category: 4}},
				Patterns:     tt.patterns,
				MasterSeed:   1,
				Source:       NewSequenceSource(0),
			})
			if err != nil {
				t.Fatalf("NewCatalog: %v", err)
			}

			res := c.NextScenario()
			if !res.Degraded {
				t.Fatalf("ожидалась деградация, сетка:\n%s", res.Grid)
			}
			if res.Category != tt.category || len(res.Grid) != 3 {
				t.Errorf("результат %+v", res)
			}
			if c.Degradations() != 1 {
				t.Errorf("Degradations() = %d", c.Degradations())
			}
		})
	}
}
