package engine

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Category — категория исхода сценария.
type Category string

const (
	CategoryLoss    Category = "loss"
	CategoryPartial Category = "partial"
	CategoryWinLow  Category = "win_low"
	CategoryWinMid  Category = "win_mid"
	CategoryWinHigh Category = "win_high"
)

// Categories — все категории в порядке заполнения колоды.
var Categories = []Category{
	CategoryLoss, CategoryPartial, CategoryWinLow, CategoryWinMid, CategoryWinHigh,
}

const (
	// DefaultMasterSeed — seed колоды по умолчанию.
	DefaultMasterSeed uint32 = 0xC0DEFACE
	// DisplayIDSpace — displayID лежит в [0, DisplayIDSpace).
	DisplayIDSpace = 100_000

	maxBuildAttempts    = 200
	maxRepairIterations = 64
	multiplierEpsilon   = 1e-6
)

// Distribution — сколько сценариев каждой категории лежит в колоде.
type Distribution struct {
	Total  int
	Counts map[Category]int
}

// DefaultDistribution — 100 000 сценариев: половина проигрышей, 30% частичных возвратов.
func DefaultDistribution() Distribution {
	return Distribution{
		Total: 100_000,
		Counts: map[Category]int{
			CategoryLoss:    50_000,
			CategoryPartial: 30_000,
			CategoryWinLow:  12_000,
			CategoryWinMid:  6_000,
			CategoryWinHigh: 2_000,
		},
	}
}

// Validate проверяет, что сумма категорий равна объявленному итогу.
func (d Distribution) Validate() error {
	if d.Total <= 0 {
		return configErrorf("distribution", "итог должен быть > 0, получено %d", d.Total)
	}

	known := make(map[Category]bool, len(Categories))
	for _, cat := range Categories {
		known[cat] = true
	}

	sum := 0
	for cat, n := range d.Counts {
		if !known[cat] {
			return configErrorf("distribution", "неизвестная категория %q", cat)
		}
		if n < 0 {
			return configErrorf("distribution", "категория %q: отрицательное количество %d", cat, n)
		}
		sum += n
	}
	if sum != d.Total {
		return configErrorf("distribution", "сумма категорий %d не равна итогу %d", sum, d.Total)
	}
	return nil
}

// Pattern — выигрышная серия, которую сценарий гарантирует.
type Pattern struct {
	Kind   LineKind
	Symbol Symbol
	Count  int
}

func (p Pattern) String() string {
	kind := "payline"
	if p.Kind == LineKindColumn {
		kind = "column"
	}
	return fmt.Sprintf("%s %s×%d", kind, p.Symbol, p.Count)
}

// DefaultPatterns — кандидаты для каждой выигрышной категории.
// Серия wild возможна только на всю колонку: за неполной серией wild идёт обычный символ,
// он становится основным, и заявленный множитель не получится. Полная линия wild
// на payline всегда задевает соседние линии через общие ячейки.
// Поэтому в win_mid вместо payline wild×3 стоит payline "3"×5, а в win_high
// column wild×4 и column wild×5 заменены одним column "5"×5.
func DefaultPatterns() map[Category][]Pattern {
	return map[Category][]Pattern{
		CategoryPartial: {
			{Kind: LineKindPayline, Symbol: SymbolOne, Count: 3},
			{Kind: LineKindPayline, Symbol: SymbolTwo, Count: 3},
			{Kind: LineKindColumn, Symbol: SymbolOne, Count: 3},
			{Kind: LineKindColumn, Symbol: SymbolTwo, Count: 3},
		},
		CategoryWinLow: {
			{Kind: LineKindPayline, Symbol: SymbolOne, Count: 4},
			{Kind: LineKindPayline, Symbol: SymbolTwo, Count: 4},
			{Kind: LineKindPayline, Symbol: SymbolThree, Count: 3},
			{Kind: LineKindColumn, Symbol: SymbolOne, Count: 5},
			{Kind: LineKindColumn, Symbol: SymbolTwo, Count: 4},
		},
		CategoryWinMid: {
			{Kind: LineKindPayline, Symbol: SymbolThree, Count: 5},
			{Kind: LineKindPayline, Symbol: SymbolFour, Count: 4},
			{Kind: LineKindPayline, Symbol: SymbolFive, Count: 4},
			{Kind: LineKindColumn, Symbol: SymbolThree, Count: 5},
			{Kind: LineKindColumn, Symbol: SymbolFour, Count: 5},
		},
		CategoryWinHigh: {
			{Kind: LineKindPayline, Symbol: SymbolFive, Count: 5},
			{Kind: LineKindColumn, Symbol: SymbolFive, Count: 5},
			{Kind: LineKindColumn, Symbol: SymbolFour, Count: 6},
			{Kind: LineKindColumn, Symbol: SymbolFive, Count: 6},
			{Kind: LineKindColumn, Symbol: SymbolWild, Count: 6},
		},
	}
}

// ScenarioDefinition — запись колоды. Не меняется после построения каталога.
type ScenarioDefinition struct {
	ID       int      `json:"id"`
	Category Category `json:"category"`
	Seed     uint32   `json:"seed"`
}

// ScenarioResult — итоговая сетка спина.
type ScenarioResult struct {
	// DisplayID — случайный номер для внешнего расчёта, с записью колоды не связан.
	DisplayID      int      `json:"display_id"`
	DeckID         int      `json:"deck_id"`
	Category       Category `json:"category"`
	Grid           Grid     `json:"grid"`
	BaseMultiplier float64  `json:"base_multiplier"`
	// Degraded — построение не уложилось в лимит попыток и вернуло лучшую найденную сетку.
	Degraded bool `json:"degraded"`
}

// CatalogOptions — параметры построения каталога.
type CatalogOptions struct {
	Distribution Distribution
	Patterns     map[Category][]Pattern
	MasterSeed   uint32
	// Source — источник для выбора записи колоды и displayID. nil — crypto/rand.
	Source Source
}

// DefaultCatalogOptions — боевые параметры.
func DefaultCatalogOptions() CatalogOptions {
	return CatalogOptions{
		Distribution: DefaultDistribution(),
		Patterns:     DefaultPatterns(),
		MasterSeed:   DefaultMasterSeed,
		Source:       CryptoSource{},
	}
}

// Catalog — колода сценариев с гарантированными исходами.
// Строится один раз в NewCatalog и дальше не меняется; NextScenario можно вызывать
// из разных горутин.
type Catalog struct {
	layout    *Layout
	evaluator *Evaluator
	patterns  map[Category][]Pattern
	deck      []ScenarioDefinition
	counts    map[Category]int

	mu     sync.Mutex // защищает source
	source Source

	degraded atomic.Int64
}

// NewCatalog проверяет распределение и паттерны и строит колоду.
// Построение синхронное и детерминированное: одинаковый MasterSeed даёт одинаковую колоду.
func NewCatalog(evaluator *Evaluator, opts CatalogOptions) (*Catalog, error) {
	if err := opts.Distribution.Validate(); err != nil {
		return nil, err
	}
	if opts.Patterns == nil {
		opts.Patterns = DefaultPatterns()
	}
	if opts.Source == nil {
		opts.Source = CryptoSource{}
	}

	c := &Catalog{
		layout:    evaluator.Layout(),
		evaluator: evaluator,
		patterns:  opts.Patterns,
		source:    opts.Source,
		counts:    make(map[Category]int, len(Categories)),
	}
	if err := c.validatePatterns(opts.Distribution); err != nil {
		return nil, err
	}

	c.deck = buildDeck(opts.Distribution, opts.MasterSeed)
	for _, def := range c.deck {
		c.counts[def.Category]++
	}
	return c, nil
}

// buildDeck раскладывает категории, перемешивает Фишером–Йейтсом и раздаёт seed.
func buildDeck(dist Distribution, masterSeed uint32) []ScenarioDefinition {
	prng := NewMulberry32(masterSeed)

	categories := make([]Category, 0, dist.Total)
	for _, cat := range Categories {
		for i := 0; i < dist.Counts[cat]; i++ {
			categories = append(categories, cat)
		}
	}

	for i := len(categories) - 1; i > 0; i-- {
		j := int(prng.Float64() * float64(i+1))
		categories[i], categories[j] = categories[j], categories[i]
	}

	deck := make([]ScenarioDefinition, len(categories))
	for i, cat := range categories {
		deck[i] = ScenarioDefinition{
			ID:       i,
			Category: cat,
			Seed:     uint32(math.Floor(prng.Float64() * 0xffffffff)),
		}
	}
	return deck
}

// validatePatterns отбраковывает паттерны, которые нельзя собрать на этой сетке.
func (c *Catalog) validatePatterns(dist Distribution) error {
	for _, cat := range Categories {
		if cat == CategoryLoss || dist.Counts[cat] == 0 {
			continue
		}
		list := c.patterns[cat]
		if len(list) == 0 {
			return configErrorf("patterns", "нет паттернов для категории %q", cat)
		}
		for _, p := range list {
			lineLen := c.layout.Reels
			if p.Kind == LineKindColumn {
				lineLen = c.layout.Rows
			}
			switch {
			case !c.layout.Known(p.Symbol):
				return configErrorf("patterns", "%s: неизвестный символ", p)
			case p.Count < minRunLength || p.Count > lineLen:
				return configErrorf("patterns", "%s: длина вне [%d, %d]", p, minRunLength, lineLen)
			case p.Symbol == SymbolWild && p.Count != lineLen:
				return configErrorf("patterns", "%s: серия wild должна занимать всю линию", p)
			case c.evaluator.ResolveMultiplier(p.Symbol, p.Count) <= 0:
				return configErrorf("patterns", "%s: нет выплаты", p)
			case len(c.fillerPool(p.Symbol)) == 0:
				return configErrorf("patterns", "%s: нечем заполнять сетку", p)
			}
		}
	}
	return nil
}

// NextScenario выбирает случайную запись колоды и строит по ней сетку.
// Каждый вызов независим: это не курсор по колоде.
func (c *Catalog) NextScenario() ScenarioResult {
	c.mu.Lock()
	index := intn(c.source, len(c.deck))
	displayID := intn(c.source, DisplayIDSpace)
	c.mu.Unlock()

	result := c.Resolve(c.deck[index])
	result.DisplayID = displayID
	return result
}

// Resolve строит сетку для конкретной записи колоды. Результат зависит только от записи.
// DisplayID остаётся нулевым: его назначает NextScenario.
func (c *Catalog) Resolve(def ScenarioDefinition) ScenarioResult {
	b := &gridBuilder{catalog: c, prng: NewMulberry32(def.Seed)}

	var (
		grid  Grid
		mult  float64
		exact bool
	)
	if pattern, ok := b.pickPattern(def.Category); ok {
		grid, mult, exact = b.buildPattern(pattern)
	} else {
		grid, exact = b.buildLoss()
	}

	if !exact {
		c.degraded.Add(1)
	}

	return ScenarioResult{
		DeckID:         def.ID,
		Category:       def.Category,
		Grid:           grid,
		BaseMultiplier: mult,
		Degraded:       !exact,
	}
}

// Definition возвращает запись колоды по id.
func (c *Catalog) Definition(id int) (ScenarioDefinition, bool) {
	if id < 0 || id >= len(c.deck) {
		return ScenarioDefinition{}, false
	}
	return c.deck[id], true
}

// Len — размер колоды.
func (c *Catalog) Len() int {
	return len(c.deck)
}

// Counts возвращает фактическое число записей по категориям.
func (c *Catalog) Counts() map[Category]int {
	out := make(map[Category]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Degradations — сколько раз построение сетки вернуло неточный результат.
func (c *Catalog) Degradations() int64 {
	return c.degraded.Load()
}

// Patterns возвращает кандидатов категории.
func (c *Catalog) Patterns(cat Category) []Pattern {
	return append([]Pattern(nil), c.patterns[cat]...)
}

// fillerPool — символы, которыми можно заполнять сетку вокруг паттерна.
func (c *Catalog) fillerPool(exclude ...Symbol) []Symbol {
	pool := make([]Symbol, 0, len(c.layout.Symbols))
	for _, sym := range c.layout.Symbols {
		if sym == SymbolWild || containsSymbol(exclude, sym) {
			continue
		}
		pool = append(pool, sym)
	}
	return pool
}

func containsSymbol(list []Symbol, sym Symbol) bool {
	for _, s := range list {
		if s == sym {
			return true
		}
	}
	return false
}
