package engine

import "math"

// gridBuilder строит сетку одного сценария из локального генератора.
// Поиск ограничен: maxBuildAttempts попыток, затем maxRepairIterations шагов починки.
type gridBuilder struct {
	catalog *Catalog
	prng    Source
}

// placement — паттерн, привязанный к конкретной линии или колонке.
type placement struct {
	pattern Pattern
	index   int
}

func (p placement) lineID() LineID {
	return LineID{Kind: p.pattern.Kind, Index: p.index}
}

type cell struct {
	row, reel int
}

func (b *gridBuilder) pickPattern(cat Category) (Pattern, bool) {
	if cat == CategoryLoss {
		return Pattern{}, false
	}
	list := b.catalog.patterns[cat]
	if len(list) == 0 {
		return Pattern{}, false
	}
	return list[intn(b.prng, len(list))], true
}

// buildPattern возвращает сетку с единственной выигрышной линией паттерна.
func (b *gridBuilder) buildPattern(p Pattern) (Grid, float64, bool) {
	expected := b.catalog.evaluator.ResolveMultiplier(p.Symbol, p.Count)

	for attempt := 0; attempt < maxBuildAttempts; attempt++ {
		grid := b.baseGrid(p.Symbol)
		pl := b.place(p)
		b.stamp(grid, pl, false)
		if b.isExact(b.evaluate(grid), p, expected) {
			return grid, expected, true
		}
	}

	// Починка: паттерн остаётся на месте, лишние линии ломаются по одной ячейке
	grid := b.baseGrid(p.Symbol)
	pl := b.place(p)
	b.stamp(grid, pl, true)
	protected := b.runCells(pl)

	for i := 0; i < maxRepairIterations; i++ {
		result := b.evaluate(grid)
		if b.isExact(result, p, expected) {
			return grid, expected, true
		}

		offender, ok := b.firstUnintended(result, pl)
		if ok {
			b.disrupt(grid, offender, protected, p.Symbol)
		}
		b.stamp(grid, pl, true)
	}

	return grid, expected, b.isExact(b.evaluate(grid), p, expected)
}

// buildLoss возвращает сетку без единой выигрышной линии.
func (b *gridBuilder) buildLoss() (Grid, bool) {
	for attempt := 0; attempt < maxBuildAttempts; attempt++ {
		grid := b.baseGrid("")
		if b.evaluate(grid).TotalWin == 0 {
			return grid, true
		}
	}

	grid := b.baseGrid("")
	for i := 0; i < maxRepairIterations; i++ {
		result := b.evaluate(grid)
		if result.TotalWin == 0 {
			return grid, true
		}
		b.disrupt(grid, result.Lines[0], nil, "")
	}
	if b.evaluate(grid).TotalWin == 0 {
		return grid, true
	}

	// Последний шанс: свежая сетка без ограничений
	grid = b.baseGrid("")
	return grid, b.evaluate(grid).TotalWin == 0
}

func (b *gridBuilder) evaluate(grid Grid) SpinResult {
	return b.catalog.evaluator.Evaluate(grid, 1)
}

// isExact: сумма равна множителю паттерна, и каждая выигрышная линия — это паттерн.
func (b *gridBuilder) isExact(result SpinResult, p Pattern, expected float64) bool {
	if len(result.Lines) == 0 || !almostEqual(result.TotalWin, expected) {
		return false
	}
	for _, line := range result.Lines {
		if line.Symbol != p.Symbol || line.Count != p.Count || !almostEqual(line.Multiplier, expected) {
			return false
		}
	}
	return true
}

func (b *gridBuilder) firstUnintended(result SpinResult, pl placement) (PaylineWin, bool) {
	for _, line := range result.Lines {
		if line.Line == pl.lineID() && line.Symbol == pl.pattern.Symbol && line.Count == pl.pattern.Count {
			continue
		}
		return line, true
	}
	return PaylineWin{}, false
}

// baseGrid заполняет сетку случайными символами пула: без wild и без exclude.
func (b *gridBuilder) baseGrid(exclude Symbol) Grid {
	pool := b.catalog.fillerPool(exclude)
	if len(pool) == 0 {
		pool = []Symbol{b.catalog.layout.Symbols[0]}
	}

	grid := b.catalog.layout.NewGrid()
	for row := range grid {
		for reel := range grid[row] {
			grid[row][reel] = pool[intn(b.prng, len(pool))]
		}
	}
	return grid
}

// place выбирает линию или колонку для паттерна.
func (b *gridBuilder) place(p Pattern) placement {
	n := len(b.catalog.layout.Paylines)
	if p.Kind == LineKindColumn {
		n = b.catalog.layout.Reels
	}
	return placement{pattern: p, index: intn(b.prng, n)}
}

// lineCells — все ячейки линии в порядке оценки.
func (b *gridBuilder) lineCells(id LineID) []cell {
	layout := b.catalog.layout
	if id.Kind == LineKindColumn {
		cells := make([]cell, layout.Rows)
		for row := range cells {
			cells[row] = cell{row: row, reel: id.Index}
		}
		return cells
	}

	line := layout.Paylines[id.Index]
	cells := make([]cell, len(line))
	for reel, row := range line {
		cells[reel] = cell{row: row, reel: reel}
	}
	return cells
}

func (b *gridBuilder) runCells(pl placement) map[cell]bool {
	cells := b.lineCells(pl.lineID())
	out := make(map[cell]bool, pl.pattern.Count)
	for _, c := range cells[:pl.pattern.Count] {
		out[c] = true
	}
	return out
}

// stamp ставит паттерн на линию, остаток линии заполняет символами не из паттерна.
// С preserve заменяются только ячейки, которые могли бы продлить серию.
func (b *gridBuilder) stamp(grid Grid, pl placement, preserve bool) {
	target := pl.pattern.Symbol
	for i, c := range b.lineCells(pl.lineID()) {
		current := grid[c.row][c.reel]
		switch {
		case i < pl.pattern.Count:
			grid[c.row][c.reel] = target
		case !preserve || current == target || current == SymbolWild:
			grid[c.row][c.reel] = b.filler(target)
		}
	}
}

// disrupt ломает выигрышную линию: одна ячейка серии заменяется символом,
// который не продолжает ни эту серию, ни паттерн. Ячейки паттерна не трогаем, если есть выбор.
func (b *gridBuilder) disrupt(grid Grid, win PaylineWin, protected map[cell]bool, patternSymbol Symbol) {
	cells := b.lineCells(win.Line)
	last := min(win.Count, len(cells)) - 1
	if last < 0 {
		return
	}

	target := -1
	// Третья ячейка обрывает серию короче порога за один шаг
	for i := min(last, minRunLength-1); i >= 0; i-- {
		if !protected[cells[i]] {
			target = i
			break
		}
	}
	if target < 0 {
		for i := last; i > minRunLength-1; i-- {
			if !protected[cells[i]] {
				target = i
				break
			}
		}
	}
	if target < 0 {
		target = last
	}

	c := cells[target]
	grid[c.row][c.reel] = b.filler(patternSymbol, win.Symbol)
}

// filler выбирает случайный символ пула без wild и без exclude.
func (b *gridBuilder) filler(exclude ...Symbol) Symbol {
	pool := b.catalog.fillerPool(exclude...)
	if len(pool) == 0 && len(exclude) > 1 {
		// Исключили всё: берём любой не-wild символ, кроме первого исключённого
		pool = b.catalog.fillerPool(exclude[0])
	}
	if len(pool) == 0 {
		return b.catalog.layout.Symbols[0]
	}
	return pool[intn(b.prng, len(pool))]
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < multiplierEpsilon
}
