// Package casino — render.go превращает сетки и результаты в текст для Telegram.
package casino

import (
	"fmt"
	"strings"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/engine"
)

// symbolEmoji — как символы выглядят в чате.
var symbolEmoji = map[engine.Symbol]string{
	engine.SymbolOne:   "🍒",
	engine.SymbolTwo:   "🍋",
	engine.SymbolThree: "🍇",
	engine.SymbolFour:  "🔔",
	engine.SymbolFive:  "💎",
	engine.SymbolWild:  "⭐",
}

// SymbolEmoji возвращает эмодзи символа; для пустой ячейки — "▫️".
func SymbolEmoji(sym engine.Symbol) string {
	if e, ok := symbolEmoji[sym]; ok {
		return e
	}
	if sym == "" {
		return "▫️"
	}
	return string(sym)
}

// RenderGrid рисует сетку построчно.
func RenderGrid(grid engine.Grid) string {
	var sb strings.Builder
	for i, row := range grid {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, sym := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(SymbolEmoji(sym))
		}
	}
	return sb.String()
}

// RenderFrame рисует кадр вращения. Кадр хранится по барабанам (frame[reel][row]),
// последняя строка каждого барабана скрытая и не выводится.
func RenderFrame(frame [][]engine.Symbol) string {
	if len(frame) == 0 {
		return ""
	}
	rows := len(frame[0]) - 1
	grid := make(engine.Grid, 0, rows)
	for row := 0; row < rows; row++ {
		line := make([]engine.Symbol, len(frame))
		for reel, strip := range frame {
			if row < len(strip) {
				line[reel] = strip[row]
			}
		}
		grid = append(grid, line)
	}
	return RenderGrid(grid)
}

// FormatSpinning — первое сообщение спина, пока «крутятся» барабаны.
func FormatSpinning(o *SpinOutcome) string {
	return fmt.Sprintf("🎰 СЛОТЫ 🎰\n\n%s\n\n⏳ Крутим...", RenderFrame(o.Frame))
}

// FormatResult — итоговое сообщение спина.
//
// Формат:
//
//	🎰 СЛОТЫ 🎰  #04217
//
//	🍒 🍋 🍇 🔔 💎
//	...
//
//	✅ payline-3: 🍇 ×3 → ×1.6
//	💰 Выигрыш: +80 пленок
//	Баланс: 1 030 пленок
func FormatResult(o *SpinOutcome) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎰 СЛОТЫ 🎰  #%05d\n\n", o.Scenario.DisplayID))
	sb.WriteString(RenderGrid(o.Scenario.Grid))
	sb.WriteString("\n\n")

	for _, line := range o.Lines {
		sb.WriteString(fmt.Sprintf("✅ %s: %s ×%d → ×%g\n",
			line.Line, SymbolEmoji(line.Symbol), line.Count, line.Multiplier))
	}

	if o.IsWin() {
		sb.WriteString(fmt.Sprintf("💰 Выигрыш: %s\n", common.FormatFilmsAmount(o.Payout)))
	} else {
		sb.WriteString(fmt.Sprintf("😔 Мимо. Ставка: %s\n", common.FormatFilmsAmount(-o.Bet)))
	}
	sb.WriteString(fmt.Sprintf("Баланс: %s", common.FormatBalance(o.Balance)))
	return sb.String()
}

// FormatStats — ответ на !статслоты.
func FormatStats(s *Stats) string {
	if s.TotalSpins == 0 {
		return "🎰 Вы ещё не крутили слоты"
	}
	return fmt.Sprintf(
		"🎰 Статистика слотов\n\n"+
			"Спинов: %s %s\n"+
			"Поставлено: %s\n"+
			"Выиграно: %s\n"+
			"Крупнейший выигрыш: %s\n"+
			"Личный RTP: %s",
		common.FormatNumber(s.TotalSpins), common.PluralizeSpins(s.TotalSpins),
		common.FormatBalance(s.TotalWagered),
		common.FormatBalance(s.TotalWon),
		common.FormatBalance(s.BiggestWin),
		common.FormatPercent(s.RTP()),
	)
}
