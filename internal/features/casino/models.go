// Package casino проводит спины слот-машины: ставка, сценарий из каталога,
// выплата, кадр анимации и учёт статистики.
// models.go описывает структуры данных казино.
package casino

import (
	"time"

	"serotonyl.ru/slot-engine/internal/engine"
)

// SpinRecord — запись одного спина в таблице casino_spins.
type SpinRecord struct {
	ID        string              `db:"id"` // uuid спина
	UserID    int64               `db:"user_id"`
	Bet       int64               `db:"bet"`
	Payout    int64               `db:"payout"`
	Bps       int64               `db:"payout_bps"` // множитель в базисных пунктах (1.0× = 1 000 000)
	Category  engine.Category     `db:"category"`
	DeckID    int                 `db:"deck_id"`
	DisplayID int                 `db:"display_id"`
	Degraded  bool                `db:"degraded"`
	Grid      engine.Grid         `db:"grid"`  // JSONB
	Lines     []engine.PaylineWin `db:"lines"` // JSONB
	EngineRTP float64             `db:"engine_rtp"`
	CreatedAt time.Time           `db:"created_at"`
}

// Stats — статистика слотов игрока (таблица casino_stats).
type Stats struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	TotalSpins   int64     `db:"total_spins" json:"total_spins"`
	TotalWagered int64     `db:"total_wagered" json:"total_wagered"`
	TotalWon     int64     `db:"total_won" json:"total_won"`
	BiggestWin   int64     `db:"biggest_win" json:"biggest_win"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RTP — личный возврат игрока: выиграно / поставлено. 0, если ставок не было.
func (s *Stats) RTP() float64 {
	if s.TotalWagered == 0 {
		return 0
	}
	return float64(s.TotalWon) / float64(s.TotalWagered)
}

// SpinOutcome — результат спина для транспорта (Telegram, HTTP).
type SpinOutcome struct {
	SpinID   string                `json:"spin_id"`
	Bet      int64                 `json:"bet"`
	Payout   int64                 `json:"payout"`
	Bps      int64                 `json:"payout_bps"`
	Balance  int64                 `json:"balance"`
	Scenario engine.ScenarioResult `json:"scenario"`
	Lines    []engine.PaylineWin   `json:"lines"`
	Dominant engine.Symbol         `json:"dominant,omitempty"`
	// Frame — косметический кадр «вращения», на исход не влияет. Frame[reel][row].
	Frame     [][]engine.Symbol `json:"frame"`
	EngineRTP float64           `json:"engine_rtp"`
}

// IsWin — была ли выплата.
func (o *SpinOutcome) IsWin() bool {
	return o.Payout > 0
}

// Net — чистый результат спина для игрока.
func (o *SpinOutcome) Net() int64 {
	return o.Payout - o.Bet
}

// CatalogInfo — сводка по колоде сценариев.
type CatalogInfo struct {
	Size         int                     `json:"size"`
	Counts       map[engine.Category]int `json:"counts"`
	Degradations int64                   `json:"degradations"`
}
