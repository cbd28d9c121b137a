// Package casino — repository.go выполняет операции с таблицами casino_spins и casino_stats.
package casino

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/db/postgres"
	"serotonyl.ru/slot-engine/internal/engine"
)

// Repository работает с таблицами казино в БД.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий казино.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveSpin сохраняет спин. Сетка и линии пишутся в JSONB.
func (r *Repository) SaveSpin(ctx context.Context, rec *SpinRecord) error {
	grid, err := json.Marshal(rec.Grid)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сетки: %w", err)
	}
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return fmt.Errorf("ошибка сериализации линий: %w", err)
	}

	query := `
		INSERT INTO casino_spins
			(id, user_id, bet, payout, payout_bps, category, deck_id, display_id,
			 degraded, grid, lines, engine_rtp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Bet, rec.Payout, rec.Bps, string(rec.Category),
		rec.DeckID, rec.DisplayID, rec.Degraded, grid, lines, rec.EngineRTP, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения спина: %w", err)
	}
	return nil
}

// GetStats возвращает статистику слотов игрока.
func (r *Repository) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	query := `
		SELECT user_id, total_spins, total_wagered, total_won, biggest_win, updated_at
		FROM casino_stats
		WHERE user_id = $1
	`
	var s Stats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.TotalSpins, &s.TotalWagered, &s.TotalWon, &s.BiggestWin, &s.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("статистика user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения статистики: %w", err)
	}
	return &s, nil
}

// UpdateStats обновляет статистику после спина одним запросом.
func (r *Repository) UpdateStats(ctx context.Context, userID, bet, won int64) error {
	query := `
		INSERT INTO casino_stats (user_id, total_spins, total_wagered, total_won, biggest_win)
		VALUES ($1, 1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			total_spins = casino_stats.total_spins + 1,
			total_wagered = casino_stats.total_wagered + $2,
			total_won = casino_stats.total_won + $3,
			biggest_win = GREATEST(casino_stats.biggest_win, $3),
			updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, userID, bet, won); err != nil {
		return fmt.Errorf("ошибка обновления статистики: %w", err)
	}
	return nil
}

// DailySummary — агрегаты по спинам за период (для ежедневного отчёта).
type DailySummary struct {
	Spins      int64
	Players    int64
	Wagered    int64
	Paid       int64
	Degraded   int64
	ByCategory map[engine.Category]int64
}

// SummarySince считает агрегаты по спинам начиная с момента since.
func (r *Repository) SummarySince(ctx context.Context, since time.Time) (*DailySummary, error) {
	sum := &DailySummary{ByCategory: make(map[engine.Category]int64)}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT user_id),
		       COALESCE(SUM(bet), 0), COALESCE(SUM(payout), 0),
		       COUNT(*) FILTER (WHERE degraded)
		FROM casino_spins
		WHERE created_at >= $1
	`, since).Scan(&sum.Spins, &sum.Players, &sum.Wagered, &sum.Paid, &sum.Degraded)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта спинов: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT category, COUNT(*)
		FROM casino_spins
		WHERE created_at >= $1
		GROUP BY category
	`, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта категорий: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat string
			n   int64
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования категории: %w", err)
		}
		sum.ByCategory[engine.Category(cat)] = n
	}
	return sum, rows.Err()
}

// SaveEngineSnapshot пишет снимок генератора в engine_snapshots.
func (r *Repository) SaveEngineSnapshot(ctx context.Context, snap engine.Snapshot) error {
	weights, err := json.Marshal(snap.Weights)
	if err != nil {
		return fmt.Errorf("ошибка сериализации весов: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO engine_snapshots (total_wagered, total_paid, current_rtp, win_rate, loss_streak, weights)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, snap.State.TotalWagered, snap.State.TotalPaid, snap.CurrentRTP, snap.WinRate, snap.State.LossStreak, weights)
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка генератора: %w", err)
	}
	return nil
}
