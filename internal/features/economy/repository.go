// Package economy — repository.go выполняет все операции с таблицами balances и transactions.
// Все денежные операции выполняются в транзакциях БД для целостности данных.
package economy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/db/postgres"
)

// Repository предоставляет методы для работы с балансами и транзакциями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий экономики.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateBalance создаёт баланс игрока со стартовым капиталом.
// Возвращает true, если запись создана сейчас. Стартовый капитал пишется в историю.
func (r *Repository) CreateBalance(ctx context.Context, userID, starting int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO balances (user_id, balance, total_earned, total_spent)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, starting)
	if err != nil {
		return false, fmt.Errorf("ошибка создания баланса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if starting > 0 {
		if err := insertTransaction(ctx, tx, Entry{
			UserID:      userID,
			Amount:      starting,
			Type:        TxTypeStartingBalance,
			Description: "Стартовый капитал",
		}, starting); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("ошибка фиксации баланса: %w", err)
	}
	return true, nil
}

// GetBalance возвращает текущий баланс игрока.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM balances WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, fmt.Errorf("баланс user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, nil
}

// Credit начисляет пленки и пишет транзакцию. Возвращает новый баланс.
func (r *Repository) Credit(ctx context.Context, e Entry) (int64, error) {
	// Обновление баланса и запись истории атомарны
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance + $2, total_earned = total_earned + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, e.UserID, e.Amount).Scan(&balance)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, fmt.Errorf("начисление user_id=%d: %w", e.UserID, common.ErrUserNotFound)
		}
		return 0, fmt.Errorf("ошибка начисления: %w", err)
	}

	if err := insertTransaction(ctx, tx, e, e.Amount); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации начисления: %w", err)
	}
	return balance, nil
}

// Debit списывает пленки. Баланс не может уйти в минус:
// при нехватке возвращается common.ErrInsufficientBalance.
func (r *Repository) Debit(ctx context.Context, e Entry) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку на время проверки
	var current int64
	err = tx.QueryRow(ctx, `SELECT balance FROM balances WHERE user_id = $1 FOR UPDATE`, e.UserID).Scan(&current)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, fmt.Errorf("списание user_id=%d: %w", e.UserID, common.ErrUserNotFound)
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	if current < e.Amount {
		return 0, fmt.Errorf("нужно %d, есть %d: %w", e.Amount, current, common.ErrInsufficientBalance)
	}

	_, err = tx.Exec(ctx, `
		UPDATE balances
		SET balance = balance - $2, total_spent = total_spent + $2, updated_at = NOW()
		WHERE user_id = $1
	`, e.UserID, e.Amount)
	if err != nil {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}

	if err := insertTransaction(ctx, tx, e, -e.Amount); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации списания: %w", err)
	}
	return current - e.Amount, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, e Entry, signed int64) error {
	var spinID *string
	if e.SpinID != "" {
		spinID = &e.SpinID
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (user_id, amount, transaction_type, description, spin_id)
		VALUES ($1, $2, $3, $4, $5)
	`, e.UserID, signed, e.Type, e.Description, spinID)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}

// GetTransactions возвращает последние N транзакций игрока.
func (r *Repository) GetTransactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	query := `
		SELECT id, user_id, amount, transaction_type, description, spin_id, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Amount, &t.TransactionType, &t.Description, &t.SpinID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}

// GetTotalStats возвращает сводку по балансу игрока.
func (r *Repository) GetTotalStats(ctx context.Context, userID int64) (*Balance, error) {
	query := `
		SELECT id, user_id, balance, total_earned, total_spent, created_at, updated_at
		FROM balances
		WHERE user_id = $1
	`
	var b Balance
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&b.ID, &b.UserID, &b.Balance, &b.TotalEarned, &b.TotalSpent,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("баланс user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &b, nil
}
