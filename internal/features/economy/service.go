// Package economy — service.go содержит бизнес-логику экономики.
// Валидация сумм, стартовый капитал, получение баланса и истории транзакций.
package economy

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
)

// ledger — операции хранилища, которыми пользуется сервис.
type ledger interface {
	CreateBalance(ctx context.Context, userID, starting int64) (bool, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	Credit(ctx context.Context, e Entry) (int64, error)
	Debit(ctx context.Context, e Entry) (int64, error)
	GetTransactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error)
	GetTotalStats(ctx context.Context, userID int64) (*Balance, error)
}

// historyLimit — сколько транзакций показывает !транзакции.
const historyLimit = 10

// Service управляет пленками игроков.
type Service struct {
	repo            ledger
	startingBalance int64
}

// NewService создаёт новый сервис экономики.
// startingBalance начисляется игроку при первом обращении.
func NewService(repo ledger, startingBalance int64) *Service {
	return &Service{repo: repo, startingBalance: startingBalance}
}

// EnsureBalance гарантирует, что у игрока есть баланс.
// Новому игроку начисляется стартовый капитал.
func (s *Service) EnsureBalance(ctx context.Context, userID int64) error {
	created, err := s.repo.CreateBalance(ctx, userID, s.startingBalance)
	if err != nil {
		return err
	}
	if created {
		log.WithFields(log.Fields{
			"user_id":  userID,
			"starting": s.startingBalance,
		}).Info("Создан баланс игрока")
	}
	return nil
}

// GetBalance возвращает текущий баланс игрока.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Credit начисляет пленки и возвращает новый баланс.
func (s *Service) Credit(ctx context.Context, e Entry) (int64, error) {
	if e.Amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	return s.repo.Credit(ctx, e)
}

// Debit списывает пленки и возвращает новый баланс.
// Ошибки нехватки средств оборачивают common.ErrInsufficientBalance.
func (s *Service) Debit(ctx context.Context, e Entry) (int64, error) {
	if e.Amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	return s.repo.Debit(ctx, e)
}

// GetStats возвращает сводку по балансу.
func (s *Service) GetStats(ctx context.Context, userID int64) (*Balance, error) {
	return s.repo.GetTotalStats(ctx, userID)
}

// GetTransactionHistory возвращает отформатированную историю последних транзакций.
func (s *Service) GetTransactionHistory(ctx context.Context, userID int64) (string, error) {
	transactions, err := s.repo.GetTransactions(ctx, userID, historyLimit)
	if err != nil {
		return "", err
	}
	return FormatHistory(transactions), nil
}

// FormatHistory строит текст истории транзакций для Telegram.
// Если транзакций больше 5 — остальные прячутся в спойлер (||текст||).
func FormatHistory(transactions []*Transaction) string {
	if len(transactions) == 0 {
		return "📋 У вас пока нет транзакций"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Последние %d транзакций:\n\n", len(transactions)))

	lines := make([]string, 0, len(transactions))
	for i, tx := range transactions {
		lines = append(lines, fmt.Sprintf("%d. %s | %s | %s",
			i+1,
			common.FormatDateTime(tx.CreatedAt),
			common.FormatFilmsAmount(tx.Amount),
			tx.Description,
		))
	}

	open := lines
	var hidden []string
	if len(lines) > 5 {
		open, hidden = lines[:5], lines[5:]
	}
	for _, line := range open {
		sb.WriteString(line + "\n")
	}
	if len(hidden) > 0 {
		sb.WriteString("\n||")
		for _, line := range hidden {
			sb.WriteString(line + "\n")
		}
		sb.WriteString("||")
	}
	return sb.String()
}
