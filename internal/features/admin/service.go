// Package admin — service.go содержит логику аутентификации, управления сессиями,
// state-машину админ-диалога и действия над генератором и балансами.
package admin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/features/casino"
	"serotonyl.ru/slot-engine/internal/features/economy"
)

// sessionStore — операции с сессиями и попытками входа.
type sessionStore interface {
	CreateSession(ctx context.Context, session *AdminSession) error
	GetActiveSession(ctx context.Context, userID int64) (*AdminSession, error)
	DeactivateSession(ctx context.Context, userID int64) error
	UpdateActivity(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, userID int64, success bool) error
	GetRecentAttempts(ctx context.Context, userID int64, period time.Duration) (int, error)
}

// EngineControl — то, что админка может делать с генератором.
type EngineControl interface {
	EngineSnapshot() engine.Snapshot
	ResetEngine()
	CatalogInfo() casino.CatalogInfo
}

// Wallet — ручные корректировки балансов.
type Wallet interface {
	EnsureBalance(ctx context.Context, userID int64) error
	Credit(ctx context.Context, e economy.Entry) (int64, error)
	Debit(ctx context.Context, e economy.Entry) (int64, error)
}

// Registry — реестр игроков: корректировать можно только известных.
type Registry interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

// Service управляет админ-панелью.
type Service struct {
	repo         sessionStore
	isAdmin      func(userID int64) bool
	passwordHash string
	engine       EngineControl
	wallet       Wallet
	players      Registry

	states   map[int64]*AdminState // Состояния диалогов (in-memory)
	statesMu sync.RWMutex
	now      func() time.Time
}

// NewService создаёт сервис админ-панели.
func NewService(repo sessionStore, isAdmin func(int64) bool, passwordHash string, eng EngineControl, wallet Wallet, players Registry) *Service {
	return &Service{
		repo:         repo,
		isAdmin:      isAdmin,
		passwordHash: passwordHash,
		engine:       eng,
		wallet:       wallet,
		players:      players,
		states:       make(map[int64]*AdminState),
		now:          time.Now,
	}
}

// IsAdmin — есть ли пользователь в списке ADMIN_IDS.
func (s *Service) IsAdmin(userID int64) bool {
	return s.isAdmin(userID)
}

// VerifyPassword проверяет пароль администратора с использованием Argon2id.
// Включает защиту от brute-force: 3 неудачные попытки за час = блокировка.
// При успехе создаётся сессия на 24 часа.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) error {
	if !s.isAdmin(userID) {
		return common.ErrNotAdmin
	}

	attempts, err := s.repo.GetRecentAttempts(ctx, userID, lockoutPeriod)
	if err != nil {
		return err
	}
	if attempts >= maxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := s.passwordHash != "" && verifyArgon2id(password, s.passwordHash)
	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).Warn("Попытка входа не записана")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}

	session := &AdminSession{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    s.now().Add(sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Администратор вошёл в панель")
	return nil
}

// Authorize проверяет, что пользователь — админ с активной сессией, и продлевает активность.
func (s *Service) Authorize(ctx context.Context, userID int64) error {
	if !s.isAdmin(userID) {
		return common.ErrNotAdmin
	}
	if _, err := s.repo.GetActiveSession(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.UpdateActivity(ctx, userID); err != nil {
		log.WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return nil
}

// Logout завершает сессию.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	s.ClearState(userID)
	return s.repo.DeactivateSession(ctx, userID)
}

// GetState возвращает текущее состояние диалога или nil.
func (s *Service) GetState(userID int64) *AdminState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok || s.now().After(state.ExpiresAt) {
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, stateName string) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	s.states[userID] = &AdminState{State: stateName, ExpiresAt: s.now().Add(stateTTL)}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}

// EngineReport — текстовый отчёт о генераторе и колоде.
func (s *Service) EngineReport() string {
	return FormatEngineReport(s.engine.EngineSnapshot(), s.engine.CatalogInfo())
}

// ResetEngine сбрасывает накопленную статистику генератора.
func (s *Service) ResetEngine(adminID int64) {
	s.engine.ResetEngine()
	log.WithField("admin_id", adminID).Warn("Генератор сброшен администратором")
}

// Adjust выдаёт (amount > 0) или изымает (amount < 0) пленки. Возвращает новый баланс.
func (s *Service) Adjust(ctx context.Context, adminID, userID, amount int64) (int64, error) {
	if amount == 0 {
		return 0, common.ErrInvalidAmount
	}
	known, err := s.players.IsMember(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка проверки игрока: %w", err)
	}
	if !known {
		return 0, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
	}
	if err := s.wallet.EnsureBalance(ctx, userID); err != nil {
		return 0, err
	}

	entry := economy.Entry{UserID: userID, Description: fmt.Sprintf("Корректировка администратором %d", adminID)}
	var balance int64
	if amount > 0 {
		entry.Amount, entry.Type = amount, economy.TxTypeAdminGive
		balance, err = s.wallet.Credit(ctx, entry)
	} else {
		entry.Amount, entry.Type = -amount, economy.TxTypeAdminTake
		balance, err = s.wallet.Debit(ctx, entry)
	}
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"amount":   amount,
	}).Info("Баланс скорректирован")
	return balance, nil
}

// FormatEngineReport — отчёт для !rtp.
func FormatEngineReport(snap engine.Snapshot, info casino.CatalogInfo) string {
	var sb strings.Builder
	sb.WriteString("📊 Генератор символов\n\n")
	sb.WriteString(fmt.Sprintf("RTP: %s\n", common.FormatPercent(snap.CurrentRTP)))
	sb.WriteString(fmt.Sprintf("Выигрышных спинов в окне: %s\n", common.FormatPercent(snap.WinRate)))
	sb.WriteString(fmt.Sprintf("Поставлено: %.0f, выплачено: %.0f\n", snap.State.TotalWagered, snap.State.TotalPaid))
	sb.WriteString(fmt.Sprintf("Серия проигрышей: %d\n\n", snap.State.LossStreak))

	sb.WriteString("Веса:\n")
	for _, w := range snap.Weights {
		sb.WriteString(fmt.Sprintf("  %s (%s): %.2f\n", w.Symbol, w.Tier, w.Weight))
	}

	sb.WriteString(fmt.Sprintf("\n🃏 Колода: %s сценариев", common.FormatNumber(int64(info.Size))))
	for _, cat := range engine.Categories {
		sb.WriteString(fmt.Sprintf("\n  %s: %s", cat, common.FormatNumber(int64(info.Counts[cat]))))
	}
	sb.WriteString(fmt.Sprintf("\nПриближённых сборок: %d", info.Degradations))
	return sb.String()
}

// IsAuthError — ошибка доступа, а не сбой.
func IsAuthError(err error) bool {
	return errors.Is(err, common.ErrNotAdmin) ||
		errors.Is(err, common.ErrSessionExpired) ||
		errors.Is(err, common.ErrWrongPassword) ||
		errors.Is(err, common.ErrTooManyAttempts)
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
