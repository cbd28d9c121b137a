// Package members — service.go содержит логику регистрации игроков.
package members

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
)

// store — то, что сервису нужно от репозитория.
type store interface {
	Upsert(ctx context.Context, m *Member) error
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	Exists(ctx context.Context, userID int64) (bool, error)
}

// Service управляет реестром игроков.
type Service struct {
	repo    store
	isAdmin func(userID int64) bool
}

// NewService создаёт сервис. isAdmin обычно config.IsAdmin.
func NewService(repo store, isAdmin func(userID int64) bool) *Service {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &Service{repo: repo, isAdmin: isAdmin}
}

// EnsureMember гарантирует, что игрок есть в базе, и возвращает true для новой записи.
// Данные уже известного игрока обновляются только при смене username.
// HTTP не может играть от имени игрока, пришедшего из Telegram: ErrForeignPlayer.
func (s *Service) EnsureMember(ctx context.Context, p Profile) (bool, error) {
	existing, err := s.repo.GetByUserID(ctx, p.UserID)
	if err != nil && !errors.Is(err, common.ErrUserNotFound) {
		return false, fmt.Errorf("ошибка поиска игрока: %w", err)
	}
	if err == nil && p.Source == SourceHTTP && existing.Source != SourceHTTP {
		return false, fmt.Errorf("игрок %d (%s): %w", p.UserID, existing.Source, common.ErrForeignPlayer)
	}
	if err == nil && existing.Username == p.Username && existing.IsAdmin == s.isAdmin(p.UserID) {
		return false, nil
	}

	member := &Member{
		UserID:    p.UserID,
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Source:    p.Source,
		IsAdmin:   s.isAdmin(p.UserID),
	}
	if member.Source == "" {
		member.Source = SourceTelegram
	}
	if err := s.repo.Upsert(ctx, member); err != nil {
		return false, fmt.Errorf("ошибка регистрации игрока: %w", err)
	}

	if existing == nil {
		log.WithFields(log.Fields{
			"user_id":  p.UserID,
			"username": p.Username,
			"source":   member.Source,
		}).Info("Новый игрок зарегистрирован")
		return true, nil
	}
	return false, nil
}

// IsMember проверяет, обращался ли пользователь к сервису раньше.
func (s *Service) IsMember(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// GetByUserID возвращает игрока по его ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
