// Package casino — handlers.go обрабатывает команды !слоты и !статслоты.
package casino

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
)

// sender — часть tgbotapi.BotAPI, нужная обработчику.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// spinDelay — сколько «крутятся» барабаны перед итоговым сообщением.
const spinDelay = 1200 * time.Millisecond

// Handler обрабатывает команды казино.
type Handler struct {
	service *Service
	bot     sender
	delay   time.Duration
}

// NewHandler создаёт обработчик казино.
func NewHandler(service *Service, bot sender) *Handler {
	return &Handler{service: service, bot: bot, delay: spinDelay}
}

// HandleSlots обрабатывает команду !слоты — спин слот-машины.
// Сначала отправляется кадр вращения, затем то же сообщение редактируется на итог.
func (h *Handler) HandleSlots(ctx context.Context, chatID int64, userID int64) {
	outcome, err := h.service.Spin(ctx, userID)
	if err != nil {
		h.sendMessage(chatID, spinErrorText(err))
		if !isUserError(err) {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка спина")
		}
		return
	}

	sent, err := h.bot.Send(tgbotapi.NewMessage(chatID, FormatSpinning(outcome)))
	if err != nil {
		log.WithError(err).Error("Ошибка отправки кадра")
		h.sendMessage(chatID, FormatResult(outcome))
		return
	}

	select {
	case <-time.After(h.delay):
	case <-ctx.Done():
	}

	edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, FormatResult(outcome))
	if _, err := h.bot.Send(edit); err != nil {
		log.WithError(err).Warn("Не удалось отредактировать сообщение спина")
		h.sendMessage(chatID, FormatResult(outcome))
	}
}

// HandleStats обрабатывает команду !статслоты.
func (h *Handler) HandleStats(ctx context.Context, chatID int64, userID int64) {
	stats, err := h.service.Stats(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения статистики слотов")
		h.sendMessage(chatID, "❌ Ошибка получения статистики")
		return
	}
	h.sendMessage(chatID, FormatStats(stats))
}

// spinErrorText — понятный текст для ошибки спина.
func spinErrorText(err error) string {
	switch {
	case errors.Is(err, common.ErrInsufficientBalance):
		return "❌ Недостаточно пленок для ставки"
	case errors.Is(err, common.ErrSpinInProgress):
		return "⏳ Предыдущий спин ещё крутится"
	case errors.Is(err, common.ErrCasinoDisabled):
		return "🚫 Казино временно закрыто"
	case errors.Is(err, common.ErrSettlementFailed):
		return "⚠️ Ошибка расчёта спина, администратор уже разбирается"
	default:
		return "❌ Не удалось провести спин, попробуйте позже"
	}
}

func isUserError(err error) bool {
	return errors.Is(err, common.ErrInsufficientBalance) ||
		errors.Is(err, common.ErrSpinInProgress) ||
		errors.Is(err, common.ErrCasinoDisabled)
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
