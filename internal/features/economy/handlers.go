// Package economy — handlers.go обрабатывает команды:
// !пленки (баланс) и !транзакции (история).
package economy

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
)

// sender — часть tgbotapi.BotAPI, нужная обработчику.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler обрабатывает команды экономики.
type Handler struct {
	service *Service // Сервис экономики
	bot     sender   // API Telegram для отправки ответов
}

// NewHandler создаёт новый обработчик экономических команд.
func NewHandler(service *Service, bot sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleBalance обрабатывает команду !пленки — показывает баланс.
//
// Формат ответа:
//
//	💰 Баланс: 1 000 пленок
func (h *Handler) HandleBalance(ctx context.Context, chatID int64, userID int64) {
	stats, err := h.service.GetStats(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			h.sendMessage(chatID, "❌ У вас ещё нет баланса, напишите любую команду")
			return
		}
		log.WithError(err).Error("Ошибка получения баланса")
		h.sendMessage(chatID, "❌ Ошибка получения баланса")
		return
	}

	text := fmt.Sprintf("💰 Баланс: %s\n📈 Получено: %s\n📉 Потрачено: %s",
		common.FormatBalance(stats.Balance),
		common.FormatBalance(stats.TotalEarned),
		common.FormatBalance(stats.TotalSpent),
	)
	h.sendMessage(chatID, text)
}

// HandleTransactions обрабатывает команду !транзакции — показывает историю.
func (h *Handler) HandleTransactions(ctx context.Context, chatID int64, userID int64) {
	history, err := h.service.GetTransactionHistory(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения транзакций")
		h.sendMessage(chatID, "❌ Ошибка получения истории транзакций")
		return
	}

	// Отправляем с MarkdownV2 для поддержки спойлеров
	msg := tgbotapi.NewMessage(chatID, history)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := h.bot.Send(msg); err != nil {
		// Если MarkdownV2 не сработал — отправляем без форматирования
		h.sendMessage(chatID, history)
	}
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
