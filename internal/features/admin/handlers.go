// Package admin — handlers.go обрабатывает взаимодействие с админ-панелью.
// Панель работает через Reply Keyboard в личных сообщениях.
// Поток: /login → пароль → клавиатура → действие → подтверждение или ввод параметров.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
)

// sender — часть tgbotapi.BotAPI, нужная обработчику.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Кнопки клавиатуры
const (
	buttonReport = "📊 RTP"
	buttonReset  = "♻️ Сбросить RTP"
	buttonGrant  = "Выдать плёнки"
	buttonTake   = "Отнять плёнки"
	buttonLogout = "🚪 Выйти"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	bot     sender
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, bot sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleLogin обрабатывает /login: просит пароль.
func (h *Handler) HandleLogin(ctx context.Context, chatID int64, userID int64, private bool) {
	if !h.service.IsAdmin(userID) {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}
	if !private {
		h.sendMessage(chatID, "🔐 Вход в админку — только в личных сообщениях")
		return
	}
	if h.service.Authorize(ctx, userID) == nil {
		h.showKeyboard(chatID, "✅ Сессия уже активна")
		return
	}
	h.service.SetState(userID, StateAwaitingPassword)
	h.sendMessage(chatID, "🔐 Введите пароль для доступа к админ-панели:")
}

// HandleLogout обрабатывает /logout.
func (h *Handler) HandleLogout(ctx context.Context, chatID int64, userID int64) {
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).Error("Ошибка выхода из админки")
	}
	msg := tgbotapi.NewMessage(chatID, "👋 Сессия завершена")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	h.send(msg)
}

// HandleReport обрабатывает !rtp.
func (h *Handler) HandleReport(ctx context.Context, chatID int64, userID int64) {
	if !h.authorize(ctx, chatID, userID) {
		return
	}
	h.sendMessage(chatID, h.service.EngineReport())
}

// HandleReset обрабатывает !сбросrtp: просит подтверждение.
func (h *Handler) HandleReset(ctx context.Context, chatID int64, userID int64) {
	if !h.authorize(ctx, chatID, userID) {
		return
	}
	h.service.SetState(userID, StateConfirmReset)
	h.sendMessage(chatID, "⚠️ Сбросить статистику генератора? Напишите «да» для подтверждения")
}

// HandleAdjust обрабатывает !выдать/!отнять <user_id> <сумма>. sign = +1 или -1.
func (h *Handler) HandleAdjust(ctx context.Context, chatID int64, userID int64, args []string, sign int64) {
	if !h.authorize(ctx, chatID, userID) {
		return
	}
	target, amount, err := parseAdjustArgs(args)
	if err != nil {
		h.sendMessage(chatID, "❌ Формат: user_id сумма")
		return
	}
	h.adjust(ctx, chatID, userID, target, sign*amount)
}

// HandleAdminMessage обрабатывает сообщение администратора в личке, не являющееся командой.
// Возвращает true, если сообщение было поглощено админ-диалогом.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID int64, userID int64, text string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}

	state := h.service.GetState(userID)
	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	// Дальше — только с активной сессией
	if h.service.Authorize(ctx, userID) != nil {
		return false
	}

	if state != nil {
		switch state.State {
		case StateConfirmReset:
			h.service.ClearState(userID)
			if strings.EqualFold(strings.TrimSpace(text), "да") {
				h.service.ResetEngine(userID)
				h.sendMessage(chatID, "♻️ Статистика генератора сброшена")
			} else {
				h.sendMessage(chatID, "Отменено")
			}
			return true
		case StateGrantInput, StateTakeInput:
			h.service.ClearState(userID)
			target, amount, err := parseAdjustArgs(strings.Fields(text))
			if err != nil {
				h.sendMessage(chatID, "❌ Формат: user_id сумма")
				return true
			}
			if state.State == StateTakeInput {
				amount = -amount
			}
			h.adjust(ctx, chatID, userID, target, amount)
			return true
		}
	}

	switch text {
	case buttonReport:
		h.sendMessage(chatID, h.service.EngineReport())
	case buttonReset:
		h.service.SetState(userID, StateConfirmReset)
		h.sendMessage(chatID, "⚠️ Сбросить статистику генератора? Напишите «да» для подтверждения")
	case buttonGrant:
		h.service.SetState(userID, StateGrantInput)
		h.sendMessage(chatID, "Введите: user_id сумма")
	case buttonTake:
		h.service.SetState(userID, StateTakeInput)
		h.sendMessage(chatID, "Введите: user_id сумма")
	case buttonLogout:
		h.HandleLogout(ctx, chatID, userID)
	case "Админ", "Панель", "админ", "панель":
		h.showKeyboard(chatID, "✅ Админ-панель открыта")
	default:
		return false
	}
	return true
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID int64, userID int64, password string) {
	h.service.ClearState(userID)
	if err := h.service.VerifyPassword(ctx, userID, strings.TrimSpace(password)); err != nil {
		if !IsAuthError(err) {
			log.WithError(err).Error("Ошибка проверки пароля")
			h.sendMessage(chatID, "❌ Ошибка входа")
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("❌ %s", err.Error()))
		return
	}
	h.showKeyboard(chatID, "✅ Аутентификация успешна!")
}

func (h *Handler) adjust(ctx context.Context, chatID, adminID, target, amount int64) {
	balance, err := h.service.Adjust(ctx, adminID, target, amount)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInsufficientBalance):
			h.sendMessage(chatID, "❌ У игрока недостаточно пленок")
		case errors.Is(err, common.ErrInvalidAmount):
			h.sendMessage(chatID, "❌ Сумма должна быть ненулевой")
		case errors.Is(err, common.ErrUserNotFound):
			h.sendMessage(chatID, fmt.Sprintf("❌ Игрок %d ещё не играл", target))
		default:
			log.WithError(err).Error("Ошибка корректировки баланса")
			h.sendMessage(chatID, "❌ Ошибка корректировки баланса")
		}
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ %s игроку %d\nБаланс: %s",
		common.FormatFilmsAmount(amount), target, common.FormatBalance(balance)))
}

// authorize отвечает пользователю, если доступа нет.
func (h *Handler) authorize(ctx context.Context, chatID, userID int64) bool {
	err := h.service.Authorize(ctx, userID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, common.ErrNotAdmin):
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
	case errors.Is(err, common.ErrSessionExpired):
		h.sendMessage(chatID, "🔐 "+common.ErrSessionExpired.Error()+": /login")
	default:
		log.WithError(err).Error("Ошибка проверки сессии")
		h.sendMessage(chatID, "❌ Ошибка проверки доступа")
	}
	return false
}

// parseAdjustArgs разбирает "user_id сумма". Сумма должна быть положительной.
func parseAdjustArgs(args []string) (int64, int64, error) {
	if len(args) < 2 {
		return 0, 0, common.ErrInvalidAmount
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("user_id: %w", err)
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, 0, common.ErrInvalidAmount
	}
	return target, amount, nil
}

// showKeyboard отображает клавиатуру админ-панели.
func (h *Handler) showKeyboard(chatID int64, text string) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonReport),
			tgbotapi.NewKeyboardButton(buttonReset),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonGrant),
			tgbotapi.NewKeyboardButton(buttonTake),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonLogout),
		),
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	h.send(msg)
}

func (h *Handler) send(msg tgbotapi.MessageConfig) {
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}
