// Package bot содержит Telegram-транспорт: polling, фильтры, middleware и маршрутизацию команд.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/bot/filters"
	"serotonyl.ru/slot-engine/internal/bot/middleware"
	"serotonyl.ru/slot-engine/internal/config"
	"serotonyl.ru/slot-engine/internal/features/admin"
	"serotonyl.ru/slot-engine/internal/features/casino"
	"serotonyl.ru/slot-engine/internal/features/economy"
	"serotonyl.ru/slot-engine/internal/features/members"
)

const helpText = `🎰 Слот-машина

!слоты — крутить (ставка %s)
!статслоты — ваша статистика
!пленки — баланс
!транзакции — история операций

Админам: /login, !rtp, !сбросrtp, !выдать, !отнять`

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	economyHandler *economy.Handler
	casinoHandler  *casino.Handler
	adminHandler   *admin.Handler

	memberService  *members.Service
	economyService *economy.Service
	casinoService  *casino.Service

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	rateLimiter *middleware.RateLimiter,
	memberService *members.Service,
	economyService *economy.Service,
	casinoService *casino.Service,
	adminService *admin.Service,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:            api,
		cfg:            cfg,
		chatFilter:     filters.NewChatFilter(cfg.AllowedChatID),
		rateLimiter:    rateLimiter,
		economyHandler: economy.NewHandler(economyService, api),
		casinoHandler:  casino.NewHandler(casinoService, api),
		adminHandler:   admin.NewHandler(adminService, api),
		memberService:  memberService,
		economyService: economyService,
		casinoService:  casinoService,
		parser:         NewCommandParser(),
		inflight:       make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram. Возвращается после отмены ctx.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"username":     b.api.Self.UserName,
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				continue
			}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	b.registerPlayer(ctx, message.From)

	// В личке сначала даём шанс админ-диалогу (пароль, подтверждения, кнопки)
	if message.Chat.IsPrivate() && !strings.HasPrefix(message.Text, "/") {
		if b.adminHandler.HandleAdminMessage(ctx, chatID, userID, message.Text) {
			return
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("parsed command")

	b.routeCommand(ctx, message, cmd, args)
}

// registerPlayer заводит игрока и его баланс при первом сообщении.
func (b *Bot) registerPlayer(ctx context.Context, from *tgbotapi.User) {
	created, err := b.memberService.EnsureMember(ctx, members.Profile{
		UserID:    from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Source:    members.SourceTelegram,
	})
	if err != nil {
		// EnsureMember — ошибки нельзя игнорировать, иначе потом будет "оно не работает"
		log.WithError(err).WithField("user_id", from.ID).Warn("EnsureMember failed")
		return
	}
	if created {
		if err := b.economyService.EnsureBalance(ctx, from.ID); err != nil {
			log.WithError(err).WithField("user_id", from.ID).Warn("EnsureBalance failed")
		}
	}
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd string, args []string) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(chatID, formatHelp(b.casinoService.Bet()))

	case "login":
		b.adminHandler.HandleLogin(ctx, chatID, userID, message.Chat.IsPrivate())

	case "logout":
		b.adminHandler.HandleLogout(ctx, chatID, userID)

	case "пленки", "плёнки", "баланс":
		b.economyHandler.HandleBalance(ctx, chatID, userID)

	case "транзакции":
		b.economyHandler.HandleTransactions(ctx, chatID, userID)

	case "слоты", "spin":
		b.casinoHandler.HandleSlots(ctx, chatID, userID)

	case "статслоты":
		b.casinoHandler.HandleStats(ctx, chatID, userID)

	case "rtp", "ртп":
		b.adminHandler.HandleReport(ctx, chatID, userID)

	case "сбросrtp", "сбросртп":
		b.adminHandler.HandleReset(ctx, chatID, userID)

	case "выдать":
		b.adminHandler.HandleAdjust(ctx, chatID, userID, args, 1)

	case "отнять":
		b.adminHandler.HandleAdjust(ctx, chatID, userID, args, -1)
	}
}

// NotifyAdmins отправляет текст всем администраторам в личку.
func (b *Bot) NotifyAdmins(text string) {
	for _, id := range b.cfg.AdminIDs {
		b.SendMessageToUser(id, text)
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendMessageToUser отправляет сообщение пользователю в личку.
func (b *Bot) SendMessageToUser(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось отправить сообщение")
	}
}
