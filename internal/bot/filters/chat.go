// Package filters решает, в каких чатах бот отвечает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает личные сообщения и разрешённый групповой чат.
// allowedChatID == 0 — разрешены все чаты.
type ChatFilter struct {
	allowedChatID int64
}

func NewChatFilter(allowedChatID int64) *ChatFilter {
	return &ChatFilter{allowedChatID: allowedChatID}
}

func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("nil message.From (service/channel message?)")
		return false
	}
	if message.From.IsBot {
		return false
	}

	logger := log.WithFields(log.Fields{
		"component":       "ChatFilter",
		"chat_id":         message.Chat.ID,
		"chat_type":       message.Chat.Type,
		"user_id":         message.From.ID,
		"allowed_chat_id": f.allowedChatID,
	})

	switch {
	case message.Chat.IsPrivate():
		logger.Debug("allow: private")
		return true
	case f.allowedChatID == 0:
		logger.Debug("allow: any chat")
		return true
	case message.Chat.ID == f.allowedChatID:
		logger.Debug("allow: allowed chat")
		return true
	}

	logger.Info("deny: not allowed chat and not private")
	return false
}
