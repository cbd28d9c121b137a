package filters

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func msg(chatID int64, chatType string, from *tgbotapi.User) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID, Type: chatType}, From: from}
}

func TestCheckAccess(t *testing.T) {
	user := &tgbotapi.User{ID: 7}
	bot := &tgbotapi.User{ID: 8, IsBot: true}

	tests := []struct {
		name    string
		allowed int64
		message *tgbotapi.Message
		want    bool
	}{
		{"nil message", -100, nil, false},
		{"no sender", -100, msg(-100, "supergroup", nil), false},
		{"bot sender", -100, msg(-100, "supergroup", bot), false},
		{"private", -100, msg(7, "private", user), true},
		{"allowed group", -100, msg(-100, "supergroup", user), true},
		{"other group", -100, msg(-200, "group", user), false},
		{"any group when unrestricted", 0, msg(-200, "group", user), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewChatFilter(tt.allowed).CheckAccess(tt.message); got != tt.want {
				t.Errorf("CheckAccess = %v, ожидалось %v", got, tt.want)
			}
		})
	}
}
