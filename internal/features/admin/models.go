// Package admin реализует админ-панель с парольной аутентификацией.
// Через неё смотрят и сбрасывают статистику генератора и корректируют балансы.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// AdminSession — активная сессия администратора.
type AdminSession struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// AdminState — состояние диалога с админом (конечный автомат).
type AdminState struct {
	State     string    // Текущее состояние
	ExpiresAt time.Time // Когда состояние истекает (5 минут)
}

// Возможные состояния админ-диалога
const (
	StateNone             = ""                  // Нет активного состояния
	StateAwaitingPassword = "awaiting_password" // Ждём пароль
	StateConfirmReset     = "confirm_reset"     // Ждём подтверждение сброса генератора
	StateGrantInput       = "grant_input"       // Ждём "user_id сумма" для выдачи
	StateTakeInput        = "take_input"        // Ждём "user_id сумма" для изъятия
)

const (
	// maxFailedAttempts — после стольких неудачных попыток за lockoutPeriod вход блокируется.
	maxFailedAttempts = 3
	lockoutPeriod     = time.Hour
	sessionTTL        = 24 * time.Hour
	stateTTL          = 5 * time.Minute
)
