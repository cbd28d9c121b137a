// Package members ведёт реестр игроков: кто крутил слоты через Telegram или HTTP API.
// models.go описывает структуры данных для работы с таблицей members.
package members

import "time"

// Источники регистрации игрока
const (
	SourceTelegram = "telegram"
	SourceHTTP     = "http"
)

// Member представляет игрока в базе данных.
// Запись создаётся при первом обращении: сообщение боту или запрос к API.
type Member struct {
	ID        int64     `db:"id"`         // Автоинкрементный ID записи в БД
	UserID    int64     `db:"user_id"`    // Telegram user ID или внешний ID игрока API
	Username  string    `db:"username"`   // @username (может быть пустым)
	FirstName string    `db:"first_name"` // Имя пользователя
	LastName  string    `db:"last_name"`  // Фамилия (может быть пустой)
	Source    string    `db:"source"`     // telegram или http
	IsAdmin   bool      `db:"is_admin"`   // Флаг администратора (из ADMIN_IDS)
	JoinedAt  time.Time `db:"joined_at"`  // Первое обращение
	UpdatedAt time.Time `db:"updated_at"` // Последнее обновление записи
}

// Profile — данные игрока, пришедшие с транспорта.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	Source    string
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	if name == "" {
		return "игрок " + itoa(m.UserID)
	}
	return name
}
