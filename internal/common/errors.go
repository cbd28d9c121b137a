// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам (Telegram и HTTP) различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки экономики (пленки)
var (
	// ErrInsufficientBalance — недостаточно пленок на счёте
	ErrInsufficientBalance = errors.New("недостаточно пленок на счёте")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrForeignPlayer — ID занят игроком из другого канала (Telegram или HTTP)
	ErrForeignPlayer = errors.New("игрок зарегистрирован через другой канал")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)

// Ошибки казино
var (
	// ErrCasinoDisabled — казино отключено в настройках
	ErrCasinoDisabled = errors.New("казино временно отключено")
	// ErrSpinInProgress — у игрока уже крутится спин
	ErrSpinInProgress = errors.New("предыдущий спин ещё не завершён")
	// ErrSettlementFailed — выплату начислить не удалось, ставка возвращается
	ErrSettlementFailed = errors.New("ошибка расчёта спина")
)
