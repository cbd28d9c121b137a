// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, работа с временем.
package common

import (
	"fmt"
	"time"
)

// moscow — часовой пояс для отображения дат. Загружается один раз.
var moscow = loadMoscow()

func loadMoscow() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		// Если не удалось загрузить — используем UTC+3 вручную
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// pluralize выбирает форму слова для числа n: one (1, 21), few (2-4, 22-24), many (остальное).
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few
//   - Остальные случаи → many
func pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeFilms возвращает правильную форму слова «пленка» для числа n.
//
// Примеры:
//
//	PluralizeFilms(1)  → "пленка"
//	PluralizeFilms(3)  → "пленки"
//	PluralizeFilms(5)  → "пленок"
//	PluralizeFilms(11) → "пленок"
//	PluralizeFilms(21) → "пленка"
func PluralizeFilms(n int64) string {
	return pluralize(n, "пленка", "пленки", "пленок")
}

// PluralizeSpins возвращает правильную форму слова «спин».
func PluralizeSpins(n int64) string {
	return pluralize(n, "спин", "спина", "спинов")
}

// FormatBalance форматирует баланс в читабельную строку.
// Пример: FormatBalance(150) → "150 пленок"
func FormatBalance(balance int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(balance), PluralizeFilms(balance))
}

// GetMoscowTime возвращает текущее время в часовом поясе Москвы (Europe/Moscow).
func GetMoscowTime() time.Time {
	return time.Now().In(moscow)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (день.месяц.год часы:минуты).
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time) string {
	return t.In(moscow).Format("02.01.2006 15:04")
}

// FormatPercent форматирует долю как проценты с двумя знаками: 0.9412 → "94.12%".
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}
