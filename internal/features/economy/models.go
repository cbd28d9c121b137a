// Package economy управляет игровой валютой «пленки».
// models.go описывает структуры для балансов и транзакций.
package economy

import "time"

// Balance представляет баланс игрока.
// Каждый игрок имеет ровно одну запись в таблице balances.
type Balance struct {
	ID          int64     `db:"id"`           // ID записи
	UserID      int64     `db:"user_id"`      // ID игрока
	Balance     int64     `db:"balance"`      // Текущий баланс
	TotalEarned int64     `db:"total_earned"` // Сколько всего начислено
	TotalSpent  int64     `db:"total_spent"`  // Сколько всего списано
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Transaction представляет одну операцию с пленками.
// Ставки, выигрыши, стартовый капитал и ручные корректировки записываются сюда.
type Transaction struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`          // Чей баланс изменился
	Amount          int64     `db:"amount"`           // Сумма со знаком: + начисление, - списание
	TransactionType string    `db:"transaction_type"` // См. TxType*
	Description     string    `db:"description"`      // Описание для истории
	SpinID          *string   `db:"spin_id"`          // Спин, к которому относится операция
	CreatedAt       time.Time `db:"created_at"`
}

// Типы транзакций
const (
	TxTypeStartingBalance = "starting_balance" // Стартовый капитал нового игрока
	TxTypeCasinoBet       = "casino_bet"       // Ставка в слотах
	TxTypeCasinoWin       = "casino_win"       // Выигрыш в слотах
	TxTypeCasinoRefund    = "casino_refund"    // Возврат ставки при сбое расчёта
	TxTypeAdminGive       = "admin_give"       // Выдача админом
	TxTypeAdminTake       = "admin_take"       // Изъятие админом
)

// Entry — одна операция для записи в историю.
type Entry struct {
	UserID      int64
	Amount      int64 // всегда положительная
	Type        string
	Description string
	SpinID      string // пусто, если операция не связана со спином
}
