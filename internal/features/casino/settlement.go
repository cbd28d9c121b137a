// Package casino — settlement.go переводит множитель сценария в пленки.
//
// Множитель хранится в базисных пунктах с фактором 1 000 000: 1.0× = 1 000 000 bps.
// Выплата всегда округляется вниз до целой пленки.
package casino

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"serotonyl.ru/slot-engine/internal/features/economy"
)

// BpsFactor — сколько базисных пунктов в множителе 1.0×.
const BpsFactor = 1_000_000

// bpsShift — BpsFactor как степень десяти.
const bpsShift = 6

// MultiplierToBps округляет множитель до базисных пунктов.
// Отрицательные, NaN и бесконечные значения дают 0.
func MultiplierToBps(multiplier float64) int64 {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return 0
	}
	return decimal.NewFromFloat(multiplier).Shift(bpsShift).Round(0).IntPart()
}

// PayoutFromBps = floor(bet × bps / 1 000 000).
func PayoutFromBps(bet, bps int64) int64 {
	if bet <= 0 || bps <= 0 {
		return 0
	}
	return decimal.NewFromInt(bet).
		Mul(decimal.NewFromInt(bps)).
		Shift(-bpsShift).
		Floor().
		IntPart()
}

// BpsToMultiplier — обратное преобразование для отображения.
func BpsToMultiplier(bps int64) float64 {
	return decimal.New(bps, -bpsShift).InexactFloat64()
}

// Wallet — операции с балансом, которые нужны казино.
type Wallet interface {
	EnsureBalance(ctx context.Context, userID int64) error
	Debit(ctx context.Context, e economy.Entry) (int64, error)
	Credit(ctx context.Context, e economy.Entry) (int64, error)
}

// Settlement — итог расчёта одного спина.
type Settlement struct {
	Bet     int64
	Bps     int64
	Payout  int64
	Balance int64 // баланс после расчёта
}

// Settler списывает ставки и начисляет выплаты.
// Сумма выплаты определяется только здесь; генератор её не проверяет.
type Settler struct {
	wallet Wallet
}

// NewSettler создаёт расчётчик поверх кошелька.
func NewSettler(wallet Wallet) *Settler {
	return &Settler{wallet: wallet}
}

// Stake списывает ставку. Возвращает баланс после списания.
func (s *Settler) Stake(ctx context.Context, userID int64, spinID string, bet int64) (int64, error) {
	balance, err := s.wallet.Debit(ctx, economy.Entry{
		UserID:      userID,
		Amount:      bet,
		Type:        economy.TxTypeCasinoBet,
		Description: "Ставка в слотах",
		SpinID:      spinID,
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка списания ставки: %w", err)
	}
	return balance, nil
}

// Pay начисляет выплату по множителю сценария.
// balance — баланс после Stake; возвращается без изменений, если выплаты нет.
func (s *Settler) Pay(ctx context.Context, userID int64, spinID string, bet int64, multiplier float64, balance int64) (Settlement, error) {
	bps := MultiplierToBps(multiplier)
	st := Settlement{
		Bet:     bet,
		Bps:     bps,
		Payout:  PayoutFromBps(bet, bps),
		Balance: balance,
	}
	if st.Payout == 0 {
		return st, nil
	}

	newBalance, err := s.wallet.Credit(ctx, economy.Entry{
		UserID:      userID,
		Amount:      st.Payout,
		Type:        economy.TxTypeCasinoWin,
		Description: fmt.Sprintf("Выигрыш в слотах ×%s", decimal.New(bps, -bpsShift).String()),
		SpinID:      spinID,
	})
	if err != nil {
		return st, fmt.Errorf("ошибка начисления выигрыша %d: %w", st.Payout, err)
	}
	st.Balance = newBalance
	return st, nil
}

// Refund возвращает ставку, если спин не удалось провести после списания.
func (s *Settler) Refund(ctx context.Context, userID int64, spinID string, bet int64) error {
	_, err := s.wallet.Credit(ctx, economy.Entry{
		UserID:      userID,
		Amount:      bet,
		Type:        economy.TxTypeCasinoRefund,
		Description: "Возврат ставки",
		SpinID:      spinID,
	})
	if err != nil {
		return fmt.Errorf("ошибка возврата ставки: %w", err)
	}
	return nil
}
