package casino

import (
	"context"
	"errors"
	"sync"
	"testing"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/features/economy"
)

// fakeWallet — кошелёк в памяти. Новый игрок получает starting пленок.
type fakeWallet struct {
	mu         sync.Mutex
	starting   int64
	balances   map[int64]int64
	entries    []economy.Entry
	failCredit bool
	// failWinCredit ломает только начисление выигрыша, возврат ставки проходит
	failWinCredit bool
	// onDebit вызывается после успешного списания
	onDebit func()
}

func newFakeWallet(starting int64) *fakeWallet {
	return &fakeWallet{starting: starting, balances: make(map[int64]int64)}
}

func (w *fakeWallet) EnsureBalance(_ context.Context, userID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.balances[userID]; !ok {
		w.balances[userID] = w.starting
	}
	return nil
}

func (w *fakeWallet) balance(userID int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.balances[userID]; ok {
		return b
	}
	return w.starting
}

func (w *fakeWallet) Debit(ctx context.Context, e economy.Entry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	b, ok := w.balances[e.UserID]
	if !ok {
		b = w.starting
	}
	if b < e.Amount {
		w.mu.Unlock()
		return 0, common.ErrInsufficientBalance
	}
	w.balances[e.UserID] = b - e.Amount
	w.entries = append(w.entries, e)
	hook := w.onDebit
	w.mu.Unlock()

	if hook != nil {
		hook()
	}
	return b - e.Amount, nil
}

func (w *fakeWallet) Credit(ctx context.Context, e economy.Entry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failCredit || (w.failWinCredit && e.Type == economy.TxTypeCasinoWin) {
		return 0, errors.New("connection reset")
	}
	w.balances[e.UserID] += e.Amount
	w.entries = append(w.entries, e)
	return w.balances[e.UserID], nil
}

// fakeRecorder — хранилище спинов в памяти.
type fakeRecorder struct {
	mu    sync.Mutex
	spins []*SpinRecord
	stats map[int64]*Stats
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{stats: make(map[int64]*Stats)}
}

func (r *fakeRecorder) SaveSpin(_ context.Context, rec *SpinRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spins = append(r.spins, rec)
	return nil
}

func (r *fakeRecorder) UpdateStats(_ context.Context, userID, bet, won int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	if !ok {
		s = &Stats{UserID: userID}
		r.stats[userID] = s
	}
	s.TotalSpins++
	s.TotalWagered += bet
	s.TotalWon += won
	s.BiggestWin = max(s.BiggestWin, won)
	return nil
}

func (r *fakeRecorder) GetStats(_ context.Context, userID int64) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	copied := *s
	return &copied, nil
}

// newTestService собирает сервис с колодой из одной категории.
// win_low использует единственный паттерн payline "3"×3 (×1.6).
func newTestService(t *testing.T, cat engine.Category, wallet *fakeWallet, opts Options) (*Service, *fakeRecorder) {
	t.Helper()

	layout := engine.DefaultLayout()
	ev, err := engine.NewEvaluator(layout)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	catalog, err := engine.NewCatalog(ev, engine.CatalogOptions{
		Distribution: engine.Distribution{Total: 4, Counts: map[engine.Category]int{cat: 4}},
		Patterns: map[engine.Category][]engine.Pattern{
			engine.CategoryWinLow: {{Kind: engine.LineKindPayline, Symbol: engine.SymbolThree, Count: 3}},
		},
		MasterSeed: 42,
		Source:     engine.NewPCGSource(7),
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	rec := newFakeRecorder()
	weighted := engine.NewWeightedEngine(layout, engine.NewPCGSource(3))
	return NewService(ev, weighted, catalog, wallet, rec, opts), rec
}

var enabled = Options{Enabled: true, Bet: 50, MaxConcurrent: 2}

func TestSpinWinSettlesBaseMultiplier(t *testing.T) {
	wallet := newFakeWallet(1000)
	svc, rec := newTestService(t, engine.CategoryWinLow, wallet, enabled)

	out, err := svc.Spin(context.Background(), 1)
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if out.Bps != 1_600_000 || out.Payout != 80 {
		t.Errorf("выплата = %d (%d bps), ожидалось 80 (1600000 bps)", out.Payout, out.Bps)
	}
	if out.Balance != 1030 || wallet.balance(1) != 1030 {
		t.Errorf("баланс = %d / %d, ожидалось 1030", out.Balance, wallet.balance(1))
	}
	if out.Scenario.Degraded {
		t.Errorf("сценарий построен приближённо:\n%s", out.Scenario.Grid)
	}
	if out.SpinID == "" {
		t.Error("пустой spin_id")
	}
	if len(out.Lines) == 0 || out.Dominant != engine.SymbolThree {
		t.Errorf("линии = %+v, dominant = %q", out.Lines, out.Dominant)
	}
	if len(out.Frame) != 5 || len(out.Frame[0]) != 7 {
		t.Errorf("кадр %d×%d, ожидалось 5×7", len(out.Frame), len(out.Frame[0]))
	}

	snap := svc.EngineSnapshot()
	if snap.State.TotalWagered != 50 || snap.State.TotalPaid != 80 {
		t.Errorf("учёт генератора: %+v", snap.State)
	}

	if len(rec.spins) != 1 || rec.spins[0].ID != out.SpinID || rec.spins[0].Payout != 80 {
		t.Errorf("записанные спины: %+v", rec.spins)
	}
	stats, _ := svc.Stats(context.Background(), 1)
	if stats.TotalSpins != 1 || stats.TotalWagered != 50 || stats.TotalWon != 80 {
		t.Errorf("статистика: %+v", stats)
	}
}

func TestSpinLoss(t *testing.T) {
	wallet := newFakeWallet(100)
	svc, _ := newTestService(t, engine.CategoryLoss, wallet, enabled)

	out, err := svc.Spin(context.Background(), 1)
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if out.Payout != 0 || out.IsWin() || out.Net() != -50 || len(out.Lines) != 0 {
		t.Errorf("проигрыш: %+v", out)
	}
	if got := wallet.balance(1); got != 50 {
		t.Errorf("баланс = %d, ожидалось 50", got)
	}
	if snap := svc.EngineSnapshot(); snap.State.LossStreak != 1 {
		t.Errorf("серия проигрышей = %d, ожидалось 1", snap.State.LossStreak)
	}
}

func TestSpinRejections(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc, _ := newTestService(t, engine.CategoryLoss, newFakeWallet(100), Options{Bet: 50})
		if _, err := svc.Spin(context.Background(), 1); !errors.Is(err, common.ErrCasinoDisabled) {
			t.Errorf("ожидалась ErrCasinoDisabled, получено %v", err)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		svc, rec := newTestService(t, engine.CategoryLoss, newFakeWallet(10), enabled)
		if _, err := svc.Spin(context.Background(), 1); !errors.Is(err, common.ErrInsufficientBalance) {
			t.Errorf("ожидалась ErrInsufficientBalance, получено %v", err)
		}
		if len(rec.spins) != 0 || svc.EngineSnapshot().State.TotalWagered != 0 {
			t.Error("отклонённый спин не должен попадать в учёт")
		}
	})

	t.Run("in progress", func(t *testing.T) {
		svc, _ := newTestService(t, engine.CategoryLoss, newFakeWallet(100), enabled)
		svc.claim(1)
		if _, err := svc.Spin(context.Background(), 1); !errors.Is(err, common.ErrSpinInProgress) {
			t.Errorf("ожидалась ErrSpinInProgress, получено %v", err)
		}
		svc.release(1)
		if _, err := svc.Spin(context.Background(), 1); err != nil {
			t.Errorf("после завершения спин должен пройти: %v", err)
		}
	})

	t.Run("canceled before stake", func(t *testing.T) {
		wallet := newFakeWallet(100)
		svc, _ := newTestService(t, engine.CategoryLoss, wallet, enabled)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := svc.Spin(ctx, 1); !errors.Is(err, context.Canceled) {
			t.Errorf("ожидалась context.Canceled, получено %v", err)
		}
		if got := wallet.balance(1); got != 100 || len(wallet.entries) != 0 {
			t.Errorf("баланс = %d, проводки: %+v", got, wallet.entries)
		}
	})

	t.Run("canceled while queued refunds the bet", func(t *testing.T) {
		wallet := newFakeWallet(100)
		svc, rec := newTestService(t, engine.CategoryLoss, wallet, Options{Enabled: true, Bet: 50, MaxConcurrent: 1})
		svc.slots <- struct{}{}

		ctx, cancel := context.WithCancel(context.Background())
		wallet.onDebit = cancel
		if _, err := svc.Spin(ctx, 1); !errors.Is(err, context.Canceled) {
			t.Errorf("ожидалась context.Canceled, получено %v", err)
		}
		if got := wallet.balance(1); got != 100 {
			t.Errorf("баланс = %d, ставка должна вернуться", got)
		}
		last := wallet.entries[len(wallet.entries)-1]
		if last.Type != economy.TxTypeCasinoRefund || last.Amount != 50 {
			t.Errorf("последняя проводка: %+v", last)
		}
		if len(rec.spins) != 0 || svc.EngineSnapshot().State.TotalWagered != 0 {
			t.Error("возвращённый спин не должен попадать в учёт")
		}
	})
}

func TestSpinCanceledAfterStakeStillSettles(t *testing.T) {
	wallet := newFakeWallet(1000)
	svc, rec := newTestService(t, engine.CategoryWinLow, wallet, enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wallet.onDebit = cancel

	out, err := svc.Spin(ctx, 1)
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if out.Payout != 80 || wallet.balance(1) != 1030 {
		t.Errorf("выплата = %d, баланс = %d, ожидалось 80 и 1030", out.Payout, wallet.balance(1))
	}
	snap := svc.EngineSnapshot()
	if snap.State.TotalWagered != 50 || snap.State.TotalPaid != 80 {
		t.Errorf("учёт генератора: %+v", snap.State)
	}
	if len(rec.spins) != 1 {
		t.Errorf("записано спинов: %d", len(rec.spins))
	}
}

func TestSpinSettlementFailure(t *testing.T) {
	wallet := newFakeWallet(100)
	wallet.failCredit = true
	svc, rec := newTestService(t, engine.CategoryWinLow, wallet, enabled)

	_, err := svc.Spin(context.Background(), 1)
	if !errors.Is(err, common.ErrSettlementFailed) {
		t.Fatalf("ожидалась ErrSettlementFailed, получено %v", err)
	}
	snap := svc.EngineSnapshot()
	if snap.State.TotalWagered != 50 || snap.State.TotalPaid != 0 {
		t.Errorf("спин должен быть закрыт без выплаты: %+v", snap.State)
	}
	if len(rec.spins) != 0 {
		t.Error("нерассчитанный спин записан")
	}
}

func TestSpinSettlementFailureRefundsBet(t *testing.T) {
	wallet := newFakeWallet(1000)
	wallet.failWinCredit = true
	svc, rec := newTestService(t, engine.CategoryWinLow, wallet, enabled)

	if _, err := svc.Spin(context.Background(), 1); !errors.Is(err, common.ErrSettlementFailed) {
		t.Fatalf("ожидалась ErrSettlementFailed, получено %v", err)
	}
	if got := wallet.balance(1); got != 1000 {
		t.Errorf("баланс = %d, ставка должна вернуться", got)
	}
	if len(wallet.entries) != 2 || wallet.entries[1].Type != economy.TxTypeCasinoRefund {
		t.Errorf("проводки: %+v", wallet.entries)
	}
	if len(rec.spins) != 0 {
		t.Error("нерассчитанный спин записан")
	}
}

func TestStatsForNewPlayer(t *testing.T) {
	svc, _ := newTestService(t, engine.CategoryLoss, newFakeWallet(0), enabled)
	stats, err := svc.Stats(context.Background(), 99)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.UserID != 99 || stats.TotalSpins != 0 || stats.RTP() != 0 {
		t.Errorf("статистика нового игрока: %+v", stats)
	}
}

func TestConcurrentSpinsKeepEngineAccounting(t *testing.T) {
	wallet := newFakeWallet(10_000)
	svc, rec := newTestService(t, engine.CategoryWinLow, wallet, enabled)

	const players, spins = 8, 5
	var wg sync.WaitGroup
	for p := int64(1); p <= players; p++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < spins; i++ {
				if _, err := svc.Spin(context.Background(), userID); err != nil {
					t.Errorf("игрок %d: %v", userID, err)
				}
			}
		}(p)
	}
	wg.Wait()

	snap := svc.EngineSnapshot()
	if want := float64(players * spins * 50); snap.State.TotalWagered != want {
		t.Errorf("поставлено %v, ожидалось %v", snap.State.TotalWagered, want)
	}
	if want := float64(players * spins * 80); snap.State.TotalPaid != want {
		t.Errorf("выплачено %v, ожидалось %v", snap.State.TotalPaid, want)
	}
	if len(rec.spins) != players*spins {
		t.Errorf("записано спинов: %d", len(rec.spins))
	}
}

func TestResetEngine(t *testing.T) {
	svc, _ := newTestService(t, engine.CategoryWinLow, newFakeWallet(1000), enabled)
	if _, err := svc.Spin(context.Background(), 1); err != nil {
		t.Fatalf("Spin: %v", err)
	}
	svc.ResetEngine()
	if snap := svc.EngineSnapshot(); snap.State.TotalWagered != 0 || len(snap.State.Window) != 0 {
		t.Errorf("после сброса: %+v", snap.State)
	}
	info := svc.CatalogInfo()
	if info.Size != 4 || info.Counts[engine.CategoryWinLow] != 4 {
		t.Errorf("CatalogInfo = %+v", info)
	}
}
