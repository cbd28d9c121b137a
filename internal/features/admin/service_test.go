package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/features/casino"
	"serotonyl.ru/slot-engine/internal/features/economy"
)

// Лёгкие параметры, чтобы тесты не тратили 64 MiB на хеш.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32}

type fakeSessions struct {
	failed   int
	sessions map[int64]*AdminSession
	attempts []bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[int64]*AdminSession)}
}

func (f *fakeSessions) CreateSession(_ context.Context, s *AdminSession) error {
	f.sessions[s.UserID] = s
	return nil
}

func (f *fakeSessions) GetActiveSession(_ context.Context, userID int64) (*AdminSession, error) {
	s, ok := f.sessions[userID]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, common.ErrSessionExpired
	}
	return s, nil
}

func (f *fakeSessions) DeactivateSession(_ context.Context, userID int64) error {
	delete(f.sessions, userID)
	return nil
}

func (f *fakeSessions) UpdateActivity(context.Context, int64) error { return nil }

func (f *fakeSessions) LogAttempt(_ context.Context, _ int64, success bool) error {
	f.attempts = append(f.attempts, success)
	if !success {
		f.failed++
	}
	return nil
}

func (f *fakeSessions) GetRecentAttempts(context.Context, int64, time.Duration) (int, error) {
	return f.failed, nil
}

type fakeEngine struct{ resets int }

func (f *fakeEngine) EngineSnapshot() engine.Snapshot {
	return engine.Snapshot{
		CurrentRTP: 0.9412,
		Weights:    []engine.SymbolWeight{{Symbol: engine.SymbolOne, Tier: engine.TierLow, Weight: 420}},
	}
}
func (f *fakeEngine) ResetEngine() { f.resets++ }
func (f *fakeEngine) CatalogInfo() casino.CatalogInfo {
	return casino.CatalogInfo{Size: 100_000, Counts: map[engine.Category]int{engine.CategoryLoss: 50_000}}
}

type fakeWallet struct{ balance int64 }

func (w *fakeWallet) EnsureBalance(context.Context, int64) error { return nil }
func (w *fakeWallet) Credit(_ context.Context, e economy.Entry) (int64, error) {
	w.balance += e.Amount
	return w.balance, nil
}
func (w *fakeWallet) Debit(_ context.Context, e economy.Entry) (int64, error) {
	if w.balance < e.Amount {
		return 0, common.ErrInsufficientBalance
	}
	w.balance -= e.Amount
	return w.balance, nil
}

type fakeRegistry map[int64]bool

func (f fakeRegistry) IsMember(_ context.Context, userID int64) (bool, error) {
	return f[userID], nil
}

func newTestService(hash string) (*Service, *fakeSessions, *fakeEngine, *fakeWallet) {
	repo := newFakeSessions()
	eng := &fakeEngine{}
	wallet := &fakeWallet{balance: 100}
	isAdmin := func(id int64) bool { return id == 1 }
	return NewService(repo, isAdmin, hash, eng, wallet, fakeRegistry{5: true}), repo, eng, wallet
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash := HashPassword("s3cret", []byte("0123456789abcdef"), testParams)
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("формат хеша: %s", hash)
	}
	if !verifyArgon2id("s3cret", hash) {
		t.Error("верный пароль не прошёл проверку")
	}
	if verifyArgon2id("S3cret", hash) {
		t.Error("неверный пароль прошёл проверку")
	}
}

func TestVerifyArgon2idRejectsMalformed(t *testing.T) {
	for _, hash := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
	} {
		if verifyArgon2id("any", hash) {
			t.Errorf("хеш %q принят", hash)
		}
	}
}

func TestVerifyPasswordLockout(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(HashPassword("pw", []byte("saltsaltsaltsalt"), testParams))

	if err := svc.VerifyPassword(ctx, 2, "pw"); !errors.Is(err, common.ErrNotAdmin) {
		t.Errorf("не админ: %v", err)
	}

	for i := 0; i < maxFailedAttempts; i++ {
		if err := svc.VerifyPassword(ctx, 1, "wrong"); !errors.Is(err, common.ErrWrongPassword) {
			t.Fatalf("попытка %d: %v", i, err)
		}
	}
	if err := svc.VerifyPassword(ctx, 1, "pw"); !errors.Is(err, common.ErrTooManyAttempts) {
		t.Errorf("после %d ошибок ожидалась блокировка, получено %v", maxFailedAttempts, err)
	}
	if len(repo.sessions) != 0 {
		t.Error("сессия создана при блокировке")
	}
}

func TestVerifyPasswordCreatesSession(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(HashPassword("pw", []byte("saltsaltsaltsalt"), testParams))

	if err := svc.Authorize(ctx, 1); !errors.Is(err, common.ErrSessionExpired) {
		t.Errorf("до входа: %v", err)
	}
	if err := svc.VerifyPassword(ctx, 1, "pw"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	s := repo.sessions[1]
	if s == nil || s.SessionToken == "" {
		t.Fatal("сессия не создана")
	}
	if ttl := time.Until(s.ExpiresAt); ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Errorf("срок сессии %v, ожидалось ~24ч", ttl)
	}
	if err := svc.Authorize(ctx, 1); err != nil {
		t.Errorf("после входа: %v", err)
	}
	if err := svc.Logout(ctx, 1); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := svc.Authorize(ctx, 1); !errors.Is(err, common.ErrSessionExpired) {
		t.Errorf("после выхода: %v", err)
	}
}

func TestEmptyHashNeverMatches(t *testing.T) {
	svc, _, _, _ := newTestService("")
	if err := svc.VerifyPassword(context.Background(), 1, ""); !errors.Is(err, common.ErrWrongPassword) {
		t.Errorf("пустой хеш: %v", err)
	}
}

func TestStateExpires(t *testing.T) {
	svc, _, _, _ := newTestService("")
	now := time.Now()
	svc.now = func() time.Time { return now }

	svc.SetState(1, StateConfirmReset)
	if st := svc.GetState(1); st == nil || st.State != StateConfirmReset {
		t.Fatalf("состояние: %+v", st)
	}
	svc.now = func() time.Time { return now.Add(stateTTL + time.Second) }
	if st := svc.GetState(1); st != nil {
		t.Errorf("состояние не истекло: %+v", st)
	}
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	svc, _, eng, wallet := newTestService("")

	if bal, err := svc.Adjust(ctx, 1, 5, 50); err != nil || bal != 150 {
		t.Errorf("выдача: %d, %v", bal, err)
	}
	if bal, err := svc.Adjust(ctx, 1, 5, -30); err != nil || bal != 120 {
		t.Errorf("изъятие: %d, %v", bal, err)
	}
	if _, err := svc.Adjust(ctx, 1, 5, -500); !errors.Is(err, common.ErrInsufficientBalance) {
		t.Errorf("изъятие сверх баланса: %v", err)
	}
	if _, err := svc.Adjust(ctx, 1, 5, 0); !errors.Is(err, common.ErrInvalidAmount) {
		t.Errorf("нулевая сумма: %v", err)
	}
	if _, err := svc.Adjust(ctx, 1, 404, 10); !errors.Is(err, common.ErrUserNotFound) {
		t.Errorf("неизвестный игрок: %v", err)
	}
	if wallet.balance != 120 {
		t.Errorf("баланс = %d", wallet.balance)
	}

	svc.ResetEngine(1)
	if eng.resets != 1 {
		t.Errorf("сбросов = %d", eng.resets)
	}
}

func TestEngineReport(t *testing.T) {
	svc, _, _, _ := newTestService("")
	got := svc.EngineReport()
	for _, want := range []string{"RTP: 94.12%", "1 (low): 420.00", "100 000 сценариев", "loss: 50 000"} {
		if !strings.Contains(got, want) {
			t.Errorf("в отчёте нет %q:\n%s", want, got)
		}
	}
}

func TestParseAdjustArgs(t *testing.T) {
	tests := []struct {
		args    []string
		target  int64
		amount  int64
		wantErr bool
	}{
		{[]string{"42", "100"}, 42, 100, false},
		{[]string{"42"}, 0, 0, true},
		{[]string{"abc", "100"}, 0, 0, true},
		{[]string{"42", "-5"}, 0, 0, true},
		{[]string{"42", "0"}, 0, 0, true},
	}
	for _, tt := range tests {
		target, amount, err := parseAdjustArgs(tt.args)
		if (err != nil) != tt.wantErr || target != tt.target || amount != tt.amount {
			t.Errorf("parseAdjustArgs(%v) = %d, %d, %v", tt.args, target, amount, err)
		}
	}
}
