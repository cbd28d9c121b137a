package middleware

import (
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(limit, window)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterWindow(t *testing.T) {
	rl, now := newTestLimiter(2, time.Minute)
	defer rl.Close()

	if !rl.Allow(1) || !rl.Allow(1) {
		t.Fatal("первые два запроса должны пройти")
	}
	if rl.Allow(1) {
		t.Error("третий запрос в окне должен быть отклонён")
	}
	if !rl.Allow(2) {
		t.Error("лимит одного пользователя не должен влиять на другого")
	}
	if got := rl.RetryAfter(1); got != time.Minute {
		t.Errorf("RetryAfter = %v, ожидалось 1m", got)
	}

	*now = now.Add(time.Minute + time.Second)
	if !rl.Allow(1) {
		t.Error("после окна запрос должен пройти")
	}
	if got := rl.RetryAfter(1); got != 0 {
		t.Errorf("RetryAfter = %v, ожидалось 0", got)
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl, now := newTestLimiter(5, time.Minute)
	defer rl.Close()

	rl.Allow(1)
	rl.Allow(2)
	*now = now.Add(30 * time.Second)
	rl.Allow(2)
	*now = now.Add(45 * time.Second)

	rl.prune()
	if _, ok := rl.hits[1]; ok {
		t.Error("пользователь без свежих запросов не удалён")
	}
	if got := len(rl.hits[2]); got != 1 {
		t.Errorf("у пользователя 2 осталось %d отметок, ожидалась 1", got)
	}
}

func TestRateLimiterCloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	rl.Close()
	rl.Close()
}
