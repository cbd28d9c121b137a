// Package casino — service.go координирует спин слотов от начала до конца.
package casino

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/metrics"
)

// Recorder сохраняет спины и статистику игроков.
type Recorder interface {
	SaveSpin(ctx context.Context, rec *SpinRecord) error
	UpdateStats(ctx context.Context, userID, bet, won int64) error
	GetStats(ctx context.Context, userID int64) (*Stats, error)
}

// Options — параметры казино из конфигурации.
type Options struct {
	Enabled       bool
	Bet           int64
	MaxConcurrent int // сколько спинов могут ждать генератор одновременно
}

// Service управляет казино.
//
// Спины одного игрока не пересекаются: второй одновременный спин получает
// common.ErrSpinInProgress. Пара BeginSpin/CompleteSpin генератора выполняется
// под engineMu, поэтому учёт RTP не перемешивается между игроками.
type Service struct {
	evaluator *engine.Evaluator
	weighted  *engine.WeightedEngine
	catalog   *engine.Catalog
	wallet    Wallet
	settler   *Settler
	recorder  Recorder
	opts      Options

	slots    chan struct{}
	engineMu sync.Mutex

	mu       sync.Mutex
	inFlight map[int64]struct{}

	now func() time.Time
}

// NewService создаёт сервис казино. Каталог должен быть уже построен.
func NewService(
	evaluator *engine.Evaluator,
	weighted *engine.WeightedEngine,
	catalog *engine.Catalog,
	wallet Wallet,
	recorder Recorder,
	opts Options,
) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Service{
		evaluator: evaluator,
		weighted:  weighted,
		catalog:   catalog,
		wallet:    wallet,
		settler:   NewSettler(wallet),
		recorder:  recorder,
		opts:      opts,
		slots:     make(chan struct{}, opts.MaxConcurrent),
		inFlight:  make(map[int64]struct{}),
		now:       time.Now,
	}
}

// Bet — размер ставки одного спина.
func (s *Service) Bet() int64 {
	return s.opts.Bet
}

// Evaluator — оценщик линий, которым пользуется сервис.
func (s *Service) Evaluator() *engine.Evaluator {
	return s.evaluator
}

// Spin выполняет полный цикл спина:
//  1. списывает ставку;
//  2. берёт исход из каталога сценариев;
//  3. начисляет выплату по базовому множителю сценария;
//  4. сообщает генератору итог и собирает кадр анимации;
//  5. сохраняет спин и статистику.
func (s *Service) Spin(ctx context.Context, userID int64) (*SpinOutcome, error) {
	if !s.opts.Enabled {
		metrics.ObserveRejected(metrics.ReasonDisabled)
		return nil, common.ErrCasinoDisabled
	}
	if !s.claim(userID) {
		metrics.ObserveRejected(metrics.ReasonInProgress)
		return nil, common.ErrSpinInProgress
	}
	defer s.release(userID)

	if err := s.wallet.EnsureBalance(ctx, userID); err != nil {
		metrics.ObserveRejected(metrics.ReasonError)
		return nil, fmt.Errorf("ошибка подготовки баланса: %w", err)
	}

	// После списания ставки отмена уже ничего не прерывает
	if err := ctx.Err(); err != nil {
		metrics.ObserveRejected(metrics.ReasonCanceled)
		return nil, err
	}

	spinID := uuid.NewString()
	bet := s.opts.Bet
	balance, err := s.settler.Stake(ctx, userID, spinID, bet)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientBalance) {
			metrics.ObserveRejected(metrics.ReasonInsufficient)
		} else {
			metrics.ObserveRejected(metrics.ReasonError)
		}
		return nil, err
	}

	settleCtx := context.WithoutCancel(ctx)

	if !s.acquireSlot(ctx) {
		metrics.ObserveRejected(metrics.ReasonCanceled)
		s.refund(settleCtx, userID, spinID, bet)
		return nil, ctx.Err()
	}
	defer func() { <-s.slots }()

	outcome, err := s.play(settleCtx, userID, spinID, bet, balance)
	if err != nil {
		metrics.ObserveRejected(metrics.ReasonError)
		return nil, err
	}

	s.record(settleCtx, userID, outcome)
	metrics.ObserveSpin(outcome.Scenario.Category, BpsToMultiplier(outcome.Bps), outcome.Scenario.Degraded, outcome.EngineRTP)

	log.WithFields(log.Fields{
		"user_id":  userID,
		"spin_id":  spinID,
		"category": outcome.Scenario.Category,
		"payout":   outcome.Payout,
	}).Debug("Спин завершён")
	return outcome, nil
}

// play — критическая секция генератора: BeginSpin, сценарий, выплата, CompleteSpin.
func (s *Service) play(ctx context.Context, userID int64, spinID string, bet, balance int64) (*SpinOutcome, error) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	s.weighted.BeginSpin(float64(bet))
	scenario := s.catalog.NextScenario()
	result := s.evaluator.Evaluate(scenario.Grid, float64(bet))

	st, err := s.settler.Pay(ctx, userID, spinID, bet, scenario.BaseMultiplier, balance)
	if err != nil {
		// Спин закрывается без выплаты, игроку возвращается ставка
		s.weighted.CompleteSpin(engine.SpinSummary{})
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"spin_id": spinID,
			"payout":  st.Payout,
		}).Error("Выигрыш не начислен")
		s.refund(ctx, userID, spinID, bet)
		return nil, fmt.Errorf("спин %s: %w: %w", spinID, common.ErrSettlementFailed, err)
	}

	s.weighted.CompleteSpin(engine.SpinSummary{
		Payout:       float64(st.Payout),
		Dominant:     result.Dominant,
		WinningLines: len(result.Lines),
	})

	if scenario.Degraded {
		log.WithFields(log.Fields{
			"deck_id":    scenario.DeckID,
			"category":   scenario.Category,
			"multiplier": scenario.BaseMultiplier,
		}).Warn("Сценарий построен приближённо")
	}

	return &SpinOutcome{
		SpinID:    spinID,
		Bet:       bet,
		Payout:    st.Payout,
		Bps:       st.Bps,
		Balance:   st.Balance,
		Scenario:  scenario,
		Lines:     result.Lines,
		Dominant:  result.Dominant,
		Frame:     s.weighted.Frame(),
		EngineRTP: s.weighted.CurrentRTP(),
	}, nil
}

// record сохраняет спин. Ошибки только логируются: деньги уже рассчитаны.
func (s *Service) record(ctx context.Context, userID int64, o *SpinOutcome) {
	rec := &SpinRecord{
		ID:        o.SpinID,
		UserID:    userID,
		Bet:       o.Bet,
		Payout:    o.Payout,
		Bps:       o.Bps,
		Category:  o.Scenario.Category,
		DeckID:    o.Scenario.DeckID,
		DisplayID: o.Scenario.DisplayID,
		Degraded:  o.Scenario.Degraded,
		Grid:      o.Scenario.Grid,
		Lines:     o.Lines,
		EngineRTP: o.EngineRTP,
		CreatedAt: s.now(),
	}
	if err := s.recorder.SaveSpin(ctx, rec); err != nil {
		log.WithError(err).WithField("spin_id", o.SpinID).Error("Ошибка сохранения спина")
	}
	if err := s.recorder.UpdateStats(ctx, userID, o.Bet, o.Payout); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка обновления статистики казино")
	}
}

// Stats возвращает статистику слотов игрока; у нового игрока она нулевая.
func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	stats, err := s.recorder.GetStats(ctx, userID)
	if errors.Is(err, common.ErrUserNotFound) {
		return &Stats{UserID: userID}, nil
	}
	return stats, err
}

// EngineSnapshot — состояние генератора символов.
func (s *Service) EngineSnapshot() engine.Snapshot {
	return s.weighted.Snapshot()
}

// ResetEngine обнуляет накопленную статистику генератора.
func (s *Service) ResetEngine() {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.weighted.Reset()
	metrics.EngineRTP.Set(s.weighted.CurrentRTP())
	log.Warn("Статистика генератора сброшена")
}

// CatalogInfo — сводка по колоде сценариев.
func (s *Service) CatalogInfo() CatalogInfo {
	return CatalogInfo{
		Size:         s.catalog.Len(),
		Counts:       s.catalog.Counts(),
		Degradations: s.catalog.Degradations(),
	}
}

// acquireSlot занимает слот спина. Свободный слот берётся сразу, даже если ctx уже отменён:
// ставка к этому моменту списана, и спин доигрывается.
func (s *Service) acquireSlot(ctx context.Context) bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
	}
	select {
	case s.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// refund возвращает списанную ставку. Ошибка только логируется: вернуть её некуда.
func (s *Service) refund(ctx context.Context, userID int64, spinID string, bet int64) {
	if err := s.settler.Refund(ctx, userID, spinID, bet); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"spin_id": spinID,
			"bet":     bet,
		}).Error("Не удалось вернуть ставку")
		return
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"spin_id": spinID,
	}).Warn("Ставка возвращена")
}

func (s *Service) claim(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[userID]; busy {
		return false
	}
	s.inFlight[userID] = struct{}{}
	return true
}

func (s *Service) release(userID int64) {
	s.mu.Lock()
	delete(s.inFlight, userID)
	s.mu.Unlock()
}
