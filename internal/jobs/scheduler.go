// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасный отчёт о RTP генератора
// со снимком в БД и ежедневная сводка по спинам.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/features/casino"
)

// EngineSource отдаёт текущее состояние генератора.
type EngineSource interface {
	EngineSnapshot() engine.Snapshot
}

// ReportStore сохраняет снимки и считает сводки.
type ReportStore interface {
	SaveEngineSnapshot(ctx context.Context, snap engine.Snapshot) error
	SummarySince(ctx context.Context, since time.Time) (*casino.DailySummary, error)
}

// Schedule — cron-выражения задач.
type Schedule struct {
	RTPReport  string
	DailyStats string
	Location   *time.Location
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	schedule Schedule
	engine   EngineSource
	store    ReportStore
	notify   func(text string) // куда отправить ежедневную сводку; может быть nil
	now      func() time.Time
}

// NewScheduler создаёт планировщик задач в часовом поясе schedule.Location.
func NewScheduler(schedule Schedule, eng EngineSource, store ReportStore, notify func(text string)) *Scheduler {
	if schedule.Location == nil {
		schedule.Location = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(schedule.Location)),
		schedule: schedule,
		engine:   eng,
		store:    store,
		notify:   notify,
		now:      time.Now,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule.RTPReport, func() {
		log.Debug("[CRON] Отчёт о RTP генератора")
		if err := s.RunRTPReport(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка отчёта о RTP")
		}
	}); err != nil {
		return fmt.Errorf("расписание RTP_REPORT_CRON: %w", err)
	}

	if _, err := s.cron.AddFunc(s.schedule.DailyStats, func() {
		log.Info("[CRON] Ежедневная сводка по спинам")
		if err := s.RunDailySummary(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка ежедневной сводки")
		}
	}); err != nil {
		return fmt.Errorf("расписание DAILY_STATS_CRON: %w", err)
	}

	s.cron.Start()
	log.WithField("tz", s.schedule.Location.String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// RunRTPReport пишет состояние генератора в лог и в engine_snapshots.
func (s *Scheduler) RunRTPReport(ctx context.Context) error {
	snap := s.engine.EngineSnapshot()
	log.WithFields(log.Fields{
		"rtp":         common.FormatPercent(snap.CurrentRTP),
		"win_rate":    common.FormatPercent(snap.WinRate),
		"wagered":     snap.State.TotalWagered,
		"paid":        snap.State.TotalPaid,
		"loss_streak": snap.State.LossStreak,
	}).Info("[CRON] RTP генератора")
	return s.store.SaveEngineSnapshot(ctx, snap)
}

// RunDailySummary считает спины за последние сутки и отправляет сводку.
func (s *Scheduler) RunDailySummary(ctx context.Context) error {
	since := s.now().Add(-24 * time.Hour)
	summary, err := s.store.SummarySince(ctx, since)
	if err != nil {
		return err
	}

	text := FormatDailySummary(summary)
	log.WithFields(log.Fields{
		"spins":    summary.Spins,
		"players":  summary.Players,
		"wagered":  summary.Wagered,
		"paid":     summary.Paid,
		"degraded": summary.Degraded,
	}).Info("[CRON] Сводка за сутки")
	if s.notify != nil {
		s.notify(text)
	}
	return nil
}

// FormatDailySummary — текст сводки для администраторов.
func FormatDailySummary(sum *casino.DailySummary) string {
	if sum.Spins == 0 {
		return "📅 За сутки спинов не было"
	}

	rtp := 0.0
	if sum.Wagered > 0 {
		rtp = float64(sum.Paid) / float64(sum.Wagered)
	}

	var sb strings.Builder
	sb.WriteString("📅 Сводка за сутки\n\n")
	sb.WriteString(fmt.Sprintf("Спинов: %s, игроков: %s\n", common.FormatNumber(sum.Spins), common.FormatNumber(sum.Players)))
	sb.WriteString(fmt.Sprintf("Поставлено: %s\n", common.FormatBalance(sum.Wagered)))
	sb.WriteString(fmt.Sprintf("Выплачено: %s\n", common.FormatBalance(sum.Paid)))
	sb.WriteString(fmt.Sprintf("Фактический RTP: %s\n", common.FormatPercent(rtp)))
	for _, cat := range engine.Categories {
		if n := sum.ByCategory[cat]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", cat, common.FormatNumber(n)))
		}
	}
	if sum.Degraded > 0 {
		sb.WriteString(fmt.Sprintf("⚠️ Приближённых сценариев: %d\n", sum.Degraded))
	}
	return strings.TrimRight(sb.String(), "\n")
}
