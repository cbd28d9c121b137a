// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, движок слотов, репозитории, сервисы
// и транспорты (Telegram, HTTP), а также планировщик задач.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/bot"
	"serotonyl.ru/slot-engine/internal/bot/middleware"
	"serotonyl.ru/slot-engine/internal/config"
	"serotonyl.ru/slot-engine/internal/db/postgres"
	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/features/admin"
	"serotonyl.ru/slot-engine/internal/features/casino"
	"serotonyl.ru/slot-engine/internal/features/economy"
	"serotonyl.ru/slot-engine/internal/features/members"
	"serotonyl.ru/slot-engine/internal/httpapi"
	"serotonyl.ru/slot-engine/internal/jobs"
	"serotonyl.ru/slot-engine/internal/metrics"
)

// App содержит все компоненты приложения.
type App struct {
	Bot         *bot.Bot     // nil, если Telegram выключен
	HTTP        *http.Server // nil, если HTTP выключен
	Scheduler   *jobs.Scheduler
	DB          *pgxpool.Pool
	RateLimiter *middleware.RateLimiter

	cfg *config.Config
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	metrics.Init()

	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Движок слотов ===
	core, err := buildMachine(cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка сборки движка: %w", err)
	}

	// === 3. Репозитории ===
	memberRepo := members.NewRepository(pool)
	economyRepo := economy.NewRepository(pool)
	casinoRepo := casino.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	memberService := members.NewService(memberRepo, cfg.IsAdmin)
	economyService := economy.NewService(economyRepo, cfg.EconomyStartingBalance)
	casinoService := casino.NewService(
		core.evaluator, core.weighted, core.catalog,
		economyService, casinoRepo,
		casino.Options{
			Enabled:       cfg.FeatureCasinoEnabled,
			Bet:           cfg.CasinoSlotsBet,
			MaxConcurrent: cfg.CasinoMaxConcurrentSpins,
		},
	)
	adminService := admin.NewService(adminRepo, cfg.IsAdmin, cfg.AdminPasswordHash, casinoService, economyService, memberService)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	a := &App{
		DB:          pool,
		RateLimiter: rateLimiter,
		cfg:         cfg,
	}

	// === 5. Telegram ===
	if cfg.TelegramEnabled() {
		botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
		}
		botAPI.Debug = cfg.AppEnv == "development"
		log.Infof("Авторизован как @%s", botAPI.Self.UserName)

		a.Bot = bot.New(botAPI, cfg, rateLimiter, memberService, economyService, casinoService, adminService)
	} else {
		log.Warn("Telegram выключен: нет токена или FEATURE_TELEGRAM_ENABLED=false")
	}

	// === 6. HTTP API ===
	if cfg.FeatureHTTPEnabled {
		server := httpapi.NewServer(casinoService, memberService, economyService, httpapi.Options{
			APIKey:         cfg.HTTPAPIKey,
			AllowedOrigins: cfg.HTTPAllowedOrigins,
			RequestTimeout: cfg.HTTPRequestTimeout,
			Limiter:        rateLimiter,
			Ping:           pool.Ping,
		})
		a.HTTP = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	// === 7. Планировщик задач ===
	var notify func(string)
	if a.Bot != nil {
		notify = a.Bot.NotifyAdmins
	}
	a.Scheduler = jobs.NewScheduler(jobs.Schedule{
		RTPReport:  cfg.RTPReportCron,
		DailyStats: cfg.DailyStatsCron,
		Location:   cfg.Location(),
	}, casinoService, casinoRepo, notify)

	return a, nil
}

// Run запускает планировщик, бота и HTTP-сервер и ждёт отмены ctx.
// Ошибка HTTP-сервера останавливает всё приложение.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("ошибка запуска планировщика: %w", err)
	}
	defer a.Scheduler.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	botDone := make(chan struct{})
	if a.Bot != nil {
		go func() {
			defer close(botDone)
			a.Bot.Start(ctx)
		}()
	} else {
		close(botDone)
	}

	httpErr := make(chan error, 1)
	if a.HTTP != nil {
		go func() {
			log.WithField("addr", a.HTTP.Addr).Info("HTTP API слушает")
			if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		runErr = fmt.Errorf("HTTP-сервер: %w", err)
		cancel()
	}

	if a.HTTP != nil {
		shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTPShutdownTimeout)
		defer stop()
		if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP-сервер остановлен не чисто")
		}
	}
	<-botDone

	return runErr
}

// Close освобождает ресурсы. Вызывать после Run.
func (a *App) Close() {
	if a.RateLimiter != nil {
		a.RateLimiter.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// machine — собранный движок слотов.
type machine struct {
	evaluator *engine.Evaluator
	weighted  *engine.WeightedEngine
	catalog   *engine.Catalog
}

// buildMachine проверяет конфигурацию, строит оценщик, генератор и колоду сценариев.
func buildMachine(cfg *config.Config) (*machine, error) {
	layout := engine.DefaultLayout()
	if err := engine.LoadTuningFile(cfg.EngineTuningFile, layout); err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	evaluator, err := engine.NewEvaluator(layout)
	if err != nil {
		return nil, err
	}

	weighted := engine.NewWeightedEngine(layout, sourceFromSeed(cfg.EngineRNGSeed))

	opts := engine.DefaultCatalogOptions()
	opts.MasterSeed = cfg.EngineMasterSeed
	opts.Source = sourceFromSeed(cfg.EngineScenarioSeed)

	started := time.Now()
	catalog, err := engine.NewCatalog(evaluator, opts)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"size":         catalog.Len(),
		"degradations": catalog.Degradations(),
		"master_seed":  cfg.EngineMasterSeed,
		"tuning_file":  cfg.EngineTuningFile,
		"took":         time.Since(started).Round(time.Millisecond),
	}).Info("Колода сценариев построена")

	if cfg.EngineRNGSeed != 0 || cfg.EngineScenarioSeed != 0 {
		log.Warn("Заданы ENGINE_RNG_SEED/ENGINE_SCENARIO_SEED: исходы воспроизводимы, только для отладки")
	}

	return &machine{evaluator: evaluator, weighted: weighted, catalog: catalog}, nil
}

// sourceFromSeed — crypto/rand для нулевого seed, иначе детерминированный PCG.
func sourceFromSeed(seed uint64) engine.Source {
	if seed == 0 {
		return engine.CryptoSource{}
	}
	return engine.NewPCGSource(seed)
}
