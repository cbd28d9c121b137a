// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	// Без токена бот не запускается, работает только HTTP API.
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	// Групповой чат, в котором бот отвечает. 0 — любой чат.
	AllowedChatID int64 `envconfig:"ALLOWED_CHAT_ID" default:"0"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"slots"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"slot_engine"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPAllowedOrigins  []string      `envconfig:"HTTP_ALLOWED_ORIGINS" default:"*"`
	HTTPRequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"15s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	// Общий секрет для /v1/*, передаётся в заголовке X-API-Key.
	HTTPAPIKey string `envconfig:"HTTP_API_KEY"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Casino ---
	CasinoSlotsBet int64 `envconfig:"CASINO_SLOTS_BET" default:"50"`
	// Сколько спинов идёт одновременно на весь сервис
	CasinoMaxConcurrentSpins int `envconfig:"CASINO_MAX_CONCURRENT_SPINS" default:"8"`

	// --- Economy ---
	EconomyStartingBalance int64 `envconfig:"ECONOMY_STARTING_BALANCE" default:"1000"`

	// --- Engine ---
	// Seed колоды сценариев. Меняет весь набор исходов, трогать только вместе с аудитом.
	EngineMasterSeed uint32 `envconfig:"ENGINE_MASTER_SEED" default:"3235838670"`
	// 0 — crypto/rand. Ненулевые значения делают прогон воспроизводимым.
	EngineRNGSeed      uint64 `envconfig:"ENGINE_RNG_SEED" default:"0"`
	EngineScenarioSeed uint64 `envconfig:"ENGINE_SCENARIO_SEED" default:"0"`
	EngineTuningFile   string `envconfig:"ENGINE_TUNING_FILE"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Jobs ---
	RTPReportCron  string `envconfig:"RTP_REPORT_CRON" default:"0 * * * *"`
	DailyStatsCron string `envconfig:"DAILY_STATS_CRON" default:"0 0 * * *"`

	// --- Feature Flags ---
	FeatureCasinoEnabled   bool `envconfig:"FEATURE_CASINO_ENABLED" default:"true"`
	FeatureTelegramEnabled bool `envconfig:"FEATURE_TELEGRAM_ENABLED" default:"true"`
	FeatureHTTPEnabled     bool `envconfig:"FEATURE_HTTP_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// TelegramEnabled — бот запускается, только если он включён и задан токен.
func (c *Config) TelegramEnabled() bool {
	return c.FeatureTelegramEnabled && c.TelegramBotToken != ""
}

// IsAdmin сообщает, есть ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.CasinoSlotsBet <= 0 {
		return fmt.Errorf("CASINO_SLOTS_BET должен быть > 0")
	}
	if c.CasinoMaxConcurrentSpins <= 0 {
		return fmt.Errorf("CASINO_MAX_CONCURRENT_SPINS должен быть > 0")
	}
	if c.EconomyStartingBalance < 0 {
		return fmt.Errorf("ECONOMY_STARTING_BALANCE не может быть отрицательным")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	for name, spec := range map[string]string{
		"RTP_REPORT_CRON":  c.RTPReportCron,
		"DAILY_STATS_CRON": c.DailyStatsCron,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	if c.TelegramEnabled() && len(c.AdminIDs) > 0 && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH обязателен, если заданы ADMIN_IDS")
	}
	if !c.TelegramEnabled() && !c.FeatureHTTPEnabled {
		return fmt.Errorf("нечего запускать: нет TELEGRAM_BOT_TOKEN и выключен HTTP")
	}
	if c.FeatureHTTPEnabled && len(c.HTTPAPIKey) < 16 {
		return fmt.Errorf("HTTP_API_KEY обязателен при включённом HTTP (не короче 16 символов)")
	}
	return nil
}

// Location — часовой пояс для cron и отображения дат.
// Имя проверяется в Validate; UTC — только для конфига, собранного вручную.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
