// Package httpapi — HTTP-транспорт сервиса: спины, статистика игроков,
// оценка произвольной сетки, состояние генератора, health и метрики.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serotonyl.ru/slot-engine/internal/bot/middleware"
	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/features/casino"
	"serotonyl.ru/slot-engine/internal/features/members"
)

// Casino — то, что HTTP-слою нужно от сервиса казино.
type Casino interface {
	Spin(ctx context.Context, userID int64) (*casino.SpinOutcome, error)
	Stats(ctx context.Context, userID int64) (*casino.Stats, error)
	Bet() int64
	Evaluator() *engine.Evaluator
	EngineSnapshot() engine.Snapshot
	CatalogInfo() casino.CatalogInfo
}

// Players регистрирует игроков, пришедших через API.
type Players interface {
	EnsureMember(ctx context.Context, p members.Profile) (bool, error)
}

// Wallet заводит баланс новому игроку.
type Wallet interface {
	EnsureBalance(ctx context.Context, userID int64) error
}

// APIKeyHeader — заголовок с общим секретом для /v1/*.
const APIKeyHeader = "X-API-Key"

// Options — параметры HTTP-сервера.
type Options struct {
	// APIKey — общий секрет для /v1/*. Пустой ключ закрывает /v1 целиком.
	APIKey         string
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Limiter ограничивает спины одного игрока. nil — без ограничений.
	Limiter *middleware.RateLimiter
	// Ping проверяет БД для /healthz. nil — БД не проверяется.
	Ping func(ctx context.Context) error
}

// Server обрабатывает HTTP-запросы.
type Server struct {
	casino  Casino
	players Players
	wallet  Wallet
	opts    Options
}

// NewServer создаёт сервер.
func NewServer(c Casino, players Players, wallet Wallet, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		casino:  c,
		players: players,
		wallet:  wallet,
		opts:    opts,
	}
}

// Routes собирает роутер со всеми middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogRequests)
	r.Use(middleware.Recover)
	r.Use(chimw.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", APIKeyHeader},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/spins", s.handleSpin)
		r.Get("/players/{userID}/stats", s.handleStats)
		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/engine", s.handleEngine)
	})

	return r
}

// requireAPIKey пропускает только запросы с верным X-API-Key.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	want := []byte(s.opts.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(APIKeyHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "нужен корректный "+APIKeyHeader)
			return
		}
		next.ServeHTTP(w, r)
	})
}
