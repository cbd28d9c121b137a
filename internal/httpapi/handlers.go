package httpapi

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/slot-engine/internal/engine"
	"serotonyl.ru/slot-engine/internal/features/casino"
	"serotonyl.ru/slot-engine/internal/features/members"
)

const maxBodyBytes = 64 << 10

// SpinRequest — тело POST /v1/spins.
type SpinRequest struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// EvaluateRequest — тело POST /v1/evaluate. Grid[row][reel].
// Пустая строка в ячейке — отсутствующий символ. Bet не задан — ставка дома.
type EvaluateRequest struct {
	Grid engine.Grid `json:"grid"`
	Bet  *float64    `json:"bet,omitempty"`
}

// EngineResponse — состояние генератора и колоды.
type EngineResponse struct {
	Snapshot engine.Snapshot    `json:"snapshot"`
	Catalog  casino.CatalogInfo `json:"catalog"`
	Bet      int64              `json:"bet"`
}

// StatsResponse — статистика игрока.
type StatsResponse struct {
	*casino.Stats
	RTP float64 `json:"rtp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	var req SpinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "user_id должен быть > 0")
		return
	}

	if s.opts.Limiter != nil && !s.opts.Limiter.Allow(req.UserID) {
		retry := retryAfterSeconds(s.opts.Limiter.RetryAfter(req.UserID))
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "слишком много спинов, подождите")
		return
	}

	ctx := r.Context()
	created, err := s.players.EnsureMember(ctx, members.Profile{
		UserID:    req.UserID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Source:    members.SourceHTTP,
	})
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("регистрация игрока: %w", err))
		return
	}
	if created {
		if err := s.wallet.EnsureBalance(ctx, req.UserID); err != nil {
			s.writeServiceError(w, r, fmt.Errorf("баланс игрока: %w", err))
			return
		}
	}

	outcome, err := s.casino.Spin(ctx, req.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "некорректный userID")
		return
	}

	stats, err := s.casino.Stats(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Stats: stats, RTP: stats.RTP()})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	bet := float64(s.casino.Bet())
	if req.Bet != nil {
		bet = *req.Bet
	}
	if bet < 0 || math.IsNaN(bet) || math.IsInf(bet, 0) {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "bet должен быть >= 0")
		return
	}

	evaluator := s.casino.Evaluator()
	if err := checkGrid(evaluator.Layout(), req.Grid); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, evaluator.Evaluate(req.Grid, bet))
}

func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, EngineResponse{
		Snapshot: s.casino.EngineSnapshot(),
		Catalog:  s.casino.CatalogInfo(),
		Bet:      s.casino.Bet(),
	})
}

// checkGrid проверяет размеры сетки и символы. "" допустим: ячейка пустая.
func checkGrid(layout *engine.Layout, grid engine.Grid) error {
	if len(grid) != layout.Rows {
		return fmt.Errorf("ожидается %d строк, получено %d", layout.Rows, len(grid))
	}
	for row, cells := range grid {
		if len(cells) != layout.Reels {
			return fmt.Errorf("строка %d: ожидается %d барабанов, получено %d", row, layout.Reels, len(cells))
		}
		for reel, sym := range cells {
			if sym != "" && !layout.Known(sym) {
				return fmt.Errorf("ячейка [%d][%d]: неизвестный символ %q", row, reel, sym)
			}
		}
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("некорректный JSON: %w", err)
	}
	return nil
}

// retryAfterSeconds округляет ожидание вверх, минимум 1 секунда.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
