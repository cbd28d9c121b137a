package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/slot-engine/internal/common"
)

// Коды ошибок в теле ответа.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInProgress   = "spin_in_progress"
	ErrCodeInsufficient = "insufficient_balance"
	ErrCodeDisabled     = "casino_disabled"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeCanceled     = "canceled"
	ErrCodeInternal     = "internal"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON пишет ответ в JSON.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("Ошибка кодирования ответа")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// classify сопоставляет ошибку сервиса HTTP-статусу.
// Неизвестные ошибки наружу не показываются.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, common.ErrSpinInProgress):
		return http.StatusConflict, ErrCodeInProgress, err.Error()
	case errors.Is(err, common.ErrInsufficientBalance):
		return http.StatusPaymentRequired, ErrCodeInsufficient, common.ErrInsufficientBalance.Error()
	case errors.Is(err, common.ErrCasinoDisabled):
		return http.StatusServiceUnavailable, ErrCodeDisabled, err.Error()
	case errors.Is(err, common.ErrForeignPlayer):
		return http.StatusForbidden, ErrCodeForbidden, common.ErrForeignPlayer.Error()
	case errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound, ErrCodeNotFound, common.ErrUserNotFound.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrCodeCanceled, "запрос прерван"
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "внутренняя ошибка"
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError && code != ErrCodeDisabled {
		log.WithError(err).WithField("request_id", chimw.GetReqID(r.Context())).Error("Ошибка обработки запроса")
	}
	writeError(w, r, status, code, message)
}
