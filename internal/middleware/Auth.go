package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/service"
	"FallWatch.iot/internal/utils"

	"go.uber.org/zap"
)

const (
	// DeviceTokenHeader carries the shared secret of a telemetry device.
	DeviceTokenHeader = "X-Device-Token"
	// SessionCookie carries the dashboard session token.
	SessionCookie = "auth_token"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionFromContext returns the session attached by RequireSession.
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(models.Session)
	return s, ok
}

// DeviceToken rejects requests whose X-Device-Token does not match token.
// An empty token disables the check.
func DeviceToken(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(DeviceTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn("Device token rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidToken, "invalid device token", nil, http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession admits only requests carrying a live session cookie.
func RequireSession(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeUnauthorized, "login required", nil, http.StatusUnauthorized))
				return
			}
			sess, err := auth.Authenticate(r.Context(), cookie.Value)
			if errors.Is(err, service.ErrNotAuthenticated) {
				utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeUnauthorized, "login required", nil, http.StatusUnauthorized))
				return
			}
			if err != nil {
				utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, "session lookup failed", nil, http.StatusInternalServerError))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request. WebSocket upgrades are passed
// through untouched so the connection can be hijacked.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") != "" {
				logger.Debug("Upgrade request", zap.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
