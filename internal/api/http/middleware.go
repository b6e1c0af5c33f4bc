package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/security"
)

const headerRequestID = "X-Request-ID"

// RequestID attaches a correlation id to the request context, reusing the
// caller's X-Request-ID when it sends one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging writes one line per request once the handler has finished.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.FromContext(r.Context()).Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// Recover turns a handler panic into a 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(r.Context(), "Handler panicked", "path", r.URL.Path, "panic", p)
				writeError(w, r, http.StatusInternalServerError, "GENERAL_ERROR", "operation failed")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Authenticate requires a valid bearer access token and stores its claims
// on the request context.
func Authenticate(tokens security.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authorization token is not provided")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.DebugContext(r.Context(), "Rejected bearer token", "error", err)
				writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(security.WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}

// callerIdentity keys the rate limiter by user when the request carries a
// valid token. The limiter runs ahead of Authenticate, so anything else is
// keyed by client address.
func callerIdentity(tokens security.TokenManager) func(r *http.Request) string {
	return func(r *http.Request) string {
		if id := security.UserIDFromContext(r.Context()); id != 0 {
			return "user:" + strconv.Itoa(int(id))
		}
		token, ok := bearerToken(r)
		if !ok {
			return ""
		}
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			return ""
		}
		return "user:" + strconv.Itoa(int(claims.UserID))
	}
}
