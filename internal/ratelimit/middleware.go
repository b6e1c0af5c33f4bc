package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"device-loan-backend/internal/logger"
)

// MiddlewareOptions tunes how requests are keyed and which ones count.
type MiddlewareOptions struct {
	// Identity returns the authenticated caller, or "" for anonymous requests.
	Identity func(r *http.Request) string
	// OnReject is called with the limiter key of every rejected request.
	OnReject func(key string)

	SkipSuccessfulRequests bool
	SkipFailedRequests     bool
	TrustForwardedFor      bool
}

type rejection struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Middleware enforces l per caller and route.
func Middleware(l *Limiter, opts MiddlewareOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := Key(r, opts)
			d := l.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				logger.WarnContext(r.Context(), "Rate limit exceeded", "key", key, "retry_after", d.RetryAfter)
				if opts.OnReject != nil {
					opts.OnReject(key)
				}
				writeRejection(w, d)
				return
			}

			if !opts.SkipSuccessfulRequests && !opts.SkipFailedRequests {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			failed := rec.status >= http.StatusBadRequest
			if (failed && opts.SkipFailedRequests) || (!failed && opts.SkipSuccessfulRequests) {
				l.Release(key, d.ResetAt)
			}
		})
	}
}

func writeRejection(w http.ResponseWriter, d Decision) {
	seconds := int(math.Ceil(d.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(rejection{
		Success: false,
		Code:    "RATE_LIMIT_EXCEEDED",
		Message: d.Err().Error(),
	})
}

// Key builds the limiter key "<identity>|<method>|<route>".
func Key(r *http.Request, opts MiddlewareOptions) string {
	identity := ""
	if opts.Identity != nil {
		identity = opts.Identity(r)
	}
	if identity == "" {
		identity = "ip:" + ClientIP(r, opts.TrustForwardedFor)
	}

	path := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			path = tpl
		}
	}
	return identity + "|" + r.Method + "|" + path
}

// ClientIP returns the first X-Forwarded-For hop when trusted, else the host
// part of RemoteAddr.
func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
