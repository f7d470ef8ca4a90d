package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
)

type ctxKey string

const (
	identityKey  ctxKey = "identity"
	requestIDKey ctxKey = "request_id"
)

const requestIDHeader = "X-Request-ID"

func identityFrom(ctx context.Context) policy.Identity {
	if id, ok := ctx.Value(identityKey).(policy.Identity); ok {
		return id
	}
	return policy.Anonymous
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// identify resolves the session cookie into the acting identity. Requests
// without a usable session continue as anonymous; a stale cookie is
// cleared.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := policy.Anonymous

		if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
			id, err := s.users.Identify(r.Context(), c.Value)
			switch {
			case err == nil:
				identity = id
			case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrSessionExpired):
				s.clearSessionCookie(w)
			default:
				s.logger.Error(r.Context(), "session lookup failed", "error", err, "request_id", requestIDFrom(r.Context()))
			}
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
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

// logRequests tags every request with an id and logs its outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.Info(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		)
	})
}
