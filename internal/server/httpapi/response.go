package httpapi

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type userJSON struct {
	ID       int64  `json:"id"`
	UserName string `json:"username"`
	Role     string `json:"role"`
}

func userView(id policy.Identity) *userJSON {
	if !id.Authenticated() {
		return nil
	}
	return &userJSON{ID: id.UserID, UserName: id.UserName, Role: string(id.Role)}
}

type errorJSON struct {
	Status   string            `json:"status"`
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	Messages []Flash           `json:"messages"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorJSON{Status: "error", Error: message, Messages: consumeFlashes(w, r)})
}

func writeValidationError(w http.ResponseWriter, r *http.Request, verr *services.ValidationError) {
	writeJSON(w, http.StatusBadRequest, errorJSON{
		Status:   "error",
		Error:    verr.Message,
		Fields:   verr.Fields,
		Messages: consumeFlashes(w, r),
	})
}

// handleError answers the errors no handler treated specially. Store and
// other unexpected failures are logged and reported as 500.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, r, verr)
	case errors.Is(err, common.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Not found.")
	case errors.Is(err, common.ErrUnauthenticated):
		redirectWithFlash(w, r, "/login", flashWarning, "Please login first.")
	case errors.Is(err, common.ErrAdminRequired):
		redirectWithFlash(w, r, "/catalog", flashDanger, "Admin access required.")
	case errors.Is(err, common.ErrTxConflict):
		s.logger.Warn(r.Context(), "transaction conflict", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()))
		writeError(w, r, http.StatusServiceUnavailable, "The library is busy, please retry.")
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, r, http.StatusInternalServerError, "Internal error.")
	}
}

// authorize runs the access policy for action. On denial it has already
// answered with the login or catalog redirect.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, action policy.Action) (policy.Identity, bool) {
	identity := identityFrom(r.Context())
	if err := policy.Authorize(identity, action).Err(); err != nil {
		s.handleError(w, r, err)
		return identity, false
	}
	return identity, true
}
