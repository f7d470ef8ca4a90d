package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/server/services"
)

type formPage struct {
	Messages []Flash   `json:"messages"`
	User     *userJSON `json:"user,omitempty"`
}

func (s *Server) signupForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formPage{Messages: consumeFlashes(w, r), User: userView(identityFrom(r.Context()))})
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formPage{Messages: consumeFlashes(w, r), User: userView(identityFrom(r.Context()))})
}

// signup registers a regular account. A role field in the form is ignored.
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed form.")
		return
	}

	_, err := s.users.Register(r.Context(), services.RegisterInput{
		UserName: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			writeError(w, r, http.StatusConflict, "Username or email already exists.")
			return
		}
		s.handleError(w, r, err)
		return
	}

	redirectWithFlash(w, r, "/login", flashSuccess, "Account created. Please login.")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed form.")
		return
	}

	session, err := s.users.Login(r.Context(),
		strings.TrimSpace(r.PostForm.Get("username")),
		strings.TrimSpace(r.PostForm.Get("password")))
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "Invalid credentials.")
			return
		}
		s.handleError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	redirectWithFlash(w, r, "/catalog", flashSuccess, "Welcome, "+session.User.UserName+"!")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
		if err := s.users.Logout(r.Context(), c.Value); err != nil {
			s.logger.Error(r.Context(), "logout failed", "error", err, "request_id", requestIDFrom(r.Context()))
		}
	}
	s.clearSessionCookie(w)
	redirectWithFlash(w, r, "/login", flashInfo, "Logged out.")
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
