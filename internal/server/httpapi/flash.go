package httpapi

import (
	"encoding/base64"
	"net/http"

	"github.com/dmitrijs2005/booklend/internal/common"
)

// Flash categories.
const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashDanger  = "danger"
)

// maxPendingFlashes bounds the flash cookie; older messages are dropped.
const maxPendingFlashes = 5

// Flash is a one-shot message shown on the next rendered view.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// readFlashes decodes the pending messages; a malformed cookie reads as none.
func readFlashes(r *http.Request) []Flash {
	c, err := r.Cookie(common.FlashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var out []Flash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// addFlash queues a message on top of those still pending, keeping the
// newest maxPendingFlashes.
func addFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	pending := append(readFlashes(r), Flash{Category: category, Message: message})
	if len(pending) > maxPendingFlashes {
		pending = pending[len(pending)-maxPendingFlashes:]
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     common.FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// consumeFlashes returns the pending messages and clears them.
func consumeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	pending := readFlashes(r)
	if _, err := r.Cookie(common.FlashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     common.FlashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if pending == nil {
		pending = []Flash{}
	}
	return pending
}

// redirectWithFlash queues a message and answers 303 See Other.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, category, message string) {
	addFlash(w, r, category, message)
	http.Redirect(w, r, to, http.StatusSeeOther)
}
