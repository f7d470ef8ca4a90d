package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/services"
)

type adminPage struct {
	Messages      []Flash    `json:"messages"`
	User          *userJSON  `json:"user,omitempty"`
	Books         []bookJSON `json:"books"`
	CoversEnabled bool       `json:"covers_enabled"`
}

type coverUploadJSON struct {
	UploadURL string `json:"upload_url"`
}

// bookForm reads the add/edit form. A missing total_copies field means one
// copy; a value that is not an integer fails validation like a zero would.
func bookForm(r *http.Request) (services.BookInput, error) {
	if err := r.ParseForm(); err != nil {
		return services.BookInput{}, err
	}
	in := services.BookInput{
		Title:       r.PostForm.Get("title"),
		Author:      r.PostForm.Get("author"),
		Genre:       r.PostForm.Get("genre"),
		TotalCopies: 1,
	}
	if r.PostForm.Has("total_copies") {
		n, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("total_copies")))
		if err != nil {
			n = 0
		}
		in.TotalCopies = n
	}
	return in, nil
}

func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ManageInventory)
	if !ok {
		return
	}

	list, err := s.catalog.Inventory(r.Context(), identity)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, adminPage{
		Messages:      consumeFlashes(w, r),
		User:          userView(identity),
		Books:         bookViews(list),
		CoversEnabled: s.catalog.CoversEnabled(),
	})
}

func (s *Server) addBook(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ManageInventory)
	if !ok {
		return
	}
	in, err := bookForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed form.")
		return
	}

	if _, err := s.catalog.AddBook(r.Context(), identity, in); err != nil {
		s.handleError(w, r, err)
		return
	}

	redirectWithFlash(w, r, "/admin", flashSuccess, "Book added.")
}

func (s *Server) editBookForm(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ManageInventory)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	detail, err := s.catalog.BookDetail(r.Context(), identity, id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookPage{
		Messages: consumeFlashes(w, r),
		User:     userView(identity),
		Book:     bookView(&detail.BookView),
		CoverURL: detail.CoverURL,
	})
}

func (s *Server) editBook(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ManageInventory)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, err := bookForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed form.")
		return
	}

	if _, err := s.catalog.EditBook(r.Context(), identity, id, in); err != nil {
		s.handleError(w, r, err)
		return
	}

	redirectWithFlash(w, r, "/admin", flashSuccess, "Book updated.")
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ManageInventory)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.catalog.DeleteBook(r.Context(), identity, id); err != nil {
		if errors.Is(err, common.ErrBookInUse) {
			redirectWithFlash(w, r, "/admin", flashDanger, "Cannot delete book while copies are borrowed.")
			return
		}
		s.handleError(w, r, err)
		return
	}

	redirectWithFlash(w, r, "/admin", flashInfo, "Book deleted.")
}

func (s *Server) requestCoverUpload(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ManageInventory)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	url, err := s.catalog.RequestCoverUpload(r.Context(), identity, id)
	if err != nil {
		if errors.Is(err, common.ErrCoversDisabled) {
			writeError(w, r, http.StatusNotImplemented, "Cover storage is not configured.")
			return
		}
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coverUploadJSON{UploadURL: url})
}
