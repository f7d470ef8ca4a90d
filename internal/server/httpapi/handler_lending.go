package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
)

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.Borrow)
	if !ok {
		return
	}
	bookID, ok := pathID(w, r)
	if !ok {
		return
	}

	loan, err := s.lending.Borrow(r.Context(), identity, bookID)
	if err != nil {
		back := fmt.Sprintf("/book/%d", bookID)
		switch {
		case errors.Is(err, common.ErrNoCopiesAvailable):
			redirectWithFlash(w, r, back, flashDanger, "No copies available to borrow.")
		case errors.Is(err, common.ErrDuplicateActiveLoan):
			redirectWithFlash(w, r, back, flashWarning, "You already borrowed this book. Return it before borrowing again.")
		default:
			s.handleError(w, r, err)
		}
		return
	}

	redirectWithFlash(w, r, "/my-borrows", flashSuccess, fmt.Sprintf("You borrowed '%s'.", loan.BookTitle))
}

func (s *Server) returnBook(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.Return)
	if !ok {
		return
	}
	borrowID, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := s.lending.Return(r.Context(), identity, borrowID); err != nil {
		switch {
		case errors.Is(err, common.ErrForbidden):
			redirectWithFlash(w, r, "/catalog", flashDanger, "Not authorized.")
		case errors.Is(err, common.ErrAlreadyReturned):
			redirectWithFlash(w, r, "/my-borrows", flashInfo, "Already returned.")
		default:
			s.handleError(w, r, err)
		}
		return
	}

	redirectWithFlash(w, r, "/my-borrows", flashSuccess, "Book returned. Thank you!")
}

func (s *Server) myBorrows(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ViewOwnLoans)
	if !ok {
		return
	}

	loans, err := s.lending.ActiveLoans(r.Context(), identity)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loansPage{
		Messages: consumeFlashes(w, r),
		User:     userView(identity),
		Borrows:  loanViews(loans),
	})
}
