package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/books"
	"github.com/dmitrijs2005/booklend/internal/server/services"
)

type bookJSON struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Genre           string `json:"genre"`
	TotalCopies     int    `json:"total_copies"`
	ActiveBorrows   int    `json:"borrowed_count"`
	AvailableCopies int    `json:"available_copies"`
	HasCover        bool   `json:"has_cover"`
}

func bookView(v *services.BookView) bookJSON {
	return bookJSON{
		ID:              v.ID,
		Title:           v.Title,
		Author:          v.Author,
		Genre:           v.Genre,
		TotalCopies:     v.TotalCopies,
		ActiveBorrows:   v.ActiveBorrows,
		AvailableCopies: v.AvailableCopies,
		HasCover:        v.CoverKey != "",
	}
}

func bookViews(list []*services.BookView) []bookJSON {
	out := make([]bookJSON, 0, len(list))
	for _, v := range list {
		out = append(out, bookView(v))
	}
	return out
}

type catalogPage struct {
	Messages []Flash    `json:"messages"`
	User     *userJSON  `json:"user,omitempty"`
	Genre    string     `json:"genre,omitempty"`
	Query    string     `json:"q,omitempty"`
	Books    []bookJSON `json:"books"`
}

type bookPage struct {
	Messages     []Flash   `json:"messages"`
	User         *userJSON `json:"user,omitempty"`
	Book         bookJSON  `json:"book"`
	UserBorrowed bool      `json:"user_borrowed"`
	CoverURL     string    `json:"cover_url,omitempty"`
}

type loanJSON struct {
	ID         int64     `json:"id"`
	BookID     int64     `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	BorrowDate time.Time `json:"borrow_date"`
}

type loansPage struct {
	Messages []Flash    `json:"messages"`
	User     *userJSON  `json:"user,omitempty"`
	Borrows  []loanJSON `json:"borrows"`
}

func loanViews(list []*models.Loan) []loanJSON {
	out := make([]loanJSON, 0, len(list))
	for _, l := range list {
		out = append(out, loanJSON{
			ID:         l.ID,
			BookID:     l.BookID,
			Title:      l.BookTitle,
			Author:     l.BookAuthor,
			BorrowDate: l.BorrowDate,
		})
	}
	return out
}

// pathID reads the {id} segment. Ids that do not parse answer 404.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ViewCatalog)
	if !ok {
		return
	}

	filter := books.Filter{Genre: r.URL.Query().Get("genre"), Query: r.URL.Query().Get("q")}
	list, err := s.catalog.ListCatalog(r.Context(), identity, filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, catalogPage{
		Messages: consumeFlashes(w, r),
		User:     userView(identity),
		Genre:    filter.Genre,
		Query:    filter.Query,
		Books:    bookViews(list),
	})
}

func (s *Server) bookDetail(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authorize(w, r, policy.ViewBook)
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
		Messages:     consumeFlashes(w, r),
		User:         userView(identity),
		Book:         bookView(&detail.BookView),
		UserBorrowed: detail.UserBorrowed,
		CoverURL:     detail.CoverURL,
	})
}
