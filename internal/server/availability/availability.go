// Package availability computes how many copies of a book can still be lent.
// The functions are pure: callers pass rows and counts they read inside the
// current transaction.
package availability

import "github.com/dmitrijs2005/booklend/internal/server/models"

// ActiveBorrowCount counts the borrows of bookID that are not yet returned.
func ActiveBorrowCount(bookID int64, borrows []*models.Borrow) int {
	n := 0
	for _, b := range borrows {
		if b != nil && b.BookID == bookID && !b.Returned {
			n++
		}
	}
	return n
}

// AvailableCopies is total copies minus active borrows, floored at zero.
func AvailableCopies(book *models.Book, activeCount int) int {
	if book == nil {
		return 0
	}
	return max(0, book.TotalCopies-activeCount)
}

// CanBorrow reports whether at least one copy is free.
func CanBorrow(book *models.Book, activeCount int) bool {
	return AvailableCopies(book, activeCount) > 0
}
