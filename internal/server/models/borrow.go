package models

import "time"

// Borrow is one loan of one copy. An active borrow has Returned == false;
// once returned it is terminal.
type Borrow struct {
	ID         int64
	UserID     int64
	BookID     int64
	BorrowDate time.Time
	ReturnDate *time.Time
	Returned   bool
}

func (b *Borrow) Active() bool {
	return !b.Returned
}
