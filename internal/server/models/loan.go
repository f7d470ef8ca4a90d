package models

// Loan is an active borrow together with the title it refers to, as shown
// on a user's borrow list.
type Loan struct {
	Borrow
	BookTitle  string
	BookAuthor string
}
