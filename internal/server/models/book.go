package models

// Book is a catalog title. TotalCopies is never below 1.
type Book struct {
	ID          int64
	Title       string
	Author      string
	Genre       string
	TotalCopies int
	// CoverKey is the object-storage key of the cover image, empty if none.
	CoverKey string
}
