package services

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/booklend/internal/common"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError is returned for rejected input. It matches
// common.ErrValidation and carries the message shown to the user and the
// failing fields with the rule they broke.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return common.ErrValidation.Error() + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return common.ErrValidation
}

// RegisterInput is the signup form.
type RegisterInput struct {
	UserName string `validate:"required,max=80"`
	Email    string `validate:"required,email,max=120"`
	Password string `validate:"required"`
}

func (in *RegisterInput) normalize() {
	in.UserName = strings.TrimSpace(in.UserName)
	in.Email = strings.TrimSpace(in.Email)
	in.Password = strings.TrimSpace(in.Password)
}

// BookInput is the add/edit book form.
type BookInput struct {
	Title       string `validate:"required,max=200"`
	Author      string `validate:"required,max=120"`
	Genre       string `validate:"max=80"`
	TotalCopies int    `validate:"gte=1,lte=2147483647"`
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
}

func validateRegister(in RegisterInput) error {
	return validateStruct(in, func(fields map[string]string) string {
		for _, f := range []string{"UserName", "Email", "Password"} {
			if fields[f] == "required" {
				return "All fields are required."
			}
		}
		if fields["Email"] == "email" {
			return "Invalid email address."
		}
		return "Field too long."
	})
}

func validateBook(in BookInput) error {
	return validateStruct(in, func(fields map[string]string) string {
		if fields["Title"] == "required" || fields["Author"] == "required" {
			return "Title and author required."
		}
		if _, ok := fields["TotalCopies"]; ok {
			return "Total copies must be a positive integer."
		}
		return "Field too long."
	})
}

// validateStruct runs the struct rules and, on failure, builds a
// ValidationError whose message is chosen by describe.
func validateStruct(s any, describe func(fields map[string]string) string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Message: describe(fields), Fields: fields}
}
