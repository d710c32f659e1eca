package auth

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidUserID is returned when a registration id is not a number in the
// accepted range.
var ErrInvalidUserID = errors.New("user id must be a number between 1 and 300")

var validate = validator.New()

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ValidateRegister checks field presence and shape. User ids are numeric and
// bounded, matching the id space handed out by user management.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	n, err := strconv.Atoi(req.ID)
	if err != nil || n < 1 || n > 300 {
		return ErrInvalidUserID
	}
	return nil
}
