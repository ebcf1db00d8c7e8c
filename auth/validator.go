package auth

import (
	"secure-chat/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RegisterRequest is what a first login has to satisfy before an account is
// created for it.
type RegisterRequest struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,min=8,max=72"`
}

func ValidateRegister(req RegisterRequest) error {
	return validate.Struct(req)
}

// NormalizeUsername trims surrounding whitespace. Case is kept: "Bob" and
// "bob" are different users.
func NormalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", errors.ErrEmptyUsername
	}
	return username, nil
}
