package apikey

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrMismatch = errors.New("api key mismatch")

// Hash returns the bcrypt hash stored in config as admin_api_key_hash.
func Hash(plain string) (string, error) {
	if strings.TrimSpace(plain) == "" {
		return "", errors.New("api key is empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func Verify(hash, plain string) error {
	if hash == "" || plain == "" {
		return ErrMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrMismatch
	}
	return nil
}
