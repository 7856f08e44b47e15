package auth

import (
	"errors"
	"fmt"

	"github.com/antibyte/retrobasic/pkg/configuration"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned by CheckAccessPassword.
var ErrWrongPassword = errors.New("wrong access password")

// HashPassword returns the bcrypt hash to store as [Security] access_password_hash.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckAccessPassword vergleicht password mit dem konfigurierten Hash.
// Ohne Hash ist der Server offen und jedes Passwort wird akzeptiert.
func CheckAccessPassword(password string) error {
	storedHash := configuration.GetString("Security", "access_password_hash", "")
	if storedHash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}
