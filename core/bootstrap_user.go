package core

import (
	"context"
	"fmt"
	"os"
)

// CreateUserWithGeneratedPassword registers username with a random password of
// the given length and returns the user and the plaintext password.
func CreateUserWithGeneratedPassword(ctx context.Context, auth AuthService, username string, length int) (User, string, error) {
	if length > maxPasswordBytes {
		length = maxPasswordBytes
	}
	password, err := generatePassword(length)
	if err != nil {
		return User{}, "", err
	}
	user, err := auth.Register(ctx, username, password)
	if err != nil {
		return User{}, "", err
	}
	return user, password, nil
}

// WritePasswordFile stores a generated password with owner-only permissions.
func WritePasswordFile(path, password string) error {
	if err := os.WriteFile(path, []byte(password+"\n"), 0o600); err != nil {
		return fmt.Errorf("write password file %s: %w", path, err)
	}
	return nil
}
