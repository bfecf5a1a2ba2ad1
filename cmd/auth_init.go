package cmd

import (
	"crypto/rand"
	"fmt"

	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/auth"
)

// initializeAuth sets up the operator account store and bootstraps an admin
// account on first run. Returns nil store when auth mode is none.
func initializeAuth(config *serviceConfig, logger *logrus.Entry) (*auth.UserStore, error) {
	if config.AuthMode == auth.AuthModeNone {
		logger.Warn("authentication disabled (AUTH_MODE=none), release API is open")
		return nil, nil
	}

	store, err := auth.NewUserStore(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize user store: %w", err)
	}

	count, err := store.CountUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count == 0 {
		if err := createInitialAdmin(store); err != nil {
			return nil, fmt.Errorf("failed to create initial admin: %w", err)
		}
	}

	return store, nil
}

// createInitialAdmin creates the first admin account with a random password.
// The credentials are printed once and never again.
func createInitialAdmin(store *auth.UserStore) error {
	password := generateRandomPassword(16)

	user, err := store.CreateUser("admin", password, "", auth.RoleAdmin)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("  Initial admin account created.")
	fmt.Println()
	fmt.Println("  Username: admin")
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("  Save these credentials now and change the password after")
	fmt.Println("  first login. They will not be shown again.")
	fmt.Println()
	fmt.Printf("  User ID: %s\n", user.ID)
	fmt.Println()

	return nil
}

// generateRandomPassword generates a secure random password
func generateRandomPassword(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+[]{}|;:,.<>?"

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		// fallback that forces a manual change
		return "ChangeMe123!"
	}

	password := make([]byte, length)
	for i := range password {
		password[i] = charset[int(b[i])%len(charset)]
	}
	return string(password)
}
