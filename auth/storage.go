package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const SchemaVersion = "1.0.0"

// Accounts lock after this many consecutive failed logins
const maxFailedLogins = 5

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrAccountLocked = errors.New("account is locked")
	ErrWrongPassword = errors.New("wrong password")
)

// UserStore persists operator accounts to the data directory
type UserStore struct {
	dataDir  string
	lockFile *flock.Flock
}

// NewUserStore creates a user store rooted at dataDir
func NewUserStore(dataDir string) (*UserStore, error) {
	usersDir := filepath.Join(dataDir, "users")
	if err := os.MkdirAll(usersDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}

	return &UserStore{
		dataDir:  dataDir,
		lockFile: flock.New(filepath.Join(usersDir, ".users.lock")),
	}, nil
}

func (s *UserStore) usersFile() string {
	return filepath.Join(s.dataDir, "users", "users.json")
}

// Load reads the account database from disk. A missing file yields an empty
// database.
func (s *UserStore) Load() (*UserDatabase, error) {
	filePath := s.usersFile()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &UserDatabase{
			Version:   SchemaVersion,
			Users:     make(map[string]User),
			UpdatedAt: time.Now(),
		}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var db UserDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return &db, nil
}

// Save writes the account database to disk under a file lock. The previous
// file is kept as a backup and the write goes through a temp file rename.
func (s *UserStore) Save(db *UserDatabase) error {
	filePath := s.usersFile()

	locked, err := s.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return errors.New("unable to acquire lock - another process is writing")
	}
	defer s.lockFile.Unlock()

	if _, err := os.Stat(filePath); err == nil {
		if data, err := os.ReadFile(filePath); err == nil {
			_ = os.WriteFile(filePath+".backup", data, 0600)
		}
	}

	db.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal database: %w", err)
	}

	tempFile := filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filePath); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// GetUser retrieves an account by username
func (s *UserStore) GetUser(username string) (*User, error) {
	db, err := s.Load()
	if err != nil {
		return nil, err
	}

	user, exists := db.Users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// CreateUser creates a new operator account
func (s *UserStore) CreateUser(username, password, email, role string) (*User, error) {
	db, err := s.Load()
	if err != nil {
		return nil, err
	}

	if _, exists := db.Users[username]; exists {
		return nil, ErrUserExists
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	db.Users[username] = user

	if err := s.Save(db); err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies the credentials and records the attempt. A locked
// account rejects even the correct password.
func (s *UserStore) Authenticate(username, password string) (*User, error) {
	user, err := s.GetUser(username)
	if err != nil {
		return nil, err
	}
	if user.Locked {
		return nil, ErrAccountLocked
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		if err := s.recordLogin(username, false); err != nil {
			return nil, err
		}
		return nil, ErrWrongPassword
	}

	if err := s.recordLogin(username, true); err != nil {
		return nil, err
	}
	return s.GetUser(username)
}

// SetPassword replaces the password of an account
func (s *UserStore) SetPassword(username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.update(username, func(user *User) {
		user.PasswordHash = hash
	})
}

// SetRole changes the role of an account
func (s *UserStore) SetRole(username, role string) error {
	return s.update(username, func(user *User) {
		user.Role = role
	})
}

// SetLocked locks or unlocks an account. Unlocking also resets the failed
// login counter.
func (s *UserStore) SetLocked(username string, locked bool) error {
	return s.update(username, func(user *User) {
		user.Locked = locked
		if !locked {
			user.FailedLogins = 0
		}
	})
}

// DeleteUser removes an account
func (s *UserStore) DeleteUser(username string) error {
	db, err := s.Load()
	if err != nil {
		return err
	}

	if _, exists := db.Users[username]; !exists {
		return ErrUserNotFound
	}
	delete(db.Users, username)
	return s.Save(db)
}

// ListUsers returns all accounts
func (s *UserStore) ListUsers() ([]User, error) {
	db, err := s.Load()
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(db.Users))
	for _, user := range db.Users {
		users = append(users, user)
	}
	return users, nil
}

// CountUsers returns the number of accounts
func (s *UserStore) CountUsers() (int, error) {
	db, err := s.Load()
	if err != nil {
		return 0, err
	}
	return len(db.Users), nil
}

func (s *UserStore) recordLogin(username string, success bool) error {
	return s.update(username, func(user *User) {
		if success {
			user.FailedLogins = 0
			now := time.Now()
			user.LastLoginAt = &now
			return
		}
		user.FailedLogins++
		if user.FailedLogins >= maxFailedLogins {
			user.Locked = true
		}
	})
}

func (s *UserStore) update(username string, apply func(*User)) error {
	db, err := s.Load()
	if err != nil {
		return err
	}

	user, exists := db.Users[username]
	if !exists {
		return ErrUserNotFound
	}

	apply(&user)
	user.UpdatedAt = time.Now()
	db.Users[username] = user
	return s.Save(db)
}
